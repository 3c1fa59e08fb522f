// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for the daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks sessions currently held in the store.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dlgram_sessions_active",
		Help: "Number of in-flight conversation sessions",
	})

	// DownloadsTotal tracks finished download jobs by outcome reason.
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dlgram_downloads_total",
		Help: "Total number of download jobs by terminal result",
	}, []string{"result"})

	// DownloadDuration tracks wall-clock time of download jobs.
	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dlgram_download_duration_seconds",
		Help:    "Wall-clock duration of download subprocess runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// ProbesTotal tracks metadata probes by outcome.
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dlgram_probes_total",
		Help: "Total number of metadata probes by result",
	}, []string{"result"})

	// JanitorRemovedTotal tracks workspace files reclaimed by the janitor.
	JanitorRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dlgram_janitor_removed_files_total",
		Help: "Total number of expired workspace files removed by the janitor",
	})

	// ProcTerminateTotal tracks subprocess termination signals by outcome.
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dlgram_proc_terminate_total",
		Help: "Total number of subprocess termination attempts by signal and outcome",
	}, []string{"signal", "outcome"})
)

// SetSessionsActive records the current session count.
func SetSessionsActive(n int) {
	SessionsActive.Set(float64(n))
}

// IncDownload records one finished download job with its terminal result.
func IncDownload(result string) {
	DownloadsTotal.WithLabelValues(result).Inc()
}

// ObserveDownloadDuration records the duration of one download run.
func ObserveDownloadDuration(d time.Duration) {
	DownloadDuration.Observe(d.Seconds())
}

// IncProbe records one metadata probe outcome.
func IncProbe(result string) {
	ProbesTotal.WithLabelValues(result).Inc()
}

// AddJanitorRemoved records files reclaimed during one sweep.
func AddJanitorRemoved(n int) {
	JanitorRemovedTotal.Add(float64(n))
}

// IncProcTerminate records one termination signal outcome.
func IncProcTerminate(signal, outcome string) {
	ProcTerminateTotal.WithLabelValues(signal, outcome).Inc()
}
