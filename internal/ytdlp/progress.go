// SPDX-License-Identifier: MIT

package ytdlp

import (
	"math"
	"regexp"
	"strconv"
	"sync/atomic"
)

// progressRe matches the tool's progress marker, e.g. "[download]  42.0% of ...".
var progressRe = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// ParseProgress extracts a percentage-complete value from one raw output
// line. It returns false for lines without the progress marker; such lines
// are ignored, never an error.
func ParseProgress(line string) (float64, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// Tracker is a single-slot cell holding the latest observed percentage. One
// goroutine publishes values as output lines arrive; another samples it on a
// fixed tick, decoupling the line arrival rate from the update rate.
type Tracker struct {
	bits atomic.Uint64
	seen atomic.Bool
}

// Observe publishes a new percentage, replacing the previous one.
func (t *Tracker) Observe(pct float64) {
	t.bits.Store(math.Float64bits(pct))
	t.seen.Store(true)
}

// Latest returns the most recent percentage, or false if none was observed.
func (t *Tracker) Latest() (float64, bool) {
	if !t.seen.Load() {
		return 0, false
	}
	return math.Float64frombits(t.bits.Load()), true
}
