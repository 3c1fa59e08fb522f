// SPDX-License-Identifier: MIT

// Package ytdlp wraps the external probe/download tool: metadata probing,
// supervised download subprocess runs and progress-line parsing.
package ytdlp

import (
	"fmt"
	"sort"
)

// MediaKind selects the class of deliverable the user asked for.
type MediaKind int

const (
	KindVideo MediaKind = iota
	KindAudio
)

func (k MediaKind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "video"
}

// Format is an immutable snapshot of one selectable quality option, derived
// from probing the source.
type Format struct {
	ID       string  `json:"format_id"`
	Ext      string  `json:"ext"`
	Height   int     `json:"height"`
	ABR      float64 `json:"abr"`
	VCodec   string  `json:"vcodec"`
	ACodec   string  `json:"acodec"`
	Filesize int64   `json:"filesize,omitempty"`
}

// HasVideo reports whether the descriptor carries a video stream.
func (f Format) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the descriptor carries an audio stream.
func (f Format) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// Label renders the descriptor for a choice button.
func (f Format) Label() string {
	switch {
	case f.HasVideo():
		if f.Filesize > 0 {
			return fmt.Sprintf("%dp (%s)", f.Height, humanSize(f.Filesize))
		}
		return fmt.Sprintf("%dp", f.Height)
	case f.ABR > 0:
		return fmt.Sprintf("%.0f kbps", f.ABR)
	default:
		return f.ID
	}
}

// Metadata is the result of probing one source URL.
type Metadata struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Duration   float64  `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	WebpageURL string   `json:"webpage_url"`
	Formats    []Format `json:"formats"`
}

// FilterByKind keeps the descriptors deliverable as kind: video keeps only
// pre-muxed entries (both codecs present), audio keeps audio-only entries.
func FilterByKind(formats []Format, kind MediaKind) []Format {
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		switch kind {
		case KindVideo:
			if f.HasVideo() && f.HasAudio() {
				out = append(out, f)
			}
		case KindAudio:
			if f.HasAudio() && !f.HasVideo() {
				out = append(out, f)
			}
		}
	}
	return out
}

// SortForPresentation orders descriptors best-first: descending height for
// video, descending bitrate for audio. The sort is stable so equal-ranked
// entries keep the tool's original order.
func SortForPresentation(formats []Format) {
	sort.SliceStable(formats, func(i, j int) bool {
		a, b := formats[i], formats[j]
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.ABR > b.ABR
	})
}

// Truncate bounds the choice list to max entries, dropping the lowest-ranked
// options. Call after SortForPresentation.
func Truncate(formats []Format, max int) []Format {
	if max <= 0 || len(formats) <= max {
		return formats
	}
	return formats[:max]
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.0fMB", float64(n)/mb)
	}
	return fmt.Sprintf("%.0fKB", float64(n)/1024)
}
