// SPDX-License-Identifier: MIT

package ytdlp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func sampleFormats() []Format {
	return []Format{
		{ID: "18", Ext: "mp4", Height: 360, VCodec: "avc1", ACodec: "mp4a", Filesize: 8 << 20},
		{ID: "140", Ext: "m4a", ABR: 128, VCodec: "none", ACodec: "mp4a", Filesize: 5 << 20},
		{ID: "22", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "mp4a", Filesize: 50 << 20},
		{ID: "247", Ext: "webm", Height: 720, VCodec: "vp9", ACodec: "none"},
		{ID: "249", Ext: "webm", ABR: 50, VCodec: "none", ACodec: "opus"},
		{ID: "35", Ext: "mp4", Height: 480, VCodec: "avc1", ACodec: "mp4a", Filesize: 20 << 20},
	}
}

func TestFilterByKindVideo(t *testing.T) {
	got := FilterByKind(sampleFormats(), KindVideo)

	ids := make([]string, 0, len(got))
	for _, f := range got {
		ids = append(ids, f.ID)
	}
	// Video keeps only pre-muxed descriptors; 247 has no audio stream.
	assert.ElementsMatch(t, []string{"18", "22", "35"}, ids)
}

func TestFilterByKindAudio(t *testing.T) {
	got := FilterByKind(sampleFormats(), KindAudio)

	ids := make([]string, 0, len(got))
	for _, f := range got {
		ids = append(ids, f.ID)
	}
	// Audio keeps only descriptors without a video stream.
	assert.ElementsMatch(t, []string{"140", "249"}, ids)
}

func TestSortForPresentation(t *testing.T) {
	formats := FilterByKind(sampleFormats(), KindVideo)
	SortForPresentation(formats)

	heights := make([]int, 0, len(formats))
	for _, f := range formats {
		heights = append(heights, f.Height)
	}
	if diff := cmp.Diff([]int{720, 480, 360}, heights); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestSortForPresentationAudio(t *testing.T) {
	formats := FilterByKind(sampleFormats(), KindAudio)
	SortForPresentation(formats)

	assert.Equal(t, "140", formats[0].ID, "highest bitrate first")
	assert.Equal(t, "249", formats[1].ID)
}

func TestTruncate(t *testing.T) {
	formats := []Format{
		{ID: "a", Height: 1080}, {ID: "b", Height: 720}, {ID: "c", Height: 480},
	}
	SortForPresentation(formats)

	got := Truncate(formats, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID, "truncation keeps the highest-ranked options")
	assert.Equal(t, "b", got[1].ID)

	assert.Len(t, Truncate(formats, 10), 3, "cap above length is a no-op")
	assert.Len(t, Truncate(formats, 0), 3, "non-positive cap disables truncation")
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "720p (50MB)", Format{Height: 720, VCodec: "avc1", ACodec: "mp4a", Filesize: 50 << 20}.Label())
	assert.Equal(t, "480p", Format{Height: 480, VCodec: "avc1", ACodec: "mp4a"}.Label())
	assert.Equal(t, "128 kbps", Format{ABR: 128, ACodec: "opus", VCodec: "none"}.Label())
	assert.Equal(t, "raw", Format{ID: "raw"}.Label())
}

func TestCodecFlags(t *testing.T) {
	assert.True(t, Format{VCodec: "avc1"}.HasVideo())
	assert.False(t, Format{VCodec: "none"}.HasVideo())
	assert.False(t, Format{}.HasVideo())
	assert.True(t, Format{ACodec: "opus"}.HasAudio())
	assert.False(t, Format{ACodec: "none"}.HasAudio())
}
