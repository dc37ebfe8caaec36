package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/streamgate/internal/apperrors"
	"github.com/streamgate/streamgate/internal/providers"
	"github.com/streamgate/streamgate/internal/usenet"
)

func TestParseRangeHeader(t *testing.T) {
	r, ok := parseRangeHeader("bytes=100-199")
	require.True(t, ok)
	assert.Equal(t, int64(100), r.Start)
	assert.Equal(t, int64(199), r.End)

	r, ok = parseRangeHeader("bytes=500-")
	require.True(t, ok)
	assert.Equal(t, int64(500), r.Start)
	assert.Equal(t, int64(-1), r.End)

	_, ok = parseRangeHeader("")
	assert.False(t, ok)

	_, ok = parseRangeHeader("bytes=-500")
	assert.False(t, ok, "suffix ranges fall back to full-file serving")

	_, ok = parseRangeHeader("garbage")
	assert.False(t, ok)
}

func newTestStreamer() *RangeStreamer {
	return New(nil, nil, nil, Options{}, nil)
}

func TestCheckMKVGateRejectsBeforeExtractionThreshold(t *testing.T) {
	rs := newTestStreamer()
	h := usenet.NewDownloadHandle("nzo1", "Movie.mkv", "http://x/nzb", providers.MediaTypeMovie, nil)
	h.SetTotalEstimated(1000)
	h.SetFileSizeOnDisk(500) // 50% < default 80% gate

	err := rs.checkMKVGate(h)
	assert.ErrorIs(t, err, apperrors.ErrMKVSeekTooEarly)
}

func TestCheckMKVGateAllowsPastThreshold(t *testing.T) {
	rs := newTestStreamer()
	h := usenet.NewDownloadHandle("nzo1", "Movie.mkv", "http://x/nzb", providers.MediaTypeMovie, nil)
	h.SetTotalEstimated(1000)
	h.SetFileSizeOnDisk(900) // 90% >= 80% gate

	assert.NoError(t, rs.checkMKVGate(h))
}

func TestClassifySeekThresholds(t *testing.T) {
	rs := newTestStreamer()
	h := usenet.NewDownloadHandle("nzo1", "Movie.mp4", "http://x/nzb", providers.MediaTypeMovie, nil)
	h.SetFileSizeOnDisk(1_000_000)

	stream := usenet.NewActiveStream(h, false)
	stream.Touch(100_000)

	assert.Equal(t, SeekSequential, rs.classifySeek(nil, stream, 101_000, h))
	assert.Equal(t, SeekForward, rs.classifySeek(nil, stream, 300_000, h))
	assert.Equal(t, SeekBackward, rs.classifySeek(nil, stream, 50_000, h))
}
