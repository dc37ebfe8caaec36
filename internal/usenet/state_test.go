package usenet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/streamgate/streamgate/internal/providers"
	"github.com/streamgate/streamgate/internal/usenet/fileserver"
)

func TestDownloadHandleStateTransitions(t *testing.T) {
	h := NewDownloadHandle("nzo1", "Movie.Title.2020", "http://example/nzb", providers.MediaTypeMovie, nil)
	assert.Equal(t, StateQueued, h.State())

	h.SetState(StateDownloading)
	h.SetPercentComplete(42)
	assert.Equal(t, StateDownloading, h.State())
	assert.Equal(t, 42.0, h.PercentComplete())
}

func TestActiveStreamTouchIsMonotonic(t *testing.T) {
	h := NewDownloadHandle("nzo1", "Movie.Title.2020", "http://example/nzb", providers.MediaTypeMovie, nil)
	h.SetFileSizeOnDisk(1000)
	s := NewActiveStream(h, false)

	first := s.LastAccessTs()
	time.Sleep(time.Millisecond)
	s.Touch(100)
	assert.True(t, s.LastAccessTs().After(first))
	assert.Equal(t, int64(100), s.LastPlaybackByte())

	s.Touch(50)
	assert.Equal(t, int64(100), s.LastPlaybackByte(), "playback byte must not regress on a smaller offset")
}

func TestActiveStreamPlaybackPercent(t *testing.T) {
	h := NewDownloadHandle("nzo1", "Movie.Title.2020", "http://example/nzb", providers.MediaTypeMovie, nil)
	h.SetFileSizeOnDisk(1000)
	s := NewActiveStream(h, false)

	assert.Equal(t, 0.0, s.PlaybackPercent())
	s.Touch(500)
	assert.Equal(t, 0.5, s.PlaybackPercent())
}

func TestSelectVideoFileExcludesSamplesAndPicksLargest(t *testing.T) {
	h := NewDownloadHandle("nzo1", "The.Movie.2020", "http://example/nzb", providers.MediaTypeMovie, nil)

	entries := []fileserver.FileEntry{
		{Path: "The.Movie.2020/sample.mkv", Name: "sample.mkv", SizeBytes: 100},
		{Path: "The.Movie.2020/movie.mkv", Name: "movie.mkv", SizeBytes: 5_000_000},
		{Path: "Unrelated.Title/movie.mkv", Name: "movie.mkv", SizeBytes: 9_000_000},
	}

	path := selectVideoFile(entries, h)
	assert.Equal(t, "The.Movie.2020/movie.mkv", path)
	assert.Equal(t, int64(5_000_000), h.FileSizeOnDisk())
}

func TestSelectVideoFileReturnsEmptyWhenNoMatch(t *testing.T) {
	h := NewDownloadHandle("nzo1", "Nonexistent.Title", "http://example/nzb", providers.MediaTypeMovie, nil)
	entries := []fileserver.FileEntry{
		{Path: "Other.Title/movie.mkv", Name: "movie.mkv", SizeBytes: 1000},
	}
	assert.Empty(t, selectVideoFile(entries, h))
}
