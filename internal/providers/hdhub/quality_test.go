package hdhub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamgate/streamgate/internal/providers"
)

func TestDetectQualityExplicit(t *testing.T) {
	assert.Equal(t, providers.Quality2160p, DetectQuality("Movie.2160p.BluRay"))
	assert.Equal(t, providers.Quality1080p, DetectQuality("Movie.1080p.WEB-DL"))
	assert.Equal(t, providers.Quality720p, DetectQuality("Movie.720p.HDRip"))
}

func TestDetectQuality4KBeatsMissingResolution(t *testing.T) {
	assert.Equal(t, providers.Quality2160p, DetectQuality("Movie 4K UHD"))
}

func TestDetectQualityCodecFallback(t *testing.T) {
	assert.Equal(t, providers.Quality2160p, DetectQuality("Movie HEVC x265"))
	assert.Equal(t, providers.Quality1080p, DetectQuality("Movie h264 encode"))
}

func TestDetectLanguagesFromBadgeTakesPrecedence(t *testing.T) {
	langs := DetectLanguages("Movie English French", "Spanish, German")
	assert.Equal(t, []string{"spanish", "german"}, langs)
}

func TestDetectLanguagesFromTitle(t *testing.T) {
	langs := DetectLanguages("Movie English Hindi Dual Audio", "")
	assert.ElementsMatch(t, []string{"english", "hindi"}, langs)
}

func TestHostPriorityOrdering(t *testing.T) {
	assert.Less(t, HostPriority("https://pixeldrain.com/u/x"), HostPriority("https://x.workers.dev/y"))
	assert.Less(t, HostPriority("https://x.workers.dev/y"), HostPriority("https://bucket.r2.dev/z"))
	assert.Less(t, HostPriority("https://bucket.r2.dev/z"), HostPriority("https://hubcdn.fans/a"))
	assert.Less(t, HostPriority("https://hubcdn.fans/a"), HostPriority("https://lh3.googleusercontent.com/b"))
	assert.Less(t, HostPriority("https://lh3.googleusercontent.com/b"), HostPriority("https://random.example/c"))
}
