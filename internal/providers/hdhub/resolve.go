package hdhub

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/streamgate/streamgate/internal/apperrors"
	"github.com/streamgate/streamgate/internal/providers"
)

// hostPriority implements §4.5's resolution-priority ordering for stream
// selection when multiple resolutions exist for the same request:
//
//	pixeldrain.{com,net} > workers.dev > r2.dev > hubcdn.fans > googleusercontent.com > first-available
//
// Lower value sorts first (higher priority).
func hostPriority(rawURL string) int {
	host := strings.ToLower(hostOf(rawURL))
	switch {
	case strings.HasSuffix(host, "pixeldrain.com"), strings.HasSuffix(host, "pixeldrain.net"):
		return 0
	case strings.HasSuffix(host, "workers.dev"):
		return 1
	case strings.HasSuffix(host, "r2.dev"):
		return 2
	case strings.HasSuffix(host, "hubcdn.fans"):
		return 3
	case strings.HasSuffix(host, "googleusercontent.com"):
		return 4
	default:
		return 5
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// HostPriority exposes hostPriority for callers outside the package (the
// orchestrator uses it to break ties among multiple resolutions of the same
// candidate).
func HostPriority(rawURL string) int { return hostPriority(rawURL) }

// ResolveLink turns one raw link into a final StreamDescriptor, dispatching
// on the three link classes §4.5 distinguishes: redirect-carrier (contains
// "id="), host-specific extractor (hubcloud/hubdrive/hubcdn), or a direct
// video URL.
func (p *Provider) ResolveLink(ctx context.Context, link providers.RawLink) (*providers.StreamDescriptor, error) {
	finalURL, err := p.resolveRaw(ctx, link.URL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindResolutionFailed, "resolve link", err)
	}

	return &providers.StreamDescriptor{
		DisplayName: link.Title,
		Title:       link.Title,
		URL:         finalURL,
		Quality:     DetectQuality(link.Title),
		Languages:   DetectLanguages(link.Title, ""),
		SourceTag:   p.Name(),
	}, nil
}

func (p *Provider) resolveRaw(ctx context.Context, rawURL string) (string, error) {
	switch {
	case isDirectVideoURL(rawURL):
		return rawURL, nil
	case isRedirectCarrier(rawURL):
		return p.decodeRedirectCarrier(ctx, rawURL)
	default:
		if extractor := hostExtractorFor(rawURL); extractor != "" {
			return p.extractHostSpecific(ctx, extractor, rawURL)
		}
	}
	return "", fmt.Errorf("unrecognized link class for %s", rawURL)
}
