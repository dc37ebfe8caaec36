// Package validation implements RangeValidator (§4.2): HEAD probes that
// classify a URL as reachable and/or seekable (byte-range capable), plus the
// batch chunking policy used by the orchestrator's post-filter stage.
package validation

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/streamgate/streamgate/internal/httpclient"
)

// Status is the outcome of a plain reachability probe.
type Status int

const (
	Unreachable Status = iota
	Valid
)

// SeekResult is the outcome of a seekability probe.
type SeekResult struct {
	Seekable bool
	Filename string
}

// opaqueHashName matches filenames that look like an opaque hash rather than
// a human title: 50+ chars of only [A-Za-z0-9_-].
var opaqueHashName = regexp.MustCompile(`^[A-Za-z0-9_-]{50,}$`)

var filenameStarPattern = regexp.MustCompile(`(?i)filename\*\s*=\s*UTF-8''([^;]+)`)
var filenameQuotedPattern = regexp.MustCompile(`(?i)filename\s*=\s*"([^"]+)"`)
var filenameBarePattern = regexp.MustCompile(`(?i)filename\s*=\s*([^;]+)`)

// Options configures a Validator.
type Options struct {
	Disabled        bool
	Timeout         time.Duration
	BatchSize       int
	TrustedHosts    []string
	CapriciousHosts []string
	MemoSize        int
}

// Validator issues HEAD probes per §4.2's policy.
type Validator struct {
	client          *http.Client
	disabled        bool
	batchSize       int
	trustedHosts    map[string]struct{}
	capriciousHosts map[string]struct{}
	memo            *lru.Cache[string, SeekResult]
}

// New creates a Validator from opts.
func New(opts Options) *Validator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	memoSize := opts.MemoSize
	if memoSize <= 0 {
		memoSize = 512
	}

	trusted := make(map[string]struct{}, len(opts.TrustedHosts))
	for _, h := range opts.TrustedHosts {
		trusted[strings.ToLower(h)] = struct{}{}
	}
	capricious := make(map[string]struct{}, len(opts.CapriciousHosts))
	for _, h := range opts.CapriciousHosts {
		capricious[strings.ToLower(h)] = struct{}{}
	}

	memo, _ := lru.New[string, SeekResult](memoSize)

	return &Validator{
		client:          httpclient.New(httpclient.WithTimeout(timeout)),
		disabled:        opts.Disabled,
		batchSize:       batchSize,
		trustedHosts:    trusted,
		capriciousHosts: capricious,
		memo:            memo,
	}
}

// IsTrustedHost reports whether rawURL's host bypasses validation by rule.
func (v *Validator) IsTrustedHost(rawURL string) bool {
	host := hostOf(rawURL)
	_, ok := v.trustedHosts[host]
	return ok
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Validate issues a HEAD probe and accepts 2xx/3xx responses (§4.2).
// A disabled Validator always returns Valid (the configurable tautology).
func (v *Validator) Validate(ctx context.Context, rawURL string) (Status, error) {
	if v.disabled || v.IsTrustedHost(rawURL) {
		return Valid, nil
	}

	resp, err := v.head(ctx, rawURL, "")
	if err != nil {
		return Unreachable, err
	}
	defer resp.Body.Close()

	// Capricious hosts (§4.2) are known to 3xx-redirect HEAD probes to pages
	// that never actually serve the file, so a bare "2xx or 3xx" pass is too
	// lenient for them: require an explicit 200, not just any redirect.
	if v.isCapricious(rawURL) {
		if resp.StatusCode == http.StatusOK {
			return Valid, nil
		}
		return Unreachable, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return Valid, nil
	}
	return Unreachable, nil
}

// ValidateSeekable issues a ranged HEAD probe and determines whether the URL
// serves byte ranges, additionally extracting a filename hint from
// Content-Disposition. Trusted hosts are treated as seekable without a
// probe; a disabled Validator is likewise a tautology.
func (v *Validator) ValidateSeekable(ctx context.Context, rawURL string) (SeekResult, error) {
	if v.disabled || v.IsTrustedHost(rawURL) {
		return SeekResult{Seekable: true}, nil
	}

	if v.memo != nil {
		if cached, ok := v.memo.Get(rawURL); ok {
			return cached, nil
		}
	}

	resp, err := v.head(ctx, rawURL, "bytes=0-0")
	if err != nil {
		return SeekResult{}, err
	}
	defer resp.Body.Close()

	result := SeekResult{Filename: extractFilename(resp.Header.Get("Content-Disposition"))}

	// Seekability itself needs no capricious-host distinction: admit only on
	// an explicit 206, or a 200 paired with Accept-Ranges: bytes. The
	// capricious-host special rule (§4.2) instead tightens plain
	// reachability in Validate, where a capricious host's redirect-happy
	// HEAD responses would otherwise pass too easily.
	result.Seekable = resp.StatusCode == http.StatusPartialContent ||
		(resp.StatusCode == http.StatusOK && hasAcceptRangesBytes(resp.Header))

	if v.memo != nil {
		v.memo.Add(rawURL, result)
	}
	return result, nil
}

func (v *Validator) isCapricious(rawURL string) bool {
	_, ok := v.capriciousHosts[hostOf(rawURL)]
	return ok
}

func hasAcceptRangesBytes(h http.Header) bool {
	return strings.EqualFold(strings.TrimSpace(h.Get("Accept-Ranges")), "bytes")
}

func (v *Validator) head(ctx context.Context, rawURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return v.client.Do(req)
}

// extractFilename decodes a filename from a Content-Disposition header value
// using, in order, the filename*=UTF-8''..., filename="...", and bare
// filename=... patterns (§4.2). Names that look like an opaque hash are
// rejected.
func extractFilename(header string) string {
	if header == "" {
		return ""
	}

	var raw string
	switch {
	case filenameStarPattern.MatchString(header):
		raw = filenameStarPattern.FindStringSubmatch(header)[1]
		if decoded, err := url.QueryUnescape(raw); err == nil {
			raw = decoded
		}
	case filenameQuotedPattern.MatchString(header):
		raw = filenameQuotedPattern.FindStringSubmatch(header)[1]
	case filenameBarePattern.MatchString(header):
		raw = strings.TrimSpace(filenameBarePattern.FindStringSubmatch(header)[1])
	default:
		return ""
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if decoded, params, err := mime.ParseMediaType("attachment; filename=\"" + raw + "\""); err == nil {
		if fn, ok := params["filename"]; ok {
			raw = fn
		}
		_ = decoded
	}

	if opaqueHashName.MatchString(raw) {
		return ""
	}
	return raw
}

// BatchSize returns the concurrency chunk size batch validation should use
// (§4.2: "processes URLs in chunks of 5").
func (v *Validator) BatchSize() int {
	return v.batchSize
}

// ValidateSeekableBatch validates urls in chunks of BatchSize, running each
// chunk's probes concurrently, matching §4.2's "avoid overwhelming
// upstream/local resources" concurrency rule.
func (v *Validator) ValidateSeekableBatch(ctx context.Context, urls []string) map[string]SeekResult {
	results := make(map[string]SeekResult, len(urls))
	var mu sync.Mutex

	for start := 0; start < len(urls); start += v.batchSize {
		end := start + v.batchSize
		if end > len(urls) {
			end = len(urls)
		}
		chunk := urls[start:end]

		var wg sync.WaitGroup
		for _, u := range chunk {
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				res, err := v.ValidateSeekable(ctx, u)
				if err != nil {
					return
				}
				mu.Lock()
				results[u] = res
				mu.Unlock()
			}(u)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return results
		}
	}

	return results
}
