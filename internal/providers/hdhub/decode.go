package hdhub

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// redirectCarrierFragmentS matches the first half of the concatenated
// base64 payload embedded as `s('o','...')` on a redirect-carrier page.
var redirectCarrierFragmentS = regexp.MustCompile(`s\(\s*'o'\s*,\s*'([^']+)'\s*\)`)

// redirectCarrierFragmentCK matches the second half, embedded as
// `ck('_wp_http_...','...')`.
var redirectCarrierFragmentCK = regexp.MustCompile(`ck\(\s*'_wp_http_[^']*'\s*,\s*'([^']+)'\s*\)`)

// redirectPayload is the JSON object recovered after the full decode chain.
type redirectPayload struct {
	O         string
	Data      string
	BlogURL   string
	TotalTime int
	WPHTTP1   string
}

// isRedirectCarrier reports whether rawURL is a redirect-carrier link (§4.5:
// distinguished by containing "id=").
func isRedirectCarrier(rawURL string) bool {
	return strings.Contains(rawURL, "id=")
}

// decodeRedirectCarrier fetches the landing HTML, extracts and concatenates
// the two obfuscated fragments, and runs them through the literal
// base64(rot13(base64(base64(concat)))) contract described in §4.5/§9,
// falling back to a two-decode base64(base64(...)) chain on parse failure.
func (p *Provider) decodeRedirectCarrier(ctx context.Context, rawURL string) (string, error) {
	body, err := p.fetchBody(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch redirect carrier page: %w", err)
	}

	concat, err := extractFragments(body)
	if err != nil {
		return "", err
	}

	payload, err := decodePayload(concat)
	if err != nil {
		return "", fmt.Errorf("decode redirect payload: %w", err)
	}

	if payload.O != "" {
		final, err := base64.StdEncoding.DecodeString(payload.O)
		if err != nil {
			return "", fmt.Errorf("decode final url: %w", err)
		}
		return string(final), nil
	}

	if payload.BlogURL != "" && payload.Data != "" {
		return p.followBlogURLRedirect(ctx, payload)
	}

	return "", fmt.Errorf("redirect payload carried neither o nor blog_url+data")
}

func extractFragments(body string) (string, error) {
	sMatch := redirectCarrierFragmentS.FindStringSubmatch(body)
	ckMatch := redirectCarrierFragmentCK.FindStringSubmatch(body)
	if len(sMatch) < 2 || len(ckMatch) < 2 {
		return "", fmt.Errorf("redirect carrier fragments not found on page")
	}
	return sMatch[1] + ckMatch[1], nil
}

// decodePayload runs the literal base64∘rot13∘base64∘base64 chain (innermost
// decode first): base64-decode, base64-decode, rot13, base64-decode, then
// parse as JSON. On failure it tries the two-decode base64∘base64 fallback
// (§9 "Alternative: on parse failure, attempt base64∘base64").
func decodePayload(concat string) (redirectPayload, error) {
	if payload, err := decodeFourStage(concat); err == nil {
		return payload, nil
	}
	return decodeTwoStage(concat)
}

func decodeFourStage(concat string) (redirectPayload, error) {
	step1, err := base64.StdEncoding.DecodeString(concat)
	if err != nil {
		return redirectPayload{}, err
	}
	step2, err := base64.StdEncoding.DecodeString(string(step1))
	if err != nil {
		return redirectPayload{}, err
	}
	step3 := rot13(string(step2))
	step4, err := base64.StdEncoding.DecodeString(step3)
	if err != nil {
		return redirectPayload{}, err
	}
	return parsePayloadJSON(step4)
}

func decodeTwoStage(concat string) (redirectPayload, error) {
	step1, err := base64.StdEncoding.DecodeString(concat)
	if err != nil {
		return redirectPayload{}, err
	}
	step2, err := base64.StdEncoding.DecodeString(string(step1))
	if err != nil {
		return redirectPayload{}, err
	}
	return parsePayloadJSON(step2)
}

func parsePayloadJSON(raw []byte) (redirectPayload, error) {
	if !gjson.ValidBytes(raw) {
		return redirectPayload{}, fmt.Errorf("decoded payload is not valid json")
	}
	parsed := gjson.ParseBytes(raw)
	return redirectPayload{
		O:         parsed.Get("o").String(),
		Data:      parsed.Get("data").String(),
		BlogURL:   parsed.Get("blog_url").String(),
		TotalTime: int(parsed.Get("total_time").Int()),
		WPHTTP1:   parsed.Get("wp_http1").String(),
	}, nil
}

func rot13(s string) string {
	rotate := func(r rune, base rune) rune {
		return base + (r-base+13)%26
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, rotate(r, 'a'))
		case r >= 'A' && r <= 'Z':
			out = append(out, rotate(r, 'A'))
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// followBlogURLRedirect handles the `o` empty, blog_url+data-present path:
// GET blog_url?re=base64(data), then poll the response body after the
// mandatory anti-abuse wait until a non-"Invalid Request" body appears,
// bounded to a handful of retries (§4.5).
func (p *Provider) followBlogURLRedirect(ctx context.Context, payload redirectPayload) (string, error) {
	target := fmt.Sprintf("%s?re=%s", payload.BlogURL, base64.StdEncoding.EncodeToString([]byte(payload.Data)))

	wait := time.Duration(payload.TotalTime+3) * time.Second
	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	const maxRetries = 5
	var lastBody string
	for attempt := 0; attempt < maxRetries; attempt++ {
		body, err := p.fetchBody(ctx, target)
		if err != nil {
			return "", fmt.Errorf("fetch blog_url redirect: %w", err)
		}
		lastBody = body
		if !strings.Contains(body, "Invalid Request") {
			return strings.TrimSpace(body), nil
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("blog_url redirect kept returning 'Invalid Request': %s", truncate(lastBody, 80))
}

func (p *Provider) fetchBody(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d fetching %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// queryParam extracts a single query parameter from rawURL's own query
// string. Parameters that appear only inside a #fragment are not read.
func queryParam(rawURL, name string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(name)
}
