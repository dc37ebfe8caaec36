// Package search implements SearchOrchestrator (§4.4): metadata lookup,
// query generation, parallel provider fan-out, best-title selection, link
// resolution, post-filtering and seek-validation, and final ranking.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/purell"

	"github.com/streamgate/streamgate/internal/catalog"
	"github.com/streamgate/streamgate/internal/health"
	"github.com/streamgate/streamgate/internal/providers"
	"github.com/streamgate/streamgate/internal/titlematch"
	"github.com/streamgate/streamgate/internal/validation"
)

// Options configures an Orchestrator.
type Options struct {
	ScraperTimeout     time.Duration
	HostBlocklist      []string
	SuspiciousPatterns []string
	MaxTopK            int // top-k candidates retried on year-gate mismatch, default 5
}

// Orchestrator runs the full search-to-streams pipeline across a set of
// ProviderSearch adapters.
type Orchestrator struct {
	catalog   *catalog.Client
	providers []providers.ProviderSearch
	matcher   *titlematch.Matcher
	validator *validation.Validator

	scraperTimeout time.Duration
	hostBlocklist  map[string]struct{}
	suspicious     []string
	maxTopK        int

	logger *slog.Logger
}

// New creates an Orchestrator.
func New(cat *catalog.Client, provs []providers.ProviderSearch, matcher *titlematch.Matcher, validator *validation.Validator, opts Options, logger *slog.Logger) *Orchestrator {
	topK := opts.MaxTopK
	if topK <= 0 {
		topK = 5
	}
	timeout := opts.ScraperTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	blocklist := make(map[string]struct{}, len(opts.HostBlocklist))
	for _, h := range opts.HostBlocklist {
		blocklist[strings.ToLower(h)] = struct{}{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		catalog:        cat,
		providers:      provs,
		matcher:        matcher,
		validator:      validator,
		scraperTimeout: timeout,
		hostBlocklist:  blocklist,
		suspicious:     opts.SuspiciousPatterns,
		maxTopK:        topK,
		logger:         logger.With("component", "search_orchestrator"),
	}
}

// providerHit is one provider's search result for one generated query.
type providerHit struct {
	provider   providers.ProviderSearch
	query      string
	candidates []providers.CandidateTitle
}

// rankedCandidate pairs a providers.MatchedTitle (§3) with the provider that
// produced it, so collectMovieLinks/collectSeriesLinks can call back into
// the right adapter for LoadContentPage/ResolveLink.
type rankedCandidate struct {
	provider providers.ProviderSearch
	providers.MatchedTitle
}

// Search runs the full §4.4 pipeline for req and returns a ranked,
// deduplicated list of playable streams.
func (o *Orchestrator) Search(ctx context.Context, req providers.SearchRequest) ([]providers.StreamDescriptor, error) {
	meta, err := o.catalog.Lookup(ctx, req.CatalogID, req.Type)
	if err != nil {
		o.logger.WarnContext(ctx, "catalog lookup failed, aborting search", "catalog_id", req.CatalogID, "error", err)
		return nil, nil
	}

	queries := generateQueries(meta)
	if len(queries) == 0 {
		return nil, nil
	}

	hits := o.fanOut(ctx, queries, req.Type)

	ranked := o.rankAll(hits, meta.CanonicalName)
	if len(ranked) == 0 {
		return nil, nil
	}

	var links []providers.RawLink
	var linkProvider map[string]providers.ProviderSearch

	if req.IsSeries() {
		links, linkProvider = o.collectSeriesLinks(ctx, ranked, req)
	} else {
		links, linkProvider = o.collectMovieLinks(ctx, ranked, meta)
	}
	if len(links) == 0 {
		return nil, nil
	}

	streams := o.resolveLinks(ctx, links, linkProvider)
	streams = o.postFilter(streams, req)
	streams = o.validateSeekability(ctx, streams)

	sortStreams(streams)
	return streams, nil
}

// generateQueries builds §4.4 step 2's query set, deduplicated on
// normalized-lowercase form.
func generateQueries(meta *catalog.Metadata) []string {
	var candidates []string

	withYear := meta.CanonicalName
	if meta.Year > 0 {
		withYear = fmt.Sprintf("%s %d", meta.CanonicalName, meta.Year)
		candidates = append(candidates, withYear)
	}
	candidates = append(candidates, meta.CanonicalName)

	if meta.OriginalName != "" && meta.OriginalName != meta.CanonicalName {
		candidates = append(candidates, meta.OriginalName)
	}
	for _, alt := range meta.AlternateNames {
		candidates = append(candidates, alt)
	}

	noPunct := regexp.MustCompile(`[^\w\s]`)
	base := make([]string, len(candidates))
	copy(base, candidates)
	for _, c := range base {
		stripped := strings.Join(strings.Fields(noPunct.ReplaceAllString(c, " ")), " ")
		if stripped != "" {
			candidates = append(candidates, stripped)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// fanOut launches one search per (query, provider) concurrently (§4.4 step
// 3) and collects whatever succeeds.
func (o *Orchestrator) fanOut(ctx context.Context, queries []string, mediaType providers.MediaType) []providerHit {
	var wg sync.WaitGroup
	results := make(chan providerHit, len(queries)*len(o.providers))

	for _, q := range queries {
		for _, p := range o.providers {
			wg.Add(1)
			go func(query string, prov providers.ProviderSearch) {
				defer wg.Done()

				reqCtx, cancel := context.WithTimeout(ctx, o.scraperTimeout)
				defer cancel()

				start := time.Now()
				candidates, err := prov.Search(reqCtx, query, mediaType)
				outcome := "ok"
				if err != nil {
					outcome = "error"
				}
				health.ProviderSearchDuration.WithLabelValues(prov.Name(), outcome).Observe(time.Since(start).Seconds())
				if err != nil {
					o.logger.DebugContext(ctx, "provider search failed", "provider", prov.Name(), "query", query, "error", err)
					return
				}
				results <- providerHit{provider: prov, query: query, candidates: candidates}
			}(q, p)
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var hits []providerHit
	for h := range results {
		hits = append(hits, h)
	}
	return hits
}

// rankAll scores every candidate from every hit against canonicalName and
// returns them sorted best-first (§4.4 step 4).
func (o *Orchestrator) rankAll(hits []providerHit, canonicalName string) []rankedCandidate {
	var all []rankedCandidate
	for _, h := range hits {
		for _, c := range h.candidates {
			all = append(all, rankedCandidate{
				provider: h.provider,
				MatchedTitle: providers.MatchedTitle{
					CandidateTitle: c,
					Score:          o.matcher.Score(c.Title, canonicalName),
				},
			})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	return all
}

// collectMovieLinks implements §4.4 step 5's year-gate: load the top-ranked
// page, and if its year mismatches the catalog year by more than 1, retry
// against the next candidates up to maxTopK.
func (o *Orchestrator) collectMovieLinks(ctx context.Context, ranked []rankedCandidate, meta *catalog.Metadata) ([]providers.RawLink, map[string]providers.ProviderSearch) {
	limit := o.maxTopK
	if limit > len(ranked) {
		limit = len(ranked)
	}

	for i := 0; i < limit; i++ {
		cand := ranked[i]
		page, err := cand.provider.LoadContentPage(ctx, cand.URL)
		if err != nil {
			continue
		}
		if meta.Year > 0 && page.Year > 0 {
			diff := page.Year - meta.Year
			if diff < 0 {
				diff = -diff
			}
			if diff > 1 {
				continue
			}
		}
		return attributeLinks(page.Links, cand.provider)
	}
	return nil, nil
}

// collectSeriesLinks implements §4.4 step 6: locate the episode entry by
// exact season×episode match.
func (o *Orchestrator) collectSeriesLinks(ctx context.Context, ranked []rankedCandidate, req providers.SearchRequest) ([]providers.RawLink, map[string]providers.ProviderSearch) {
	limit := o.maxTopK
	if limit > len(ranked) {
		limit = len(ranked)
	}

	key := fmt.Sprintf("S%02dE%02d", req.Season, req.Episode)
	for i := 0; i < limit; i++ {
		cand := ranked[i]
		page, err := cand.provider.LoadContentPage(ctx, cand.URL)
		if err != nil {
			continue
		}
		if links, ok := page.EpisodeLinks[key]; ok && len(links) > 0 {
			return attributeLinks(links, cand.provider)
		}
	}
	return nil, nil
}

func attributeLinks(links []providers.RawLink, prov providers.ProviderSearch) ([]providers.RawLink, map[string]providers.ProviderSearch) {
	byURL := make(map[string]providers.ProviderSearch, len(links))
	for _, l := range links {
		byURL[l.URL] = prov
	}
	return links, byURL
}

// resolveLinks implements §4.4 step 7 (delegated to §4.5's StreamCatalog
// classification, per-provider).
func (o *Orchestrator) resolveLinks(ctx context.Context, links []providers.RawLink, byProvider map[string]providers.ProviderSearch) []providers.StreamDescriptor {
	var wg sync.WaitGroup
	results := make(chan providers.StreamDescriptor, len(links))

	for _, l := range links {
		prov, ok := byProvider[l.URL]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(link providers.RawLink, p providers.ProviderSearch) {
			defer wg.Done()
			stream, err := p.ResolveLink(ctx, link)
			if err != nil {
				o.logger.DebugContext(ctx, "link resolution failed", "provider", p.Name(), "url", link.URL, "error", err)
				return
			}
			results <- *stream
		}(l, prov)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var streams []providers.StreamDescriptor
	for s := range results {
		streams = append(streams, s)
	}
	return streams
}

var episodeTagRe = regexp.MustCompile(`(?i)S0?(\d+)E0?(\d+)`)

// postFilter implements §4.4 step 8.
func (o *Orchestrator) postFilter(streams []providers.StreamDescriptor, req providers.SearchRequest) []providers.StreamDescriptor {
	seen := make(map[string]struct{}, len(streams))
	var out []providers.StreamDescriptor

	for _, s := range streams {
		if s.URL == "" {
			continue
		}
		if strings.HasSuffix(strings.ToLower(s.URL), ".zip") {
			continue
		}
		if o.matchesSuspicious(s.URL) {
			continue
		}
		if o.isBlockedHost(s.URL) {
			continue
		}
		dedupKey := normalizeForDedup(s.URL)
		if _, dup := seen[dedupKey]; dup {
			continue
		}
		if req.IsSeries() && !matchesEpisode(s, req) {
			continue
		}
		seen[dedupKey] = struct{}{}
		out = append(out, s)
	}
	return out
}

// normalizeForDedup canonicalizes a URL before the §4.4 step 8 dedup check,
// so links that differ only in trailing slash, default port, or query key
// order don't slip through as distinct entries. Falls back to the raw URL
// on a parse failure.
func normalizeForDedup(rawURL string) string {
	normalized, err := purell.NormalizeURLString(rawURL, purell.FlagsSafe|purell.FlagRemoveTrailingSlash|purell.FlagRemoveDefaultPort)
	if err != nil {
		return rawURL
	}
	return normalized
}

func (o *Orchestrator) matchesSuspicious(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range o.suspicious {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) isBlockedHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, blocked := o.hostBlocklist[strings.ToLower(u.Hostname())]
	return blocked
}

// matchesEpisode enforces step 8's season/episode regex check against
// whatever descriptor metadata is available.
func matchesEpisode(s providers.StreamDescriptor, req providers.SearchRequest) bool {
	m := episodeTagRe.FindStringSubmatch(s.Title + " " + s.DisplayName)
	if m == nil {
		// No explicit tag found; admit rather than reject, since not every
		// resolved link carries season/episode text (e.g. a direct CDN URL).
		return true
	}
	return m[1] == fmt.Sprintf("%d", req.Season) && m[2] == fmt.Sprintf("%d", req.Episode)
}

// validateSeekability implements §4.4 step 9: trusted hosts bypass, the
// remainder are seek-validated in batches, and a recovered filename rewrites
// the displayed title while preserving language tags.
func (o *Orchestrator) validateSeekability(ctx context.Context, streams []providers.StreamDescriptor) []providers.StreamDescriptor {
	if o.validator == nil {
		return streams
	}

	var toValidate []string
	var trusted []providers.StreamDescriptor
	byURL := make(map[string]int, len(streams))

	for i, s := range streams {
		if o.validator.IsTrustedHost(s.URL) {
			trusted = append(trusted, s)
			continue
		}
		toValidate = append(toValidate, s.URL)
		byURL[s.URL] = i
	}

	results := o.validator.ValidateSeekableBatch(ctx, toValidate)

	out := trusted
	for _, s := range streams {
		idx, needsCheck := byURL[s.URL]
		if !needsCheck {
			continue
		}
		res, ok := results[streams[idx].URL]
		if !ok || !res.Seekable {
			continue
		}
		if res.Filename != "" {
			s.DisplayName = res.Filename
		}
		out = append(out, s)
	}
	return out
}

// sortStreams implements §4.4 step 10: resolution bucket descending, then
// size descending within a bucket.
func sortStreams(streams []providers.StreamDescriptor) {
	sort.SliceStable(streams, func(i, j int) bool {
		ri, rj := streams[i].Quality.Rank(), streams[j].Quality.Rank()
		if ri != rj {
			return ri < rj
		}
		return streams[i].SizeBytes > streams[j].SizeBytes
	})
}
