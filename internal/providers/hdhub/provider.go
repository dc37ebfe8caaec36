// Package hdhub implements the 4KHDHub HTTP-scraping ProviderSearch adapter
// and the StreamCatalog link-resolution pipeline described in spec §4.5.
package hdhub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/streamgate/streamgate/internal/httpclient"
	"github.com/streamgate/streamgate/internal/providers"
)

// maxRedirectHops bounds the 10Gbps extractor's redirect-follow loop. The
// spec leaves this open (§9 Open Questions); fixed here per DESIGN.md.
const maxRedirectHops = 10

// Provider scrapes 4KHDHub's movie/series catalog and detail pages, and
// resolves the obfuscated/host-specific links those pages embed.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	maxLinks   int

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// New creates a Provider pointed at baseURL.
func New(baseURL string, scraperTimeout time.Duration, maxLinks int) *Provider {
	if maxLinks <= 0 {
		maxLinks = 5
	}
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpclient.New(httpclient.WithTimeout(scraperTimeout)),
		maxLinks:   maxLinks,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// hostLimiter returns the shared rate limiter for host, creating one bounded
// to 2 req/s with a burst of 3 the first time it is seen. The orchestrator's
// per-(query,provider) fan-out can otherwise hit the same flaky host with
// many concurrent requests for a single SearchRequest (§4.4 step 3).
func (p *Provider) hostLimiter(host string) *rate.Limiter {
	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()
	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(2), 3)
		p.limiters[host] = l
	}
	return l
}

func (p *Provider) Name() string { return "4khdhub" }

// Search issues `GET {providerBase}/?s={query}` and parses movie cards (§6).
func (p *Provider) Search(ctx context.Context, query string, mediaType providers.MediaType) ([]providers.CandidateTitle, error) {
	searchURL := fmt.Sprintf("%s/?s=%s", p.baseURL, url.QueryEscape(query))

	doc, err := p.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("4khdhub search: %w", err)
	}

	var candidates []providers.CandidateTitle
	// Priority-ordered selector list with fall-through (§4.5, §9): the
	// canonical card selector first, then a looser fallback if the theme's
	// markup omits the dedicated class.
	selectors := []string{"div.result-item", "article.movie-card", "li.post-item"}
	var cards *goquery.Selection
	for _, sel := range selectors {
		cards = doc.Find(sel)
		if cards.Length() > 0 {
			break
		}
	}

	cards.Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a").First()
		href, _ := link.Attr("href")
		if href == "" {
			return
		}
		title := strings.TrimSpace(s.Find(".title, h3, h2").First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		poster, _ := s.Find("img").First().Attr("src")
		year := parseYearBadge(s.Find(".year").Text())

		candidates = append(candidates, providers.CandidateTitle{
			Title:     title,
			URL:       href,
			Year:      year,
			Poster:    poster,
			SourceTag: p.Name(),
		})
	})

	return candidates, nil
}

// LoadContentPage fetches a candidate's detail page and, for series,
// structures its episode links by "S{season}E{episode}" key (§4.4 step 6,
// §6 "Provider content": season from a badge like S01, episode from
// Episode-03).
func (p *Provider) LoadContentPage(ctx context.Context, candidateURL string) (*providers.ContentPage, error) {
	doc, err := p.fetchDocument(ctx, candidateURL)
	if err != nil {
		return nil, fmt.Errorf("4khdhub content page: %w", err)
	}

	page := &providers.ContentPage{
		Title:        strings.TrimSpace(doc.Find("h1.entry-title, h1.title").First().Text()),
		EpisodeLinks: make(map[string][]providers.RawLink),
	}
	page.Year = parseYearBadge(doc.Find(".year").Text())

	// Series: structured per-season/per-episode blocks.
	doc.Find(".season-block, .episode-list").Each(func(_ int, seasonBlock *goquery.Selection) {
		season := parseSeasonBadge(seasonBlock.Find(".season-badge, .s-no").Text())
		seasonBlock.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if href == "" {
				return
			}
			episode := parseEpisodeLabel(a.Text())
			if season == 0 {
				season = parseSeasonBadge(a.ParentsFiltered(".season-block").First().Text())
			}
			if episode > 0 {
				key := fmt.Sprintf("S%02dE%02d", season, episode)
				page.EpisodeLinks[key] = append(page.EpisodeLinks[key], providers.RawLink{
					URL:       href,
					Title:     strings.TrimSpace(a.Text()),
					SourceTag: p.Name(),
				})
			}
		})
	})

	// Movie: flat download-link block, used when no episode structure was found.
	if len(page.EpisodeLinks) == 0 {
		doc.Find(".download-links a, .dl-item a, a.dl-link").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if href == "" {
				return
			}
			page.Links = append(page.Links, providers.RawLink{
				URL:       href,
				Title:     strings.TrimSpace(a.Text()),
				SourceTag: p.Name(),
			})
		})
	}

	if p.maxLinks > 0 && len(page.Links) > p.maxLinks {
		page.Links = page.Links[:p.maxLinks]
	}

	return page, nil
}

func (p *Provider) fetchDocument(ctx context.Context, target string) (*goquery.Document, error) {
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		if err := p.hostLimiter(u.Host).Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d fetching %s", resp.StatusCode, target)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func parseYearBadge(s string) int {
	s = strings.TrimSpace(s)
	if len(s) >= 4 {
		if y, err := strconv.Atoi(s[:4]); err == nil {
			return y
		}
	}
	return 0
}

var seasonBadgeRe = `[Ss](\d{1,2})`

func parseSeasonBadge(s string) int {
	return firstGroupAsInt(seasonBadgeRe, s)
}

func parseEpisodeLabel(s string) int {
	// "Episode-03" style labels (§6 "Provider content").
	return firstGroupAsInt(`(?i)episode[\s_-]*(\d{1,3})`, s)
}
