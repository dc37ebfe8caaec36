// Package titlematch implements TitleMatcher (§4.3): normalization,
// Levenshtein similarity, word-containment, and weighted scoring used to
// rank candidate titles against a search query.
package titlematch

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
var yearInParens = regexp.MustCompile(`\(\d{4}\)`)

// Scorable is anything with a title that can be scored against a query; it
// lets the matcher operate on CandidateTitle without importing providers
// (which would create an import cycle with the orchestrator).
type Scorable interface {
	GetTitle() string
}

// Matcher normalizes, scores and ranks candidate titles. It memoizes
// normalization results in a small bounded LRU, distinct from the URLCache,
// since the same raw titles recur across a session's provider fan-out.
type Matcher struct {
	normCache *lru.Cache[string, string]
}

// New creates a Matcher with a bounded normalization memo of size.
func New(memoSize int) *Matcher {
	if memoSize <= 0 {
		memoSize = 1024
	}
	c, _ := lru.New[string, string](memoSize)
	return &Matcher{normCache: c}
}

// Normalize lowercases s, replaces non-alphanumerics with a space, and
// collapses whitespace.
func (m *Matcher) Normalize(s string) string {
	if m.normCache != nil {
		if v, ok := m.normCache.Get(s); ok {
			return v
		}
	}
	n := normalize(s)
	if m.normCache != nil {
		m.normCache.Add(s, n)
	}
	return n
}

func normalize(s string) string {
	lower := strings.ToLower(s)
	replaced := nonAlnum.ReplaceAllString(lower, " ")
	return strings.Join(strings.Fields(replaced), " ")
}

// Similarity returns a Levenshtein-based score in [0,1]: (maxLen-distance)/maxLen.
// Equal-normalized inputs score 1.0; either-empty scores 0.
func (m *Matcher) Similarity(a, b string) float64 {
	na, nb := m.Normalize(a), m.Normalize(b)
	if na == nb {
		return 1.0
	}
	if len(na) == 0 || len(nb) == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(na, nb)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 0
	}
	return float64(maxLen-dist) / float64(maxLen)
}

// ContainsAllWords reports whether every normalized query token appears as a
// substring of (or contains) some normalized title token.
func (m *Matcher) ContainsAllWords(title, query string) bool {
	titleTokens := strings.Fields(m.Normalize(title))
	queryTokens := strings.Fields(m.Normalize(query))
	if len(queryTokens) == 0 {
		return false
	}

	for _, q := range queryTokens {
		found := false
		for _, t := range titleTokens {
			if strings.Contains(t, q) || strings.Contains(q, t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Score implements §4.3's weighted formula:
//
//	exactNormalizedEqual ? 100 : 0
//	+ similarity * 50
//	+ containsAllWords ? 30 : 0
//	+ max(0, 10 - |len(title)-len(query)|/5)
//	+ titleHasYearInParens ? 5 : 0
func (m *Matcher) Score(title, query string) float64 {
	var score float64

	nt, nq := m.Normalize(title), m.Normalize(query)
	if nt == nq {
		score += 100
	}

	score += m.Similarity(title, query) * 50

	if m.ContainsAllWords(title, query) {
		score += 30
	}

	lenDiff := len(title) - len(query)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	lengthBonus := 10 - float64(lenDiff)/5
	if lengthBonus > 0 {
		score += lengthBonus
	}

	if yearInParens.MatchString(title) {
		score += 5
	}

	return score
}

// RankedResult pairs one of the caller's items with its score, produced by
// Rank.
type RankedResult[T any] struct {
	Item  T
	Score float64
}

// Rank sorts items by score against query descending, stable on ties w.r.t.
// input order (§4.3).
func Rank[T any](m *Matcher, items []T, query string, titleOf func(T) string) []RankedResult[T] {
	results := make([]RankedResult[T], len(items))
	for i, item := range items {
		results[i] = RankedResult[T]{Item: item, Score: m.Score(titleOf(item), query)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}
