package titlematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	m := New(16)
	assert.Equal(t, "the matrix 1999", m.Normalize("The Matrix (1999)!!"))
	assert.Equal(t, "", m.Normalize("   "))
}

func TestSimilarity(t *testing.T) {
	m := New(16)
	assert.Equal(t, 1.0, m.Similarity("The Matrix", "the matrix"))
	assert.Equal(t, 0.0, m.Similarity("", "anything"))
	assert.Equal(t, 0.0, m.Similarity("anything", ""))

	sim := m.Similarity("The Shawshank Redemption", "Shawshank Redemption")
	assert.Greater(t, sim, 0.5)
	assert.Less(t, sim, 1.0)
}

func TestContainsAllWords(t *testing.T) {
	m := New(16)
	assert.True(t, m.ContainsAllWords("The Shawshank Redemption 1994", "shawshank redemption"))
	assert.False(t, m.ContainsAllWords("The Matrix", "shawshank redemption"))
	assert.False(t, m.ContainsAllWords("anything", ""))
}

func TestScoreExactBeatsFuzzy(t *testing.T) {
	m := New(16)
	query := "The Shawshank Redemption"

	exact := m.Score("The Shawshank Redemption", query)
	fuzzy := m.Score("Shawshank Redemption 1994 1080p BluRay", query)
	unrelated := m.Score("A Completely Different Movie", query)

	require.Greater(t, exact, fuzzy)
	require.Greater(t, fuzzy, unrelated)
}

func TestScoreYearBonus(t *testing.T) {
	m := New(16)
	query := "Dune"
	withYear := m.Score("Dune (2021)", query)
	withoutYear := m.Score("Dune 2021", query)
	assert.Greater(t, withYear, withoutYear)
}

// Property: score(a,a) >= score(a,b) for all b != a when normalize(a) != normalize(b).
func TestScorePropertyBestMatchIsSelf(t *testing.T) {
	m := New(16)
	cases := []string{"The Matrix", "Inception", "Shawshank Redemption", "Dune Part Two"}
	others := []string{"Unrelated Title", "Something Else Entirely", "xyz"}

	for _, a := range cases {
		selfScore := m.Score(a, a)
		for _, b := range others {
			if m.Normalize(a) == m.Normalize(b) {
				continue
			}
			assert.GreaterOrEqual(t, selfScore, m.Score(b, a), "self-match should outscore %q vs query %q", b, a)
		}
	}
}

func TestRankStableOnTies(t *testing.T) {
	m := New(16)
	items := []string{"zzz unrelated", "zzz unrelated", "zzz unrelated"}
	ranked := Rank(m, items, "totally different query", func(s string) string { return s })
	require.Len(t, ranked, 3)
	// all equal scores -> original order preserved
	assert.Equal(t, items[0], ranked[0].Item)
	assert.Equal(t, items[1], ranked[1].Item)
	assert.Equal(t, items[2], ranked[2].Item)
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	m := New(16)
	items := []string{"Completely Unrelated", "The Matrix", "Matrix Reloaded"}
	ranked := Rank(m, items, "The Matrix", func(s string) string { return s })
	require.Len(t, ranked, 3)
	assert.Equal(t, "The Matrix", ranked[0].Item)
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)
	assert.GreaterOrEqual(t, ranked[1].Score, ranked[2].Score)
}
