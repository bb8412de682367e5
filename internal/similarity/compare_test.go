package similarity

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-4

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"the", "café", "opened", "in", "2024", "naïve"},
		Tokenize("The CAFÉ opened in 2024 -- a naïve x!"))
	assert.Empty(t, Tokenize("a b c ! ?"))
}

func TestFit_SmoothIDF(t *testing.T) {
	_, vectors := Fit([]string{"alpha beta", "alpha gamma"})
	require.Len(t, vectors, 2)

	v, _ := Fit([]string{"alpha beta", "alpha gamma"})
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, v.Vocabulary)
	assert.InDelta(t, 1.0, v.idf["alpha"], tolerance, "term in every doc keeps idf 1")
	assert.Greater(t, v.idf["beta"], v.idf["alpha"])
}

func TestFit_VocabularyIsCapped(t *testing.T) {
	var words []string
	for i := 0; i < TermsPerDocument+50; i++ {
		words = append(words, fmt.Sprintf("w%04d", i))
	}
	v, vectors := Fit([]string{strings.Join(words, " ")})
	assert.Len(t, v.Vocabulary, TermsPerDocument)
	assert.Len(t, vectors[0], TermsPerDocument)
}

func TestCosine(t *testing.T) {
	_, vs := Fit([]string{
		"tides follow the moon and the sun",
		"the moon pulls the tides",
		"compilers translate source code",
	})

	t.Run("symmetric", func(t *testing.T) {
		for i := range vs {
			for j := range vs {
				assert.InDelta(t, Cosine(vs[i], vs[j]), Cosine(vs[j], vs[i]), 1e-12)
			}
		}
	})

	t.Run("self similarity is one", func(t *testing.T) {
		for _, v := range vs {
			assert.InDelta(t, 1.0, Cosine(v, v), tolerance)
		}
	})

	t.Run("zero vector", func(t *testing.T) {
		assert.Zero(t, Cosine(Vector{0, 0}, Vector{1, 2}))
	})
}

func TestCompare(t *testing.T) {
	t.Run("disjoint vocabularies score zero", func(t *testing.T) {
		res := Compare([]Document{
			{ID: "a", Text: "apples oranges pears"},
			{ID: "b", Text: "kernels drivers modules"},
		}, Options{Threshold: 0})
		require.Len(t, res.Pairs, 1)
		assert.Zero(t, res.Pairs[0].Similarity)
	})

	t.Run("single document yields nothing", func(t *testing.T) {
		res := Compare([]Document{{ID: "a", Text: "lonely text"}, {ID: "b", Text: "  "}}, DefaultOptions())
		assert.Empty(t, res.Pairs)
		assert.Equal(t, 1, res.Compared)
	})

	t.Run("identical documents score one", func(t *testing.T) {
		text := "Tidal forces arise from the gravitational gradient of the moon."
		res := Compare([]Document{{ID: "b", Name: "b.txt", Text: text}, {ID: "a", Name: "a.txt", Text: text}}, DefaultOptions())
		require.Len(t, res.Pairs, 1)
		p := res.Pairs[0]
		assert.Equal(t, "a", p.First)
		assert.Equal(t, "b", p.Second)
		assert.Equal(t, "a.txt", p.FirstName)
		assert.InDelta(t, 1.0, p.Similarity, tolerance)
		assert.InDelta(t, 1.0, res.Max, tolerance)
	})

	t.Run("threshold filters and results are sorted", func(t *testing.T) {
		docs := []Document{
			{ID: "1", Text: "the moon pulls the ocean tides every day"},
			{ID: "2", Text: "the moon pulls the ocean tides every night"},
			{ID: "3", Text: "the moon pulls ocean water"},
			{ID: "4", Text: "databases store rows in pages"},
		}
		all := Compare(docs, Options{Threshold: 0, Top: MaxTop})
		assert.Len(t, all.Pairs, 6)
		for i := 1; i < len(all.Pairs); i++ {
			assert.GreaterOrEqual(t, all.Pairs[i-1].Similarity, all.Pairs[i].Similarity)
		}

		filtered := Compare(docs, Options{Threshold: 0.6})
		for _, p := range filtered.Pairs {
			assert.GreaterOrEqual(t, p.Similarity, 0.6)
		}
		assert.Less(t, len(filtered.Pairs), 6)

		top := Compare(docs, Options{Threshold: 0, Top: 2})
		assert.Len(t, top.Pairs, 2)
		assert.Equal(t, all.Pairs[:2], top.Pairs)
	})

	t.Run("deterministic", func(t *testing.T) {
		docs := []Document{
			{ID: "x", Text: "alpha beta gamma delta"},
			{ID: "y", Text: "beta gamma delta epsilon"},
			{ID: "z", Text: "gamma delta epsilon zeta"},
		}
		first := Compare(docs, Options{Threshold: 0})
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Compare(docs, Options{Threshold: 0}))
		}
	})
}

func TestOptions_Normalize(t *testing.T) {
	assert.Equal(t, DefaultOptions(), Options{Threshold: -1}.normalize())
	assert.Equal(t, MaxTop, Options{Threshold: 0.5, Top: 10_000}.normalize().Top)
	assert.Equal(t, 0.0, Options{Threshold: 0}.normalize().Threshold)
}
