package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// TermsPerDocument bounds each document's contribution to the vocabulary.
const TermsPerDocument = 800

// Tokenize lowercases text and splits it into runs of letters and digits,
// dropping single-rune tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// Vector is a dense TF-IDF vector over a Vectorizer's vocabulary.
type Vector []float64

// Vectorizer is fitted on one corpus. The vocabulary is the union of every
// document's top terms and is sorted, so results do not depend on map order.
type Vectorizer struct {
	Vocabulary []string
	index      map[string]int
	idf        map[string]float64
}

// Fit tokenizes the corpus and returns the fitted vectorizer together with
// one vector per input document, in input order.
func Fit(corpus []string) (*Vectorizer, []Vector) {
	n := len(corpus)
	tfs := make([]map[string]float64, n)
	df := make(map[string]int)

	for i, doc := range corpus {
		tokens := Tokenize(doc)
		counts := make(map[string]float64, len(tokens))
		for _, t := range tokens {
			counts[t]++
		}
		total := float64(len(tokens))
		for t := range counts {
			counts[t] /= total
			df[t]++
		}
		tfs[i] = counts
	}

	idf := make(map[string]float64, len(df))
	for t, d := range df {
		idf[t] = math.Log(float64(1+n)/float64(1+d)) + 1
	}

	vocab := make(map[string]struct{})
	for _, tf := range tfs {
		for _, t := range topTerms(tf, idf, TermsPerDocument) {
			vocab[t] = struct{}{}
		}
	}

	v := &Vectorizer{
		Vocabulary: make([]string, 0, len(vocab)),
		index:      make(map[string]int, len(vocab)),
		idf:        idf,
	}
	for t := range vocab {
		v.Vocabulary = append(v.Vocabulary, t)
	}
	sort.Strings(v.Vocabulary)
	for i, t := range v.Vocabulary {
		v.index[t] = i
	}

	vectors := make([]Vector, n)
	for i, tf := range tfs {
		vectors[i] = v.vector(tf)
	}
	return v, vectors
}

func (v *Vectorizer) vector(tf map[string]float64) Vector {
	vec := make(Vector, len(v.Vocabulary))
	for t, f := range tf {
		if i, ok := v.index[t]; ok {
			vec[i] = f * v.idf[t]
		}
	}
	return vec
}

// topTerms ranks a document's terms by weight, ties broken alphabetically.
func topTerms(tf map[string]float64, idf map[string]float64, limit int) []string {
	type weighted struct {
		term   string
		weight float64
	}
	ws := make([]weighted, 0, len(tf))
	for t, f := range tf {
		ws = append(ws, weighted{t, f * idf[t]})
	}
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].weight != ws[j].weight {
			return ws[i].weight > ws[j].weight
		}
		return ws[i].term < ws[j].term
	})
	if len(ws) > limit {
		ws = ws[:limit]
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.term
	}
	return out
}

// Cosine is the cosine similarity of a and b clamped to [0, 1]; zero vectors
// are similar to nothing.
func Cosine(a, b Vector) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, s))
}
