package similarity

import (
	"math"
	"sort"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
)

const (
	DefaultThreshold = 0.6
	DefaultTop       = 20
	MaxTop           = 200
)

// Document is one extracted submission.
type Document struct {
	ID   string
	Name string
	Text string
}

type Options struct {
	Threshold float64
	Top       int
}

// normalize applies defaults: a threshold outside [0,1] and a non positive
// top fall back, and top is capped.
func (o Options) normalize() Options {
	if o.Threshold < 0 || o.Threshold > 1 || math.IsNaN(o.Threshold) {
		o.Threshold = DefaultThreshold
	}
	if o.Top <= 0 {
		o.Top = DefaultTop
	}
	if o.Top > MaxTop {
		o.Top = MaxTop
	}
	return o
}

func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Top: DefaultTop}
}

type Result struct {
	// Pairs holds every pair at or above the threshold, best first, capped at Top.
	Pairs []domain.SimilarityPair
	// Compared is the number of documents that had text.
	Compared int
	Max      float64
	Avg      float64
}

func (r Result) Summary() domain.SimilaritySummary {
	return domain.SimilaritySummary{
		MaxSimilarity: r.Max,
		AvgSimilarity: r.Avg,
		Pairs:         r.Pairs,
	}
}

// Compare scores every unordered pair of documents with non-empty text.
// Fewer than two such documents produce an empty result.
func Compare(docs []Document, opts Options) Result {
	opts = opts.normalize()

	var usable []Document
	for _, d := range docs {
		if len(Tokenize(d.Text)) > 0 {
			usable = append(usable, d)
		}
	}
	res := Result{Compared: len(usable)}
	if len(usable) < 2 {
		return res
	}

	corpus := make([]string, len(usable))
	for i, d := range usable {
		corpus[i] = d.Text
	}
	_, vectors := Fit(corpus)

	var all []domain.SimilarityPair
	var sum float64
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			a, b := usable[i], usable[j]
			if b.ID < a.ID {
				a, b = b, a
			}
			s := Cosine(vectors[i], vectors[j])
			sum += s
			res.Max = math.Max(res.Max, s)
			all = append(all, domain.SimilarityPair{
				First:      a.ID,
				Second:     b.ID,
				FirstName:  a.Name,
				SecondName: b.Name,
				Similarity: s,
			})
		}
	}
	res.Avg = sum / float64(len(all))

	sort.Slice(all, func(i, j int) bool {
		if all[i].Similarity != all[j].Similarity {
			return all[i].Similarity > all[j].Similarity
		}
		if all[i].First != all[j].First {
			return all[i].First < all[j].First
		}
		return all[i].Second < all[j].Second
	})

	for _, p := range all {
		if p.Similarity < opts.Threshold {
			break
		}
		res.Pairs = append(res.Pairs, p)
		if len(res.Pairs) == opts.Top {
			break
		}
	}
	return res
}
