package analysis

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
)

var errNoRows = errors.New("no similarity rows")

// findSummary looks for name directly in dir, then for the first *.csv below
// it. Nothing under a skip path is considered.
func findSummary(name, dir string, skip ...string) string {
	excluded := func(p string) bool {
		p = filepath.Clean(p)
		for _, s := range skip {
			s = filepath.Clean(s)
			if p == s || strings.HasPrefix(p, s+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}

	if p := filepath.Join(dir, name); !excluded(p) {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}

	var found string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if excluded(p) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(p), ".csv") {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// summarize parses the tool's CSV export. Anything unusable degrades to a
// placeholder summary carrying a notice.
func summarize(path string, maxRows int) domain.SimilaritySummary {
	placeholder := domain.SimilaritySummary{Notice: domain.NoticeNoCSV}
	if path == "" {
		return placeholder
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("Failed to open similarity csv", "path", path, "error", err)
		return placeholder
	}
	defer f.Close()

	summary, err := parseSummary(f, maxRows)
	if err != nil {
		slog.Warn("Failed to parse similarity csv", "path", path, "error", err)
		return placeholder
	}
	return summary
}

type columns struct {
	first, second, score int
}

func parseSummary(r io.Reader, maxRows int) (domain.SimilaritySummary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return domain.SimilaritySummary{}, err
	}
	if len(records) == 0 {
		return domain.SimilaritySummary{}, errNoRows
	}

	cols, hasHeader := detectColumns(records[0])
	if hasHeader {
		records = records[1:]
	}

	var pairs []domain.SimilarityPair
	var sum float64
	for _, rec := range records {
		if len(rec) <= cols.first || len(rec) <= cols.second || len(rec) <= cols.score {
			continue
		}
		score, ok := parseScore(rec[cols.score])
		if !ok {
			continue
		}
		p := domain.SimilarityPair{Similarity: score}
		p.First, p.FirstName = splitSubmission(rec[cols.first])
		p.Second, p.SecondName = splitSubmission(rec[cols.second])
		pairs = append(pairs, p)
		sum += score
	}
	if len(pairs) == 0 {
		return domain.SimilaritySummary{}, errNoRows
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Similarity > pairs[j].Similarity
	})
	summary := domain.SimilaritySummary{
		MaxSimilarity: pairs[0].Similarity,
		AvgSimilarity: sum / float64(len(pairs)),
	}
	if maxRows > 0 && len(pairs) > maxRows {
		pairs = pairs[:maxRows]
	}
	summary.Pairs = pairs
	return summary, nil
}

// detectColumns reads the header row when the first record has one. Without a
// header the layout is first, second, score.
func detectColumns(first []string) (columns, bool) {
	cols := columns{first: 0, second: 1, score: 2}
	if len(first) >= 3 {
		if _, ok := parseScore(first[2]); ok {
			return cols, false
		}
	}

	names := make([]int, 0, 2)
	score, fallback := -1, -1
	for i, raw := range first {
		h := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case strings.Contains(h, "avg") || strings.Contains(h, "average"):
			score = i
		case strings.Contains(h, "sim") || strings.Contains(h, "score") || strings.Contains(h, "max"):
			if fallback < 0 {
				fallback = i
			}
		case strings.Contains(h, "name") || strings.Contains(h, "submission") || strings.Contains(h, "file"):
			names = append(names, i)
		}
	}
	if score < 0 {
		score = fallback
	}
	if score >= 0 {
		cols.score = score
	}
	if len(names) >= 2 {
		cols.first, cols.second = names[0], names[1]
	}
	return cols, true
}

// parseScore accepts a fraction in [0,1] or a percentage in (1,100].
func parseScore(raw string) (float64, bool) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 100 {
		return 0, false
	}
	if v > 1 {
		v /= 100
	}
	return v, true
}

// splitSubmission maps a local submission name back to its attachment id.
func splitSubmission(name string) (id, filename string) {
	name = strings.TrimSpace(name)
	base := filepath.Base(name)
	if len(base) > 37 && base[36] == '-' {
		if attID, err := uuid.Parse(base[:36]); err == nil {
			return attID.String(), base[37:]
		}
	}
	return name, ""
}
