package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummary(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		csv     string
		maxRows int
		wantMax float64
		wantAvg float64
		first   string
		rows    int
		wantErr bool
	}{
		{
			name:    "tool header prefers average column",
			csv:     "submissionName1,submissionName2,averageSimilarity,maximumSimilarity\nx,y,0.40,0.99\nx,z,0.80,0.81\n",
			wantMax: 0.8, wantAvg: 0.6, first: "x", rows: 2,
		},
		{
			name:    "percentages are normalised",
			csv:     "first,second,similarity\na,b,75%\nc,d,25\n",
			wantMax: 0.75, wantAvg: 0.5, first: "a", rows: 2,
		},
		{
			name:    "headerless three columns",
			csv:     "a,b,0.3\nc,d,0.9\n",
			wantMax: 0.9, wantAvg: 0.6, first: "c", rows: 2,
		},
		{
			name:    "rows are capped, stats are not",
			csv:     "a,b,0.1\nc,d,0.2\ne,f,0.3\n",
			maxRows: 1,
			wantMax: 0.3, wantAvg: 0.2, first: "e", rows: 1,
		},
		{
			name:    "attachment ids are recovered",
			csv:     "name1,name2,score\n" + id.String() + "-essay.txt," + id.String() + "-copy.txt,1\n",
			wantMax: 1, wantAvg: 1, first: id.String(), rows: 1,
		},
		{name: "invalid values", csv: "a,b,nope\nc,d,150\n", wantErr: true},
		{name: "empty", csv: "", wantErr: true},
		{name: "header only", csv: "name1,name2,similarity\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSummary(strings.NewReader(tt.csv), tt.maxRows)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantMax, got.MaxSimilarity, 1e-9)
			assert.InDelta(t, tt.wantAvg, got.AvgSimilarity, 1e-9)
			require.Len(t, got.Pairs, tt.rows)
			assert.Equal(t, tt.first, got.Pairs[0].First)
		})
	}
}

func TestSplitSubmission(t *testing.T) {
	id := uuid.New()
	gotID, name := splitSubmission("submissions/" + id.String() + "-report.pdf")
	assert.Equal(t, id.String(), gotID)
	assert.Equal(t, "report.pdf", name)

	gotID, name = splitSubmission("plain.txt")
	assert.Equal(t, "plain.txt", gotID)
	assert.Empty(t, name)
}

func TestSummarize_FindsFiles(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "results")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "nested"), 0o755))

	assert.Equal(t, domain.NoticeNoCSV, summarize(findSummary("results.csv", out), 10).Notice)

	require.NoError(t, os.WriteFile(filepath.Join(root, "results.csv"), []byte("a,b,0.7\n"), 0o644))
	assert.Equal(t, domain.NoticeNoCSV, summarize(findSummary("results.csv", out), 10).Notice, "files beside the output dir are not the tool's")

	require.NoError(t, os.WriteFile(filepath.Join(out, "nested", "other.csv"), []byte("a,b,0.4\n"), 0o644))
	assert.InDelta(t, 0.4, summarize(findSummary("results.csv", out), 10).MaxSimilarity, 1e-9)

	require.NoError(t, os.WriteFile(filepath.Join(out, "results.csv"), []byte("garbage"), 0o644))
	assert.Equal(t, domain.NoticeNoCSV, summarize(findSummary("results.csv", out), 10).Notice)
}

func TestFindSummary_SkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	submissions := filepath.Join(root, "submissions")
	require.NoError(t, os.MkdirAll(submissions, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(submissions, "grades.csv"), []byte("alice,bob,0.99\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(submissions, "results.csv"), []byte("alice,bob,0.99\n"), 0o644))

	assert.Empty(t, findSummary("results.csv", root, submissions))
	assert.Empty(t, findSummary("submissions/results.csv", root, submissions))

	require.NoError(t, os.WriteFile(filepath.Join(root, "summary.csv"), []byte("x,y,0.5\n"), 0o644))
	assert.Equal(t, filepath.Join(root, "summary.csv"), findSummary("results.csv", root, submissions))
}

func TestLocateOutput(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, root, locateOutput(root, []string{"results", "out"}))

	require.NoError(t, os.Mkdir(filepath.Join(root, "out"), 0o755))
	assert.Equal(t, filepath.Join(root, "out"), locateOutput(root, []string{"results", "out"}))

	require.NoError(t, os.Mkdir(filepath.Join(root, "results"), 0o755))
	assert.Equal(t, filepath.Join(root, "results"), locateOutput(root, []string{"results", "out"}))
}

func TestJanitor_RunOnce(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, scratchPrefix+"stale")
	fresh := filepath.Join(root, scratchPrefix+"fresh")
	unrelated := filepath.Join(root, "keep-me")
	for _, dir := range []string{stale, fresh, unrelated} {
		require.NoError(t, os.Mkdir(dir, 0o755))
	}
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(unrelated, old, old))

	swept := 0
	j := NewJanitor(ToolConfig{ScratchRoot: root, Timeout: 10 * time.Minute}, WithSweeper(func() int {
		swept++
		return 3
	}))

	assert.Equal(t, 1, j.RunOnce())
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, unrelated)
	assert.Equal(t, 1, swept)
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	j := NewJanitor(ToolConfig{}, WithSchedule("not a schedule"))
	assert.Error(t, j.Start())
}

func TestProfiles(t *testing.T) {
	p, err := LoadProfiles(strings.NewReader(`
profiles:
  Python:
    language: python3
    args: ["--min-tokens", "12"]
  java: {}
`))
	require.NoError(t, err)

	got, err := p.Resolve("python", "text")
	require.NoError(t, err)
	assert.Equal(t, Profile{Language: "python3", Args: []string{"--min-tokens", "12"}}, got)

	got, err = p.Resolve("JAVA", "text")
	require.NoError(t, err)
	assert.Equal(t, "java", got.Language)

	_, err = p.Resolve("", "text")
	assert.Error(t, err)

	empty, err := LoadProfiles(strings.NewReader(""))
	require.NoError(t, err)
	got, err = empty.Resolve("", "text")
	require.NoError(t, err)
	assert.Equal(t, "text", got.Language)

	_, err = empty.Resolve("../etc", "text")
	assert.Error(t, err)
}
