package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReportMethod string

const (
	MethodTFIDF        ReportMethod = "tfidf"
	MethodExternalTool ReportMethod = "external-tool"
)

type ReportStatus string

const (
	ReportRunning   ReportStatus = "running"
	ReportCompleted ReportStatus = "completed"
	ReportFailed    ReportStatus = "failed"
)

const NoticeNoCSV = "no-csv-found"

// SimilarityPair is one compared pair of submissions, ordered by score in summaries.
type SimilarityPair struct {
	First      string  `json:"first"`
	Second     string  `json:"second"`
	FirstName  string  `json:"firstName,omitempty"`
	SecondName string  `json:"secondName,omitempty"`
	Similarity float64 `json:"similarity"`
}

type SimilaritySummary struct {
	MaxSimilarity float64          `json:"max_similarity"`
	AvgSimilarity float64          `json:"avg_similarity"`
	Pairs         []SimilarityPair `json:"pairs,omitempty"`
	Notice        string           `json:"notice,omitempty"`
}

// Degraded reports whether the summary is a placeholder rather than parsed results.
func (s SimilaritySummary) Degraded() bool {
	return s.Notice != ""
}

type SimilarityReport struct {
	ID           uuid.UUID         `json:"id"`
	ArticleID    uuid.UUID         `json:"articleId"`
	Method       ReportMethod      `json:"method"`
	Summary      SimilaritySummary `json:"summary"`
	ArtifactPath string            `json:"artifactPath,omitempty"`
	ArtifactURL  string            `json:"artifactUrl,omitempty"`
	InitiatorID  uuid.UUID         `json:"initiatorId"`
	Status       ReportStatus      `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
}
