package originality

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/fetch"
	"github.com/DjordjeVuckovic/editorial-hub/internal/similarity"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/google/uuid"
)

// Access resolves what an actor may see of an article's working material.
type Access interface {
	Participant(ctx context.Context, actor domain.Actor, articleID uuid.UUID) (*domain.Article, error)
	Attachments(ctx context.Context, actor domain.Actor, articleID uuid.UUID) ([]domain.Attachment, error)
}

type Service struct {
	access  Access
	reports storage.ReportStore
	fetcher *fetch.Fetcher
	now     func() time.Time
}

func NewService(access Access, reports storage.ReportStore, fetcher *fetch.Fetcher) *Service {
	return &Service{
		access:  access,
		reports: reports,
		fetcher: fetcher,
		now:     time.Now,
	}
}

type Run struct {
	Report   *domain.SimilarityReport `json:"report"`
	Pairs    []domain.SimilarityPair  `json:"pairs"`
	Compared int                      `json:"compared"`
}

// RunInternal compares the article's attachments with each other and stores the outcome.
func (s *Service) RunInternal(ctx context.Context, actor domain.Actor, articleID uuid.UUID, opts similarity.Options) (*Run, error) {
	atts, err := s.access.Attachments(ctx, actor, articleID)
	if err != nil {
		return nil, err
	}

	docs := make([]similarity.Document, len(atts))
	var mu sync.Mutex
	err = s.fetcher.Each(ctx, atts, func(i int, att domain.Attachment, data []byte) error {
		text := similarity.ExtractText(att.Filename, att.MIMEType, data)
		if text == "" {
			slog.Warn("No text extracted from attachment", "attachment", att.ID, "filename", att.Filename)
		}
		mu.Lock()
		defer mu.Unlock()
		docs[i] = similarity.Document{ID: att.ID.String(), Name: att.Filename, Text: text}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachments: %w", err)
	}

	res := similarity.Compare(docs, opts)
	report := &domain.SimilarityReport{
		ID:          uuid.New(),
		ArticleID:   articleID,
		Method:      domain.MethodTFIDF,
		Summary:     res.Summary(),
		InitiatorID: actor.ID,
		Status:      domain.ReportCompleted,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.reports.SaveReport(ctx, report); err != nil {
		return nil, err
	}

	slog.Info("Internal similarity completed",
		"article", articleID,
		"report", report.ID,
		"attachments", len(atts),
		"compared", res.Compared,
		"pairs", len(res.Pairs),
		"max", res.Max,
	)
	pairs := res.Pairs
	if pairs == nil {
		pairs = []domain.SimilarityPair{}
	}
	return &Run{Report: report, Pairs: pairs, Compared: res.Compared}, nil
}

func (s *Service) LatestReport(ctx context.Context, actor domain.Actor, articleID uuid.UUID) (*domain.SimilarityReport, error) {
	if _, err := s.access.Participant(ctx, actor, articleID); err != nil {
		return nil, err
	}
	return s.reports.LatestReport(ctx, articleID)
}

func (s *Service) ListReports(ctx context.Context, actor domain.Actor, articleID uuid.UUID) ([]domain.SimilarityReport, error) {
	if _, err := s.access.Participant(ctx, actor, articleID); err != nil {
		return nil, err
	}
	return s.reports.ListReports(ctx, articleID)
}
