package search

import (
	"context"
	"fmt"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/notify"
	"github.com/google/uuid"
)

type ArticleIndexer interface {
	Index(ctx context.Context, a domain.Article) error
}

type ArticleReader interface {
	GetArticle(ctx context.Context, id uuid.UUID) (*domain.Article, error)
}

// Sink indexes articles when their publish notification is delivered. A publish
// fans out one notification per recipient; indexing by article id keeps the
// repeats harmless.
type Sink struct {
	indexer  ArticleIndexer
	articles ArticleReader
}

var _ notify.Sink = (*Sink)(nil)

func NewSink(indexer ArticleIndexer, articles ArticleReader) *Sink {
	return &Sink{indexer: indexer, articles: articles}
}

func (s *Sink) Name() string {
	return "search"
}

func (s *Sink) Deliver(ctx context.Context, n domain.Notification) error {
	if n.Kind != domain.NotifyPublished {
		return nil
	}
	a, err := s.articles.GetArticle(ctx, n.ArticleID)
	if err != nil {
		return fmt.Errorf("failed to load published article: %w", err)
	}
	if a.Status != domain.StatusPublished {
		return nil
	}
	return s.indexer.Index(ctx, *a)
}
