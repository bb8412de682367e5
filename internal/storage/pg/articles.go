package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/DjordjeVuckovic/editorial-hub/pkg/pagination"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var articleColumns = []string{
	"id", "title", "body", "summary", "author_id", "category_id", "tags", "metadata",
	"status", "price", "is_free", "created_at", "updated_at", "published_at",
}

const selectArticle = `
	SELECT id, title, body, summary, author_id, category_id, tags, metadata,
	       status, price, is_free, created_at, updated_at, published_at
	FROM articles
	WHERE id = $1`

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var (
		a        domain.Article
		metadata []byte
		price    *int64
		isFree   *bool
	)
	if err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Body,
		&a.Summary,
		&a.AuthorID,
		&a.CategoryID,
		&a.Tags,
		&metadata,
		&a.Status,
		&price,
		&isFree,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.PublishedAt,
	); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if price != nil || isFree != nil {
		a.Pricing = &domain.Pricing{}
		if price != nil {
			a.Pricing.Price = *price
		}
		if isFree != nil {
			a.Pricing.IsFree = *isFree
		}
	}
	return &a, nil
}

func pricingColumns(p *domain.Pricing) (*int64, *bool) {
	if p == nil {
		return nil, nil
	}
	price, free := p.Price, p.IsFree
	return &price, &free
}

func marshalMetadata(md map[string]any) ([]byte, error) {
	if md == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return b, nil
}

func (s *Store) CreateArticle(ctx context.Context, article *domain.Article) error {
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}
	now := time.Now().UTC()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now
	if article.Tags == nil {
		article.Tags = []string{}
	}

	metadata, err := marshalMetadata(article.Metadata)
	if err != nil {
		return err
	}
	price, isFree := pricingColumns(article.Pricing)

	cmd := `
		INSERT INTO articles (id, title, body, summary, author_id, category_id, tags, metadata,
		                      status, price, is_free, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = s.db.Exec(ctx, cmd,
		article.ID,
		article.Title,
		article.Body,
		article.Summary,
		article.AuthorID,
		article.CategoryID,
		article.Tags,
		metadata,
		article.Status,
		price,
		isFree,
		article.CreatedAt,
		article.UpdatedAt,
		article.PublishedAt,
	)
	if err != nil {
		return classify(err, "insert article")
	}
	return nil
}

func (s *Store) GetArticle(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	return getArticle(ctx, s.db, id, false)
}

func getArticle(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Article, error) {
	query := selectArticle
	if forUpdate {
		query += " FOR UPDATE"
	}
	a, err := scanArticle(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NewNotFound("article", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load article %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, int, error) {
	req := pagination.OffsetRequest{Page: filter.Page, Size: filter.Size}
	_ = req.Validate()

	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": string(filter.Status)})
	}
	if filter.AuthorID != uuid.Nil {
		where = append(where, sq.Eq{"author_id": filter.AuthorID.String()})
	}

	countSQL, countArgs, err := s.psql.Select("count(*)").From("articles").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	listSQL, listArgs, err := s.psql.
		Select(articleColumns...).
		From("articles").
		Where(where).
		OrderBy("updated_at DESC", "id").
		Limit(uint64(req.Size)).
		Offset(uint64(req.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := s.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]domain.Article, 0, req.Size)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, total, nil
}

func updateArticle(ctx context.Context, q querier, a *domain.Article) error {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}
	price, isFree := pricingColumns(a.Pricing)
	if a.Tags == nil {
		a.Tags = []string{}
	}

	cmd := `
		UPDATE articles
		SET title = $2, body = $3, summary = $4, category_id = $5, tags = $6, metadata = $7,
		    status = $8, price = $9, is_free = $10, updated_at = $11, published_at = $12
		WHERE id = $1`
	_, err = q.Exec(ctx, cmd,
		a.ID,
		a.Title,
		a.Body,
		a.Summary,
		a.CategoryID,
		a.Tags,
		metadata,
		a.Status,
		price,
		isFree,
		a.UpdatedAt,
		a.PublishedAt,
	)
	if err != nil {
		return classify(err, "update article")
	}
	return nil
}

func (s *Store) UpdateArticle(
	ctx context.Context,
	id uuid.UUID,
	expected domain.Status,
	mutate func(a *domain.Article) error,
) (*domain.Article, error) {
	var out *domain.Article
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := getArticle(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if current.Status != expected {
			return apperr.NewConflict("article %s is %s, expected %s", id, current.Status, expected)
		}
		if err := mutate(current); err != nil {
			return err
		}
		current.Status = expected
		current.UpdatedAt = time.Now().UTC()
		if err := updateArticle(ctx, tx, current); err != nil {
			return err
		}
		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition locks the article row, re-checks the expected status and applies
// the status change, assignment changes and event insert in one transaction.
func (s *Store) Transition(ctx context.Context, t storage.Transition) (*storage.TransitionResult, error) {
	if err := storage.ValidateTransition(t); err != nil {
		return nil, err
	}

	result := &storage.TransitionResult{}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := getArticle(ctx, tx, t.ArticleID, true)
		if err != nil {
			return err
		}
		if current.Status != t.Expected {
			return apperr.NewConflict("article %s is %s, expected %s", t.ArticleID, current.Status, t.Expected)
		}

		now := time.Now().UTC()
		for _, id := range t.Complete {
			tag, err := tx.Exec(ctx, `
				UPDATE assignments SET status = $3, updated_at = $4
				WHERE id = $1 AND article_id = $2 AND status IN ('assigned', 'in_progress')`,
				id, t.ArticleID, domain.AssignmentCompleted, now)
			if err != nil {
				return classify(err, "complete assignment")
			}
			if tag.RowsAffected() == 0 {
				return apperr.NewConflict("assignment %s is no longer active", id)
			}
		}

		if t.Mutate != nil {
			t.Mutate(current)
		}
		current.Status = t.Event.To
		current.UpdatedAt = now
		if err := updateArticle(ctx, tx, current); err != nil {
			return err
		}

		if t.Assign != nil {
			result.Cancelled, err = replaceAssignment(ctx, tx, t.Assign, now)
			if err != nil {
				return err
			}
		}

		if err := insertEvent(ctx, tx, t.Event); err != nil {
			return err
		}
		result.Article = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func insertEvent(ctx context.Context, q querier, ev domain.WorkflowEvent) error {
	_, err := q.Exec(ctx, `
		INSERT INTO workflow_events (id, article_id, actor_id, from_status, to_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.ArticleID, ev.ActorID, ev.From, ev.To, ev.Note, ev.CreatedAt)
	if err != nil {
		return classify(err, "insert workflow event")
	}
	return nil
}

func (s *Store) DeleteArticle(ctx context.Context, id uuid.UUID, expected domain.Status) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := getArticle(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if expected != "" && current.Status != expected {
			return apperr.NewConflict("article %s is %s, expected %s", id, current.Status, expected)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id); err != nil {
			return classify(err, "delete article")
		}
		return nil
	})
}

func (s *Store) ListEvents(ctx context.Context, articleID uuid.UUID) ([]domain.WorkflowEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT seq, id, article_id, actor_id, from_status, to_status, note, created_at
		FROM workflow_events
		WHERE article_id = $1
		ORDER BY seq`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []domain.WorkflowEvent{}
	for rows.Next() {
		var ev domain.WorkflowEvent
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.ArticleID, &ev.ActorID, &ev.From, &ev.To, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
