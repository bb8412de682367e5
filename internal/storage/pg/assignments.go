package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assignmentColumns = `id, article_id, kind, assignee_id, assigned_by, status, due_at, created_at, updated_at`

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	var a domain.Assignment
	if err := row.Scan(
		&a.ID,
		&a.ArticleID,
		&a.Kind,
		&a.AssigneeID,
		&a.AssignedBy,
		&a.Status,
		&a.DueAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// replaceAssignment cancels the active assignment of the same kind and inserts
// the new one. The caller holds the article row lock.
func replaceAssignment(ctx context.Context, q querier, assignment *domain.Assignment, now time.Time) (*domain.Assignment, error) {
	cancelled, err := scanAssignment(q.QueryRow(ctx, `
		UPDATE assignments SET status = $3, updated_at = $4
		WHERE article_id = $1 AND kind = $2 AND status IN ('assigned', 'in_progress')
		RETURNING `+assignmentColumns,
		assignment.ArticleID, assignment.Kind, domain.AssignmentCancelled, now))
	if errors.Is(err, pgx.ErrNoRows) {
		cancelled = nil
	} else if err != nil {
		return nil, classify(err, "cancel assignment")
	}

	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	if assignment.Status == "" {
		assignment.Status = domain.AssignmentAssigned
	}
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	_, err = q.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		assignment.ID,
		assignment.ArticleID,
		assignment.Kind,
		assignment.AssigneeID,
		assignment.AssignedBy,
		assignment.Status,
		assignment.DueAt,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err, "insert assignment")
	}
	return cancelled, nil
}

func (s *Store) ReplaceAssignment(
	ctx context.Context,
	assignment *domain.Assignment,
	expected domain.Status,
) (*domain.Assignment, error) {
	var cancelled *domain.Assignment
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		current, err := getArticle(ctx, tx, assignment.ArticleID, true)
		if err != nil {
			return err
		}
		if expected != "" && current.Status != expected {
			return apperr.NewConflict("article %s is %s, expected %s", assignment.ArticleID, current.Status, expected)
		}
		cancelled, err = replaceAssignment(ctx, tx, assignment, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *Store) ActiveAssignment(ctx context.Context, articleID uuid.UUID, kind domain.AssignmentKind) (*domain.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE article_id = $1 AND kind = $2 AND status IN ('assigned', 'in_progress')`,
		articleID, kind))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignment: %w", err)
	}
	return a, nil
}

func (s *Store) ListAssignments(ctx context.Context, articleID uuid.UUID) ([]domain.Assignment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE article_id = $1
		ORDER BY created_at, id`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) SetAssignmentStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus) (*domain.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRow(ctx, `
		UPDATE assignments SET status = $2, updated_at = $3
		WHERE id = $1 AND status IN ('assigned', 'in_progress')
		RETURNING `+assignmentColumns,
		id, status, time.Now().UTC()))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify(err, "update assignment")
	}

	var current domain.AssignmentStatus
	err = s.db.QueryRow(ctx, `SELECT status FROM assignments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NewNotFound("assignment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}
	return nil, apperr.NewConflict("assignment %s is %s", id, current)
}
