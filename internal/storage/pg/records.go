package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Store) AddAttachment(ctx context.Context, attachment *domain.Attachment) error {
	if err := attachment.Validate(); err != nil {
		return apperr.NewValidationWrap("invalid attachment", err)
	}
	if attachment.ID == uuid.Nil {
		attachment.ID = uuid.New()
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO attachments (id, article_id, storage_path, filename, mime_type, size, uploader_id, public_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		attachment.ID,
		attachment.ArticleID,
		nullable(attachment.StoragePath),
		attachment.Filename,
		attachment.MIMEType,
		attachment.Size,
		attachment.UploaderID,
		nullable(attachment.PublicURL),
		attachment.CreatedAt,
	)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && pgErr.SQLState() == codeForeignKeyViolation {
		return apperr.NewNotFound("article", attachment.ArticleID)
	}
	if err != nil {
		return classify(err, "insert attachment")
	}
	return nil
}

const attachmentColumns = `id, article_id, coalesce(storage_path, ''), filename, mime_type, size, uploader_id, coalesce(public_url, ''), created_at`

func scanAttachment(row pgx.Row) (*domain.Attachment, error) {
	var a domain.Attachment
	if err := row.Scan(
		&a.ID,
		&a.ArticleID,
		&a.StoragePath,
		&a.Filename,
		&a.MIMEType,
		&a.Size,
		&a.UploaderID,
		&a.PublicURL,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetAttachment(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	a, err := scanAttachment(s.db.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NewNotFound("attachment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attachment: %w", err)
	}
	return a, nil
}

func (s *Store) ListAttachments(ctx context.Context, articleID uuid.UUID) ([]domain.Attachment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+attachmentColumns+`
		FROM attachments
		WHERE article_id = $1
		ORDER BY created_at, id`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var out []domain.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return classify(err, "delete attachment")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NewNotFound("attachment", id)
	}
	return nil
}

func (s *Store) SaveReport(ctx context.Context, report *domain.SimilarityReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO similarity_reports (id, article_id, method, summary, artifact_path, artifact_url, initiator_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		report.ID,
		report.ArticleID,
		report.Method,
		summary,
		report.ArtifactPath,
		report.ArtifactURL,
		report.InitiatorID,
		report.Status,
		report.CreatedAt,
	)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && pgErr.SQLState() == codeForeignKeyViolation {
		return apperr.NewNotFound("article", report.ArticleID)
	}
	if err != nil {
		return classify(err, "insert similarity report")
	}
	return nil
}

const reportColumns = `id, article_id, method, summary, artifact_path, artifact_url, initiator_id, status, created_at`

func scanReport(row pgx.Row) (*domain.SimilarityReport, error) {
	var (
		r       domain.SimilarityReport
		summary []byte
	)
	if err := row.Scan(
		&r.ID,
		&r.ArticleID,
		&r.Method,
		&summary,
		&r.ArtifactPath,
		&r.ArtifactURL,
		&r.InitiatorID,
		&r.Status,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &r, nil
}

func (s *Store) LatestReport(ctx context.Context, articleID uuid.UUID) (*domain.SimilarityReport, error) {
	r, err := scanReport(s.db.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM similarity_reports
		WHERE article_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, articleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NewNotFound("similarity report for article", articleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return r, nil
}

func (s *Store) ListReports(ctx context.Context, articleID uuid.UUID) ([]domain.SimilarityReport, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reportColumns+`
		FROM similarity_reports
		WHERE article_id = $1
		ORDER BY created_at DESC`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	out := []domain.SimilarityReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// SaveMessage is idempotent on the notification id.
func (s *Store) SaveMessage(ctx context.Context, n domain.Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, kind, recipient_id, article_id, subject, body, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.Kind, n.RecipientID, n.ArticleID, n.Subject, n.Body, n.Read, n.CreatedAt)
	if err != nil {
		return classify(err, "insert message")
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, recipientID uuid.UUID) ([]domain.Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, kind, recipient_id, article_id, subject, body, read, created_at
		FROM messages
		WHERE recipient_id = $1
		ORDER BY created_at, id`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Kind, &n.RecipientID, &n.ArticleID, &n.Subject, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx, `SELECT id, name, email, role, active FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NewNotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

func (s *Store) UsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, email, role, active
		FROM users
		WHERE role = $1 AND active
		ORDER BY id`, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRow(ctx, `SELECT id, name, active FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NewNotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return &c, nil
}

func (s *Store) SeedUser(ctx context.Context, u domain.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, name, email, role, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name, email = excluded.email, role = excluded.role, active = excluded.active`,
		u.ID, u.Name, u.Email, u.Role, u.Active)
	if err != nil {
		return classify(err, "upsert user")
	}
	return nil
}

func (s *Store) SeedCategory(ctx context.Context, c domain.Category) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO categories (id, name, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		c.ID, c.Name, c.Active)
	if err != nil {
		return classify(err, "upsert category")
	}
	return nil
}
