package storage

import (
	"context"
	"fmt"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
)

// Transition is one workflow step applied atomically: the status compare-and-set,
// the optional assignment changes and the audit event either all commit or none do.
type Transition struct {
	ArticleID uuid.UUID
	// Expected is the status the caller authorized against. A different persisted
	// status fails the transition with a conflict.
	Expected domain.Status
	Event    domain.WorkflowEvent
	// Mutate may set other article fields (pricing, publish time). It must not change Status.
	Mutate func(a *domain.Article)
	// Assign replaces the active assignment of the same kind, if any.
	Assign *domain.Assignment
	// Complete marks the listed active assignments completed.
	Complete []uuid.UUID
}

// ValidateTransition checks that the event describes the transition it travels with.
func ValidateTransition(t Transition) error {
	ev := t.Event
	if ev.ID == uuid.Nil || ev.ArticleID != t.ArticleID {
		return fmt.Errorf("invalid workflow event for article %s", t.ArticleID)
	}
	if ev.From != t.Expected || !ev.To.Valid() {
		return fmt.Errorf("workflow event %s -> %s does not match expected status %s", ev.From, ev.To, t.Expected)
	}
	return nil
}

type TransitionResult struct {
	Article   *domain.Article
	Cancelled *domain.Assignment
}

type ArticleStore interface {
	CreateArticle(ctx context.Context, article *domain.Article) error
	GetArticle(ctx context.Context, id uuid.UUID) (*domain.Article, error)
	ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, int, error)
	// UpdateArticle applies mutate when the persisted status still equals expected.
	UpdateArticle(ctx context.Context, id uuid.UUID, expected domain.Status, mutate func(a *domain.Article) error) (*domain.Article, error)
	Transition(ctx context.Context, t Transition) (*TransitionResult, error)
	// DeleteArticle removes the article with its assignments, events and attachment rows.
	DeleteArticle(ctx context.Context, id uuid.UUID, expected domain.Status) error
}

type AssignmentStore interface {
	// ReplaceAssignment cancels the active assignment of the same kind and inserts the new one.
	// A non-empty expected status is re-checked under the article lock.
	ReplaceAssignment(ctx context.Context, assignment *domain.Assignment, expected domain.Status) (*domain.Assignment, error)
	// ActiveAssignment returns nil without error when the article has no active assignment of that kind.
	ActiveAssignment(ctx context.Context, articleID uuid.UUID, kind domain.AssignmentKind) (*domain.Assignment, error)
	ListAssignments(ctx context.Context, articleID uuid.UUID) ([]domain.Assignment, error)
	// SetAssignmentStatus moves an active assignment to status. Inactive assignments yield a conflict.
	SetAssignmentStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus) (*domain.Assignment, error)
}

type EventStore interface {
	ListEvents(ctx context.Context, articleID uuid.UUID) ([]domain.WorkflowEvent, error)
}

type AttachmentStore interface {
	AddAttachment(ctx context.Context, attachment *domain.Attachment) error
	GetAttachment(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)
	ListAttachments(ctx context.Context, articleID uuid.UUID) ([]domain.Attachment, error)
	DeleteAttachment(ctx context.Context, id uuid.UUID) error
}

type ReportStore interface {
	SaveReport(ctx context.Context, report *domain.SimilarityReport) error
	LatestReport(ctx context.Context, articleID uuid.UUID) (*domain.SimilarityReport, error)
	ListReports(ctx context.Context, articleID uuid.UUID) ([]domain.SimilarityReport, error)
}

type MessageStore interface {
	SaveMessage(ctx context.Context, n domain.Notification) error
	ListMessages(ctx context.Context, recipientID uuid.UUID) ([]domain.Notification, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// UsersByRole lists active users holding role.
	UsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

type CategoryDirectory interface {
	GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error)
}

// Seeder loads directory records that are managed outside this service.
type Seeder interface {
	SeedUser(ctx context.Context, u domain.User) error
	SeedCategory(ctx context.Context, c domain.Category) error
}

type Store interface {
	ArticleStore
	AssignmentStore
	EventStore
	AttachmentStore
	ReportStore
	MessageStore
	UserDirectory
	CategoryDirectory
	Seeder
	Close()
}

type Type string

const (
	PG    Type = "pg"
	InMem Type = "in_mem"
)

type StorerError string

const (
	ErrUnsupportedStorer StorerError = "unsupported storer type: %s"
)

func (e StorerError) Error() string {
	return string(e)
}
