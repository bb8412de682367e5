package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/google/uuid"
)

type Store interface {
	storage.ArticleStore
	storage.AssignmentStore
	storage.EventStore
	storage.AttachmentStore
	storage.UserDirectory
	storage.CategoryDirectory
}

// Notifier receives notifications after a workflow change has committed.
// Enqueue must not block on delivery.
type Notifier interface {
	Enqueue(ctx context.Context, notifications ...domain.Notification)
}

// Blobs holds attachment bytes.
type Blobs interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Delete(ctx context.Context, key string) error
}

type Engine struct {
	store    Store
	notifier Notifier
	blobs    Blobs
}

type EngineOption func(e *Engine)

func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

func WithBlobs(b Blobs) EngineOption {
	return func(e *Engine) {
		e.blobs = b
	}
}

func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		notifier: discardNotifier{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result describes the outcome of a workflow command.
type Result struct {
	Article    *domain.Article        `json:"article"`
	Events     []domain.WorkflowEvent `json:"events,omitempty"`
	Assignment *domain.Assignment     `json:"assignment,omitempty"`
	Cancelled  *domain.Assignment     `json:"cancelled,omitempty"`
}

type step struct {
	to       domain.Status
	note     string
	pricing  *domain.Pricing
	mutate   func(a *domain.Article)
	assign   *domain.Assignment
	complete func(active []domain.Assignment) []uuid.UUID
	notify   func(ctx context.Context, a *domain.Article, active []domain.Assignment) []domain.Notification
}

// move runs one transition as a critical section on a single article: read the
// persisted status, authorize against it, then commit status and event together.
func (e *Engine) move(ctx context.Context, actor domain.Actor, articleID uuid.UUID, st step) (*Result, error) {
	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	active, err := e.activeAssignments(ctx, articleID)
	if err != nil {
		return nil, err
	}

	rule, err := Check(article.Status, st.to, NewGrants(actor, article, active))
	if err != nil {
		return nil, e.denied(err, actor, article, st.to)
	}
	if rule.RequiresNote && st.note == "" {
		return nil, apperr.NewValidation(fmt.Sprintf("a note is required to move to %s", st.to))
	}
	if rule.RequiresPricing && st.pricing == nil {
		return nil, apperr.NewValidation("a pricing decision is required to publish")
	}

	t := storage.Transition{
		ArticleID: articleID,
		Expected:  article.Status,
		Event:     domain.NewWorkflowEvent(articleID, actor.ID, article.Status, st.to, st.note),
		Mutate:    st.mutate,
		Assign:    st.assign,
	}
	if st.complete != nil {
		t.Complete = st.complete(active)
	}

	res, err := e.store.Transition(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to move article %s to %s: %w", articleID, st.to, err)
	}

	slog.Info("Article transitioned",
		"article", articleID,
		"actor", actor.ID,
		"from", t.Event.From,
		"to", t.Event.To)

	if st.notify != nil {
		if st.assign != nil {
			active = append(activeWithout(active, res.Cancelled), *st.assign)
		}
		e.dispatch(ctx, st.notify(ctx, res.Article, active)...)
	}

	return &Result{
		Article:    res.Article,
		Events:     []domain.WorkflowEvent{t.Event},
		Assignment: st.assign,
		Cancelled:  res.Cancelled,
	}, nil
}

func (e *Engine) denied(err error, actor domain.Actor, article *domain.Article, to domain.Status) error {
	if errors.Is(err, ErrNoSuchTransition) {
		return apperr.NewConflict("article %s is %s and cannot move to %s", article.ID, article.Status, to)
	}
	return apperr.NewAuthorization("actor %s (%s) may not move article %s from %s to %s",
		actor.ID, actor.Role, article.ID, article.Status, to)
}

func (e *Engine) activeAssignments(ctx context.Context, articleID uuid.UUID) ([]domain.Assignment, error) {
	var active []domain.Assignment
	for _, kind := range []domain.AssignmentKind{domain.AssignmentEditor, domain.AssignmentReviewer} {
		a, err := e.store.ActiveAssignment(ctx, articleID, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s assignment: %w", kind, err)
		}
		if a != nil {
			active = append(active, *a)
		}
	}
	return active, nil
}

// dispatch hands notifications over once the mutation is durable.
func (e *Engine) dispatch(ctx context.Context, ns ...domain.Notification) {
	if len(ns) == 0 {
		return
	}
	e.notifier.Enqueue(context.WithoutCancel(ctx), ns...)
}

func activeWithout(active []domain.Assignment, cancelled *domain.Assignment) []domain.Assignment {
	if cancelled == nil {
		return active
	}
	out := active[:0:0]
	for _, a := range active {
		if a.ID != cancelled.ID {
			out = append(out, a)
		}
	}
	return out
}

func completeAll(active []domain.Assignment) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(active))
	for _, a := range active {
		ids = append(ids, a.ID)
	}
	return ids
}

type discardNotifier struct{}

func (discardNotifier) Enqueue(context.Context, ...domain.Notification) {}
