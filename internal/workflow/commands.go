package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
)

type DraftInput struct {
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Summary    string         `json:"summary"`
	CategoryID *uuid.UUID     `json:"categoryId"`
	Tags       []string       `json:"tags"`
	Metadata   map[string]any `json:"metadata"`
}

type FinalizeMode string

const (
	FinalizeForReview  FinalizeMode = "review"
	FinalizeForPublish FinalizeMode = "publish"
)

func ParseFinalizeMode(raw string) (FinalizeMode, error) {
	switch m := FinalizeMode(strings.ToLower(raw)); m {
	case FinalizeForReview, FinalizeForPublish:
		return m, nil
	default:
		return "", fmt.Errorf("finalize mode must be %q or %q", FinalizeForReview, FinalizeForPublish)
	}
}

func (e *Engine) CreateDraft(ctx context.Context, actor domain.Actor, in DraftInput) (*domain.Article, error) {
	if actor.Role == domain.RoleReviewer {
		return nil, apperr.NewAuthorization("reviewers cannot author articles")
	}
	if err := e.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	article := &domain.Article{
		ID:         uuid.New(),
		Title:      strings.TrimSpace(in.Title),
		Body:       in.Body,
		Summary:    in.Summary,
		AuthorID:   actor.ID,
		CategoryID: in.CategoryID,
		Tags:       normalizeTags(in.Tags),
		Metadata:   in.Metadata,
		Status:     domain.StatusDraft,
	}
	if err := article.Validate(); err != nil {
		return nil, apperr.NewValidationWrap("invalid article", err)
	}
	if err := e.store.CreateArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	slog.Info("Draft created", "article", article.ID, "author", actor.ID)
	return article, nil
}

// SaveDraft updates content. Owners may edit while the article is editable;
// admins, content managers and the assigned editor may edit while it is active.
func (e *Engine) SaveDraft(ctx context.Context, actor domain.Actor, articleID uuid.UUID, in DraftInput) (*domain.Article, error) {
	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	active, err := e.activeAssignments(ctx, articleID)
	if err != nil {
		return nil, err
	}

	grants := NewGrants(actor, article, active)
	switch {
	case grants.Has(CapOwner) && article.Editable():
	case article.Status.Active() && (grants.Has(capAdmin) || grants.Has(capContentManager) || grants.Has(CapAssignedEditor)):
	case grants.Has(CapOwner):
		return nil, apperr.NewConflict("article %s is %s and no longer editable by its author", articleID, article.Status)
	default:
		return nil, apperr.NewAuthorization("actor %s may not edit article %s", actor.ID, articleID)
	}

	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.NewValidation("title is required")
	}
	if err := e.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	return e.store.UpdateArticle(ctx, articleID, article.Status, func(a *domain.Article) error {
		a.Title = strings.TrimSpace(in.Title)
		a.Body = in.Body
		a.Summary = in.Summary
		a.CategoryID = in.CategoryID
		a.Tags = normalizeTags(in.Tags)
		if in.Metadata != nil {
			a.Metadata = in.Metadata
		}
		return nil
	})
}

// DeleteArticle hard-deletes a draft by its owner, or any article by an admin.
func (e *Engine) DeleteArticle(ctx context.Context, actor domain.Actor, articleID uuid.UUID) error {
	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return err
	}

	var expected domain.Status
	switch {
	case actor.Role == domain.RoleAdmin:
	case article.OwnedBy(actor.ID) && article.Status == domain.StatusDraft:
		expected = domain.StatusDraft
	case article.OwnedBy(actor.ID):
		return apperr.NewConflict("only drafts can be deleted by their author")
	default:
		return apperr.NewAuthorization("actor %s may not delete article %s", actor.ID, articleID)
	}

	attachments, err := e.store.ListAttachments(ctx, articleID)
	if err != nil {
		return fmt.Errorf("failed to list attachments: %w", err)
	}
	if err := e.store.DeleteArticle(ctx, articleID, expected); err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}

	for _, a := range attachments {
		if a.StoragePath != "" {
			e.dropBlob(ctx, a.StoragePath)
		}
	}
	slog.Info("Article deleted", "article", articleID, "actor", actor.ID)
	return nil
}

func (e *Engine) SubmitArticle(ctx context.Context, actor domain.Actor, articleID uuid.UUID, note string) (*Result, error) {
	return e.move(ctx, actor, articleID, step{
		to:     domain.StatusSubmitted,
		note:   note,
		notify: e.notifyManagers(domain.NotifySubmitted, "submitted for review"),
	})
}

// Resubmit sends an article back after the author addressed requested changes.
func (e *Engine) Resubmit(ctx context.Context, actor domain.Actor, articleID uuid.UUID, note string) (*Result, error) {
	return e.move(ctx, actor, articleID, step{
		to:   domain.StatusSubmitted,
		note: note,
		notify: func(ctx context.Context, a *domain.Article, active []domain.Assignment) []domain.Notification {
			if ns := notifyAssignees(domain.NotifyResubmitted, a, active, "resubmitted by the author"); len(ns) > 0 {
				return ns
			}
			return e.notifyManagers(domain.NotifyResubmitted, "resubmitted by the author")(ctx, a, active)
		},
	})
}

func (e *Engine) ReturnToDraft(ctx context.Context, actor domain.Actor, articleID uuid.UUID, note string) (*Result, error) {
	return e.move(ctx, actor, articleID, step{to: domain.StatusDraft, note: note})
}

// StartReview moves a submitted article under review when it already has an
// active editor or reviewer, as after a resubmission.
func (e *Engine) StartReview(ctx context.Context, actor domain.Actor, articleID uuid.UUID) (*Result, error) {
	active, err := e.activeAssignments(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, apperr.NewValidation("assign an editor or reviewer to start the review")
	}
	return e.move(ctx, actor, articleID, step{
		to: domain.StatusUnderReview,
		notify: func(ctx context.Context, a *domain.Article, active []domain.Assignment) []domain.Notification {
			return append(notifyAssignees(domain.NotifyAssigned, a, active, "back under review"),
				notifyAuthor(domain.NotifyAssigned, a, "is under review"))
		},
	})
}

func (e *Engine) RequestAuthorChanges(ctx context.Context, actor domain.Actor, articleID uuid.UUID, note string) (*Result, error) {
	return e.move(ctx, actor, articleID, step{
		to:   domain.StatusChangesRequested,
		note: note,
		notify: func(ctx context.Context, a *domain.Article, _ []domain.Assignment) []domain.Notification {
			n := notifyAuthor(domain.NotifyChangesRequested, a, "needs changes")
			n.Body += "\n\n" + note
			return []domain.Notification{n}
		},
	})
}

// ApproveForPublishing completes editorial work: every active assignment is
// completed together with the transition.
func (e *Engine) ApproveForPublishing(ctx context.Context, actor domain.Actor, articleID uuid.UUID, note string) (*Result, error) {
	return e.move(ctx, actor, articleID, step{
		to:       domain.StatusApproved,
		note:     note,
		complete: completeAll,
		notify: func(ctx context.Context, a *domain.Article, active []domain.Assignment) []domain.Notification {
			ns := e.notifyManagers(domain.NotifyApproved, "approved and ready to publish")(ctx, a, active)
			return append(ns, notifyAuthor(domain.NotifyApproved, a, "was approved"))
		},
	})
}

func (e *Engine) PublishContent(ctx context.Context, actor domain.Actor, articleID uuid.UUID, pricing domain.Pricing) (*Result, error) {
	if pricing.Price < 0 {
		return nil, apperr.NewValidation("price cannot be negative")
	}
	if pricing.IsFree {
		pricing.Price = 0
	} else if pricing.Price == 0 {
		return nil, apperr.NewValidation("a paid article needs a positive price")
	}

	return e.move(ctx, actor, articleID, step{
		to:      domain.StatusPublished,
		note:    publishNote(pricing),
		pricing: &pricing,
		mutate: func(a *domain.Article) {
			p := pricing
			now := time.Now().UTC()
			a.Pricing = &p
			a.PublishedAt = &now
		},
		notify: func(ctx context.Context, a *domain.Article, _ []domain.Assignment) []domain.Notification {
			return []domain.Notification{notifyAuthor(domain.NotifyPublished, a, "has been published")}
		},
	})
}

func (e *Engine) Reject(ctx context.Context, actor domain.Actor, articleID uuid.UUID, note string) (*Result, error) {
	return e.move(ctx, actor, articleID, step{
		to:   domain.StatusRejected,
		note: note,
		notify: func(ctx context.Context, a *domain.Article, active []domain.Assignment) []domain.Notification {
			n := notifyAuthor(domain.NotifyRejected, a, "was rejected")
			n.Body += "\n\n" + note
			return append(notifyAssignees(domain.NotifyRejected, a, active, "was rejected"), n)
		},
	})
}

// FinalizeEditing closes the assigned editor's work. In review mode the article
// is approved; in publish mode it is approved and then published when the
// actor may publish, otherwise content managers are asked to publish it.
func (e *Engine) FinalizeEditing(ctx context.Context, actor domain.Actor, articleID uuid.UUID, mode FinalizeMode, pricing *domain.Pricing) (*Result, error) {
	switch mode {
	case FinalizeForReview:
		return e.ApproveForPublishing(ctx, actor, articleID, "editing finalized")
	case FinalizeForPublish:
	default:
		return nil, apperr.NewValidation(fmt.Sprintf("unknown finalize mode %q", mode))
	}

	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	var approved *Result
	if article.Status == domain.StatusUnderReview {
		approved, err = e.ApproveForPublishing(ctx, actor, articleID, "editing finalized for publishing")
		if err != nil {
			return nil, err
		}
	}

	canPublish := actor.Is(domain.RoleContentManager, domain.RoleAdmin)
	if !canPublish || pricing == nil {
		if approved == nil {
			return nil, apperr.NewConflict("article %s is %s, nothing to finalize", articleID, article.Status)
		}
		return approved, nil
	}

	published, err := e.PublishContent(ctx, actor, articleID, *pricing)
	if err != nil {
		return nil, err
	}
	if approved != nil {
		published.Events = append(approved.Events, published.Events...)
	}
	return published, nil
}

func (e *Engine) History(ctx context.Context, actor domain.Actor, articleID uuid.UUID) ([]domain.WorkflowEvent, error) {
	if _, err := e.Readable(ctx, actor, articleID); err != nil {
		return nil, err
	}
	return e.store.ListEvents(ctx, articleID)
}

// Readable loads the article when the actor may see it.
func (e *Engine) Readable(ctx context.Context, actor domain.Actor, articleID uuid.UUID) (*domain.Article, error) {
	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.Status == domain.StatusPublished {
		return article, nil
	}
	return e.participant(ctx, actor, article)
}

// Participant loads the article when the actor owns it, is assigned to it or
// holds a privileged role. Attachments and reports require this.
func (e *Engine) Participant(ctx context.Context, actor domain.Actor, articleID uuid.UUID) (*domain.Article, error) {
	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return e.participant(ctx, actor, article)
}

func (e *Engine) participant(ctx context.Context, actor domain.Actor, article *domain.Article) (*domain.Article, error) {
	articleID := article.ID
	active, err := e.activeAssignments(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !CanRead(actor, article, active) {
		return nil, apperr.NewAuthorization("actor %s may not read article %s", actor.ID, articleID)
	}
	return article, nil
}

// ListArticles shows everything to privileged roles; other actors see their own
// work and published articles.
func (e *Engine) ListArticles(ctx context.Context, actor domain.Actor, filter domain.ArticleFilter) ([]domain.Article, int, error) {
	if !actor.Role.Privileged() && filter.Status != domain.StatusPublished {
		filter.AuthorID = actor.ID
	}
	return e.store.ListArticles(ctx, filter)
}

func (e *Engine) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	c, err := e.store.GetCategory(ctx, *id)
	if err != nil {
		return apperr.NewValidationWrap("unknown category", err)
	}
	if !c.Active {
		return apperr.NewValidation(fmt.Sprintf("category %s is not active", c.Name))
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func publishNote(p domain.Pricing) string {
	if p.IsFree {
		return "published free"
	}
	return fmt.Sprintf("published at price %d", p.Price)
}
