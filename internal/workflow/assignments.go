package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
)

type AssignInput struct {
	AssigneeID uuid.UUID  `json:"assigneeId"`
	DueAt      *time.Time `json:"dueAt"`
	Note       string     `json:"note"`
}

// eligible roles per assignment kind
var assigneeRoles = map[domain.AssignmentKind][]domain.Role{
	domain.AssignmentEditor:   {domain.RoleEditor, domain.RoleContentManager, domain.RoleAdmin},
	domain.AssignmentReviewer: {domain.RoleReviewer, domain.RoleEditor},
}

func (e *Engine) AssignEditor(ctx context.Context, actor domain.Actor, articleID uuid.UUID, in AssignInput) (*Result, error) {
	if !actor.Is(domain.RoleAdmin, domain.RoleContentManager) {
		return nil, apperr.NewAuthorization("only admins and content managers assign editors")
	}
	return e.assign(ctx, actor, articleID, domain.AssignmentEditor, in)
}

func (e *Engine) AssignReviewer(ctx context.Context, actor domain.Actor, articleID uuid.UUID, in AssignInput) (*Result, error) {
	if !actor.Role.Privileged() {
		return nil, apperr.NewAuthorization("only admins, content managers and editors assign reviewers")
	}
	return e.assign(ctx, actor, articleID, domain.AssignmentReviewer, in)
}

// assign supersedes any active assignment of the same kind. A submitted article
// moves under review in the same unit of work.
func (e *Engine) assign(ctx context.Context, actor domain.Actor, articleID uuid.UUID, kind domain.AssignmentKind, in AssignInput) (*Result, error) {
	if in.AssigneeID == uuid.Nil {
		return nil, apperr.NewValidation("assigneeId is required")
	}
	assignee, err := e.store.GetUser(ctx, in.AssigneeID)
	if err != nil {
		return nil, apperr.NewValidationWrap("unknown assignee", err)
	}
	if !assignee.Active || !assignee.Actor().Is(assigneeRoles[kind]...) {
		return nil, apperr.NewValidation(fmt.Sprintf("user %s cannot be assigned as %s", assignee.ID, kind))
	}

	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !article.Status.Active() {
		return nil, apperr.NewConflict("article %s is %s", articleID, article.Status)
	}
	if article.OwnedBy(assignee.ID) {
		return nil, apperr.NewValidation("authors cannot be assigned to their own article")
	}

	assignment := &domain.Assignment{
		ID:         uuid.New(),
		ArticleID:  articleID,
		Kind:       kind,
		AssigneeID: assignee.ID,
		AssignedBy: actor.ID,
		Status:     domain.AssignmentAssigned,
		DueAt:      in.DueAt,
	}

	if article.Status == domain.StatusSubmitted {
		return e.move(ctx, actor, articleID, step{
			to:     domain.StatusUnderReview,
			note:   assignNote(kind, assignee, in.Note),
			assign: assignment,
			notify: func(ctx context.Context, a *domain.Article, _ []domain.Assignment) []domain.Notification {
				return []domain.Notification{
					notifyUser(domain.NotifyAssigned, assignee.ID, a, fmt.Sprintf("was assigned to you as %s", kind)),
					notifyAuthor(domain.NotifyAssigned, a, "is under review"),
				}
			},
		})
	}

	cancelled, err := e.store.ReplaceAssignment(ctx, assignment, article.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to assign %s: %w", kind, err)
	}
	slog.Info("Assignment created", "article", articleID, "kind", kind, "assignee", assignee.ID)

	ns := []domain.Notification{
		notifyUser(domain.NotifyAssigned, assignee.ID, article, fmt.Sprintf("was assigned to you as %s", kind)),
	}
	if cancelled != nil && cancelled.AssigneeID != assignee.ID {
		ns = append(ns, notifyUser(domain.NotifyUnassigned, cancelled.AssigneeID, article, fmt.Sprintf("was reassigned to another %s", kind)))
	}
	e.dispatch(ctx, ns...)

	return &Result{Article: article, Assignment: assignment, Cancelled: cancelled}, nil
}

func (e *Engine) Unassign(ctx context.Context, actor domain.Actor, articleID uuid.UUID, kind domain.AssignmentKind) (*domain.Assignment, error) {
	allowed := actor.Is(domain.RoleAdmin, domain.RoleContentManager) ||
		(kind == domain.AssignmentReviewer && actor.Role == domain.RoleEditor)
	if !allowed {
		return nil, apperr.NewAuthorization("actor %s may not remove the %s of article %s", actor.ID, kind, articleID)
	}

	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	current, err := e.store.ActiveAssignment(ctx, articleID, kind)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NewNotFound("active "+string(kind)+" assignment for article", articleID)
	}

	cancelled, err := e.store.SetAssignmentStatus(ctx, current.ID, domain.AssignmentCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel assignment: %w", err)
	}
	slog.Info("Assignment cancelled", "article", articleID, "assignment", cancelled.ID, "actor", actor.ID)

	e.dispatch(ctx, notifyUser(domain.NotifyUnassigned, cancelled.AssigneeID, article, fmt.Sprintf("is no longer assigned to you as %s", kind)))
	return cancelled, nil
}

// StartAssignment marks the actor's own assignment as in progress.
func (e *Engine) StartAssignment(ctx context.Context, actor domain.Actor, articleID uuid.UUID, kind domain.AssignmentKind) (*domain.Assignment, error) {
	current, err := e.ownAssignment(ctx, actor, articleID, kind)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.AssignmentAssigned {
		return nil, apperr.NewConflict("assignment %s is already %s", current.ID, current.Status)
	}
	return e.store.SetAssignmentStatus(ctx, current.ID, domain.AssignmentInProgress)
}

// CompleteReview closes the actor's reviewer assignment and tells the editor.
func (e *Engine) CompleteReview(ctx context.Context, actor domain.Actor, articleID uuid.UUID, note string) (*domain.Assignment, error) {
	current, err := e.ownAssignment(ctx, actor, articleID, domain.AssignmentReviewer)
	if err != nil {
		return nil, err
	}
	done, err := e.store.SetAssignmentStatus(ctx, current.ID, domain.AssignmentCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to complete review: %w", err)
	}

	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		slog.Warn("Review completed but article reload failed", "article", articleID, "error", err)
		return done, nil
	}
	to := current.AssignedBy
	if editor, err := e.store.ActiveAssignment(ctx, articleID, domain.AssignmentEditor); err == nil && editor != nil {
		to = editor.AssigneeID
	}
	n := notifyUser(domain.NotifyApproved, to, article, "review was completed")
	if note != "" {
		n.Body += "\n\n" + note
	}
	e.dispatch(ctx, n)
	return done, nil
}

func (e *Engine) Assignments(ctx context.Context, actor domain.Actor, articleID uuid.UUID) ([]domain.Assignment, error) {
	if _, err := e.Readable(ctx, actor, articleID); err != nil {
		return nil, err
	}
	return e.store.ListAssignments(ctx, articleID)
}

func (e *Engine) ownAssignment(ctx context.Context, actor domain.Actor, articleID uuid.UUID, kind domain.AssignmentKind) (*domain.Assignment, error) {
	current, err := e.store.ActiveAssignment(ctx, articleID, kind)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NewNotFound("active "+string(kind)+" assignment for article", articleID)
	}
	if current.AssigneeID != actor.ID {
		return nil, apperr.NewAuthorization("assignment %s belongs to another user", current.ID)
	}
	return current, nil
}

func assignNote(kind domain.AssignmentKind, assignee *domain.User, note string) string {
	base := fmt.Sprintf("%s %s assigned", kind, assignee.Name)
	if note == "" {
		return base
	}
	return base + ": " + note
}
