package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkflowEvent is the append-only audit record of one legal transition.
type WorkflowEvent struct {
	ID        uuid.UUID `json:"id"`
	Seq       int64     `json:"seq"`
	ArticleID uuid.UUID `json:"articleId"`
	ActorID   uuid.UUID `json:"actorId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewWorkflowEvent(articleID, actorID uuid.UUID, from, to Status, note string) WorkflowEvent {
	return WorkflowEvent{
		ID:        uuid.New(),
		ArticleID: articleID,
		ActorID:   actorID,
		From:      from,
		To:        to,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
}

type AssignmentKind string

const (
	AssignmentEditor   AssignmentKind = "editor"
	AssignmentReviewer AssignmentKind = "reviewer"
)

func ParseAssignmentKind(raw string) (AssignmentKind, error) {
	switch k := AssignmentKind(raw); k {
	case AssignmentEditor, AssignmentReviewer:
		return k, nil
	default:
		return "", fmt.Errorf("unknown assignment kind %q", raw)
	}
}

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentCancelled  AssignmentStatus = "cancelled"
)

type Assignment struct {
	ID         uuid.UUID        `json:"id"`
	ArticleID  uuid.UUID        `json:"articleId"`
	Kind       AssignmentKind   `json:"kind"`
	AssigneeID uuid.UUID        `json:"assigneeId"`
	AssignedBy uuid.UUID        `json:"assignedBy"`
	Status     AssignmentStatus `json:"status"`
	DueAt      *time.Time       `json:"dueAt,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Active assignments are neither completed nor cancelled.
func (a *Assignment) Active() bool {
	return a.Status == AssignmentAssigned || a.Status == AssignmentInProgress
}
