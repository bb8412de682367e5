package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifySubmitted        NotificationKind = "article.submitted"
	NotifyAssigned         NotificationKind = "article.assigned"
	NotifyUnassigned       NotificationKind = "article.unassigned"
	NotifyChangesRequested NotificationKind = "article.changes_requested"
	NotifyApproved         NotificationKind = "article.approved"
	NotifyPublished        NotificationKind = "article.published"
	NotifyRejected         NotificationKind = "article.rejected"
	NotifyResubmitted      NotificationKind = "article.resubmitted"
)

// Notification is a message for one recipient, emitted after a workflow change commits.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	Kind        NotificationKind `json:"kind"`
	RecipientID uuid.UUID        `json:"recipientId"`
	ArticleID   uuid.UUID        `json:"articleId"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func NewNotification(kind NotificationKind, recipient, articleID uuid.UUID, subject, body string) Notification {
	return Notification{
		ID:          uuid.New(),
		Kind:        kind,
		RecipientID: recipient,
		ArticleID:   articleID,
		Subject:     subject,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
}
