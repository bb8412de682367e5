package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusUnderReview      Status = "under_review"
	StatusChangesRequested Status = "changes_requested"
	StatusApproved         Status = "approved"
	StatusPublished        Status = "published"
	StatusRejected         Status = "rejected"
)

var Statuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusChangesRequested,
	StatusApproved,
	StatusPublished,
	StatusRejected,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Active reports whether the article can still move through the workflow.
func (s Status) Active() bool {
	return s.Valid() && s != StatusPublished && s != StatusRejected
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Pricing is attached to an article when it is published. Price is in minor currency units.
type Pricing struct {
	Price  int64 `json:"price"`
	IsFree bool  `json:"isFree"`
}

type Article struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Summary     string         `json:"summary,omitempty"`
	AuthorID    uuid.UUID      `json:"authorId"`
	CategoryID  *uuid.UUID     `json:"categoryId,omitempty"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Status      Status         `json:"status"`
	Pricing     *Pricing       `json:"pricing,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty"`
}

func (a *Article) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if a.AuthorID == uuid.Nil {
		return fmt.Errorf("author is required")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid status %q", a.Status)
	}
	return nil
}

// Editable reports whether the owning author may still change the content.
func (a *Article) Editable() bool {
	return a.Status == StatusDraft || a.Status == StatusChangesRequested
}

func (a *Article) OwnedBy(actorID uuid.UUID) bool {
	return a.AuthorID == actorID
}

type Category struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Active bool      `json:"active"`
}

// ArticleFilter narrows article listings. Zero values match everything.
type ArticleFilter struct {
	Status   Status
	AuthorID uuid.UUID
	Page     int
	Size     int
}
