package in_mem

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/DjordjeVuckovic/editorial-hub/pkg/pagination"
	"github.com/google/uuid"
)

// InMemStorer keeps every record in process memory. A single lock makes each
// operation atomic, which is what the workflow engine needs from a store.
type InMemStorer struct {
	storageLock sync.RWMutex
	articles    map[uuid.UUID]domain.Article
	assignments map[uuid.UUID]domain.Assignment
	events      map[uuid.UUID][]domain.WorkflowEvent
	attachments map[uuid.UUID]domain.Attachment
	reports     map[uuid.UUID][]domain.SimilarityReport
	messages    map[uuid.UUID][]domain.Notification
	users       map[uuid.UUID]domain.User
	categories  map[uuid.UUID]domain.Category
	seq         int64
}

func NewInMemStorer() *InMemStorer {
	return &InMemStorer{
		articles:    make(map[uuid.UUID]domain.Article),
		assignments: make(map[uuid.UUID]domain.Assignment),
		events:      make(map[uuid.UUID][]domain.WorkflowEvent),
		attachments: make(map[uuid.UUID]domain.Attachment),
		reports:     make(map[uuid.UUID][]domain.SimilarityReport),
		messages:    make(map[uuid.UUID][]domain.Notification),
		users:       make(map[uuid.UUID]domain.User),
		categories:  make(map[uuid.UUID]domain.Category),
	}
}

var _ storage.Store = (*InMemStorer)(nil)

func (s *InMemStorer) PutUser(u domain.User) {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()
	s.users[u.ID] = u
}

func (s *InMemStorer) PutCategory(c domain.Category) {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()
	s.categories[c.ID] = c
}

func (s *InMemStorer) SeedUser(_ context.Context, u domain.User) error {
	s.PutUser(u)
	return nil
}

func (s *InMemStorer) SeedCategory(_ context.Context, c domain.Category) error {
	s.PutCategory(c)
	return nil
}

func (s *InMemStorer) Close() {}

func (s *InMemStorer) CreateArticle(ctx context.Context, article *domain.Article) error {
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}
	now := time.Now().UTC()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now

	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	if _, ok := s.articles[article.ID]; ok {
		return apperr.NewConflict("article %s already exists", article.ID)
	}
	s.articles[article.ID] = cloneArticle(*article)
	slog.Debug("Saved article to in-memory storage", "id", article.ID, "title", article.Title)
	return nil
}

func (s *InMemStorer) GetArticle(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, apperr.NewNotFound("article", id)
	}
	out := cloneArticle(a)
	return &out, nil
}

func (s *InMemStorer) ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, int, error) {
	req := pagination.OffsetRequest{Page: filter.Page, Size: filter.Size}
	_ = req.Validate()

	s.storageLock.RLock()
	var matched []domain.Article
	for _, a := range s.articles {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.AuthorID != uuid.Nil && a.AuthorID != filter.AuthorID {
			continue
		}
		matched = append(matched, cloneArticle(a))
	}
	s.storageLock.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	start := req.Offset()
	if start >= total {
		return []domain.Article{}, total, nil
	}
	end := start + req.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *InMemStorer) UpdateArticle(
	ctx context.Context,
	id uuid.UUID,
	expected domain.Status,
	mutate func(a *domain.Article) error,
) (*domain.Article, error) {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	current, ok := s.articles[id]
	if !ok {
		return nil, apperr.NewNotFound("article", id)
	}
	if current.Status != expected {
		return nil, apperr.NewConflict("article %s is %s, expected %s", id, current.Status, expected)
	}

	next := cloneArticle(current)
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.Status = current.Status
	next.UpdatedAt = time.Now().UTC()
	s.articles[id] = next

	out := cloneArticle(next)
	return &out, nil
}

func (s *InMemStorer) Transition(ctx context.Context, t storage.Transition) (*storage.TransitionResult, error) {
	if err := storage.ValidateTransition(t); err != nil {
		return nil, err
	}

	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	current, ok := s.articles[t.ArticleID]
	if !ok {
		return nil, apperr.NewNotFound("article", t.ArticleID)
	}
	if current.Status != t.Expected {
		return nil, apperr.NewConflict("article %s is %s, expected %s", t.ArticleID, current.Status, t.Expected)
	}
	for _, id := range t.Complete {
		a, ok := s.assignments[id]
		if !ok || !a.Active() {
			return nil, apperr.NewConflict("assignment %s is no longer active", id)
		}
	}

	// every precondition holds: from here on nothing can fail
	now := time.Now().UTC()
	next := cloneArticle(current)
	if t.Mutate != nil {
		t.Mutate(&next)
	}
	next.Status = t.Event.To
	next.UpdatedAt = now
	s.articles[t.ArticleID] = next

	for _, id := range t.Complete {
		a := s.assignments[id]
		a.Status = domain.AssignmentCompleted
		a.UpdatedAt = now
		s.assignments[id] = a
	}

	result := &storage.TransitionResult{}
	if t.Assign != nil {
		result.Cancelled = s.replaceAssignmentLocked(t.Assign, now)
	}

	s.seq++
	ev := t.Event
	ev.Seq = s.seq
	s.events[t.ArticleID] = append(s.events[t.ArticleID], ev)

	out := cloneArticle(next)
	result.Article = &out
	return result, nil
}

func (s *InMemStorer) DeleteArticle(ctx context.Context, id uuid.UUID, expected domain.Status) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	current, ok := s.articles[id]
	if !ok {
		return apperr.NewNotFound("article", id)
	}
	if expected != "" && current.Status != expected {
		return apperr.NewConflict("article %s is %s, expected %s", id, current.Status, expected)
	}

	delete(s.articles, id)
	delete(s.events, id)
	delete(s.reports, id)
	for aid, a := range s.assignments {
		if a.ArticleID == id {
			delete(s.assignments, aid)
		}
	}
	for aid, a := range s.attachments {
		if a.ArticleID == id {
			delete(s.attachments, aid)
		}
	}
	return nil
}

func (s *InMemStorer) ReplaceAssignment(
	ctx context.Context,
	assignment *domain.Assignment,
	expected domain.Status,
) (*domain.Assignment, error) {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	current, ok := s.articles[assignment.ArticleID]
	if !ok {
		return nil, apperr.NewNotFound("article", assignment.ArticleID)
	}
	if expected != "" && current.Status != expected {
		return nil, apperr.NewConflict("article %s is %s, expected %s", assignment.ArticleID, current.Status, expected)
	}
	return s.replaceAssignmentLocked(assignment, time.Now().UTC()), nil
}

func (s *InMemStorer) replaceAssignmentLocked(assignment *domain.Assignment, now time.Time) *domain.Assignment {
	var cancelled *domain.Assignment
	for id, a := range s.assignments {
		if a.ArticleID == assignment.ArticleID && a.Kind == assignment.Kind && a.Active() {
			a.Status = domain.AssignmentCancelled
			a.UpdatedAt = now
			s.assignments[id] = a
			c := a
			cancelled = &c
		}
	}

	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	if assignment.Status == "" {
		assignment.Status = domain.AssignmentAssigned
	}
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	s.assignments[assignment.ID] = *assignment
	return cancelled
}

func (s *InMemStorer) ActiveAssignment(ctx context.Context, articleID uuid.UUID, kind domain.AssignmentKind) (*domain.Assignment, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	for _, a := range s.assignments {
		if a.ArticleID == articleID && a.Kind == kind && a.Active() {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InMemStorer) ListAssignments(ctx context.Context, articleID uuid.UUID) ([]domain.Assignment, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	var out []domain.Assignment
	for _, a := range s.assignments {
		if a.ArticleID == articleID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemStorer) SetAssignmentStatus(ctx context.Context, id uuid.UUID, status domain.AssignmentStatus) (*domain.Assignment, error) {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	a, ok := s.assignments[id]
	if !ok {
		return nil, apperr.NewNotFound("assignment", id)
	}
	if !a.Active() {
		return nil, apperr.NewConflict("assignment %s is %s", id, a.Status)
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	s.assignments[id] = a
	out := a
	return &out, nil
}

func (s *InMemStorer) ListEvents(ctx context.Context, articleID uuid.UUID) ([]domain.WorkflowEvent, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	events := s.events[articleID]
	out := make([]domain.WorkflowEvent, len(events))
	copy(out, events)
	return out, nil
}

func (s *InMemStorer) AddAttachment(ctx context.Context, attachment *domain.Attachment) error {
	if err := attachment.Validate(); err != nil {
		return apperr.NewValidationWrap("invalid attachment", err)
	}
	if attachment.ID == uuid.Nil {
		attachment.ID = uuid.New()
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}

	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	if _, ok := s.articles[attachment.ArticleID]; !ok {
		return apperr.NewNotFound("article", attachment.ArticleID)
	}
	if attachment.StoragePath != "" {
		for _, existing := range s.attachments {
			if existing.StoragePath == attachment.StoragePath {
				return apperr.NewConflict("storage path %s already in use", attachment.StoragePath)
			}
		}
	}
	s.attachments[attachment.ID] = *attachment
	return nil
}

func (s *InMemStorer) GetAttachment(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	a, ok := s.attachments[id]
	if !ok {
		return nil, apperr.NewNotFound("attachment", id)
	}
	return &a, nil
}

func (s *InMemStorer) ListAttachments(ctx context.Context, articleID uuid.UUID) ([]domain.Attachment, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	var out []domain.Attachment
	for _, a := range s.attachments {
		if a.ArticleID == articleID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemStorer) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	if _, ok := s.attachments[id]; !ok {
		return apperr.NewNotFound("attachment", id)
	}
	delete(s.attachments, id)
	return nil
}

func (s *InMemStorer) SaveReport(ctx context.Context, report *domain.SimilarityReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	s.storageLock.Lock()
	defer s.storageLock.Unlock()

	if _, ok := s.articles[report.ArticleID]; !ok {
		return apperr.NewNotFound("article", report.ArticleID)
	}
	s.reports[report.ArticleID] = append(s.reports[report.ArticleID], *report)
	return nil
}

func (s *InMemStorer) LatestReport(ctx context.Context, articleID uuid.UUID) (*domain.SimilarityReport, error) {
	reports, _ := s.ListReports(ctx, articleID)
	if len(reports) == 0 {
		return nil, apperr.NewNotFound("similarity report for article", articleID)
	}
	return &reports[0], nil
}

// ListReports returns the newest report first.
func (s *InMemStorer) ListReports(ctx context.Context, articleID uuid.UUID) ([]domain.SimilarityReport, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	reports := s.reports[articleID]
	out := make([]domain.SimilarityReport, len(reports))
	copy(out, reports)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemStorer) SaveMessage(ctx context.Context, n domain.Notification) error {
	s.storageLock.Lock()
	defer s.storageLock.Unlock()
	s.messages[n.RecipientID] = append(s.messages[n.RecipientID], n)
	return nil
}

func (s *InMemStorer) ListMessages(ctx context.Context, recipientID uuid.UUID) ([]domain.Notification, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	msgs := s.messages[recipientID]
	out := make([]domain.Notification, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemStorer) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NewNotFound("user", id)
	}
	return &u, nil
}

func (s *InMemStorer) UsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	var out []domain.User
	for _, u := range s.users {
		if u.Role == role && u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *InMemStorer) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	s.storageLock.RLock()
	defer s.storageLock.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, apperr.NewNotFound("category", id)
	}
	return &c, nil
}

func cloneArticle(a domain.Article) domain.Article {
	if a.Tags != nil {
		a.Tags = append([]string(nil), a.Tags...)
	}
	if a.Metadata != nil {
		md := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			md[k] = v
		}
		a.Metadata = md
	}
	if a.CategoryID != nil {
		id := *a.CategoryID
		a.CategoryID = &id
	}
	if a.Pricing != nil {
		p := *a.Pricing
		a.Pricing = &p
	}
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		a.PublishedAt = &t
	}
	return a
}
