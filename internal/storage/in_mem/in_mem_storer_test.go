package in_mem

import (
	"context"
	"testing"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedArticle(t *testing.T, s *InMemStorer, status domain.Status) *domain.Article {
	t.Helper()
	a := &domain.Article{ID: uuid.New(), Title: "t", AuthorID: uuid.New(), Status: status}
	require.NoError(t, s.CreateArticle(context.Background(), a))
	return a
}

func TestTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("commits status and event together", func(t *testing.T) {
		s := NewInMemStorer()
		a := seedArticle(t, s, domain.StatusDraft)

		res, err := s.Transition(ctx, storage.Transition{
			ArticleID: a.ID,
			Expected:  domain.StatusDraft,
			Event:     domain.NewWorkflowEvent(a.ID, a.AuthorID, domain.StatusDraft, domain.StatusSubmitted, ""),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSubmitted, res.Article.Status)

		evs, err := s.ListEvents(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.Equal(t, int64(1), evs[0].Seq)
	})

	t.Run("stale expected status conflicts without writing", func(t *testing.T) {
		s := NewInMemStorer()
		a := seedArticle(t, s, domain.StatusSubmitted)

		_, err := s.Transition(ctx, storage.Transition{
			ArticleID: a.ID,
			Expected:  domain.StatusDraft,
			Event:     domain.NewWorkflowEvent(a.ID, a.AuthorID, domain.StatusDraft, domain.StatusSubmitted, ""),
		})
		var ce *apperr.ConflictError
		require.ErrorAs(t, err, &ce)

		evs, _ := s.ListEvents(ctx, a.ID)
		assert.Empty(t, evs)
	})

	t.Run("malformed event leaves status untouched", func(t *testing.T) {
		s := NewInMemStorer()
		a := seedArticle(t, s, domain.StatusDraft)
		mutated := false

		_, err := s.Transition(ctx, storage.Transition{
			ArticleID: a.ID,
			Expected:  domain.StatusDraft,
			Event:     domain.NewWorkflowEvent(a.ID, a.AuthorID, domain.StatusApproved, domain.StatusSubmitted, ""),
			Mutate:    func(*domain.Article) { mutated = true },
		})
		require.Error(t, err)
		assert.False(t, mutated)

		got, err := s.GetArticle(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDraft, got.Status)
	})

	t.Run("inactive completion target aborts the transition", func(t *testing.T) {
		s := NewInMemStorer()
		a := seedArticle(t, s, domain.StatusUnderReview)
		as := &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentEditor, AssigneeID: uuid.New()}
		_, err := s.ReplaceAssignment(ctx, as, "")
		require.NoError(t, err)
		_, err = s.SetAssignmentStatus(ctx, as.ID, domain.AssignmentCancelled)
		require.NoError(t, err)

		_, err = s.Transition(ctx, storage.Transition{
			ArticleID: a.ID,
			Expected:  domain.StatusUnderReview,
			Event:     domain.NewWorkflowEvent(a.ID, uuid.New(), domain.StatusUnderReview, domain.StatusApproved, ""),
			Complete:  []uuid.UUID{as.ID},
		})
		var ce *apperr.ConflictError
		require.ErrorAs(t, err, &ce)

		got, _ := s.GetArticle(ctx, a.ID)
		assert.Equal(t, domain.StatusUnderReview, got.Status)
	})
}

func TestReplaceAssignment(t *testing.T) {
	ctx := context.Background()
	s := NewInMemStorer()
	a := seedArticle(t, s, domain.StatusUnderReview)

	first := &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentReviewer, AssigneeID: uuid.New()}
	cancelled, err := s.ReplaceAssignment(ctx, first, domain.StatusUnderReview)
	require.NoError(t, err)
	assert.Nil(t, cancelled)

	second := &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentReviewer, AssigneeID: uuid.New()}
	cancelled, err = s.ReplaceAssignment(ctx, second, "")
	require.NoError(t, err)
	require.NotNil(t, cancelled)
	assert.Equal(t, first.ID, cancelled.ID)
	assert.Equal(t, domain.AssignmentCancelled, cancelled.Status)

	active, err := s.ActiveAssignment(ctx, a.ID, domain.AssignmentReviewer)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	none, err := s.ActiveAssignment(ctx, a.ID, domain.AssignmentEditor)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestReplaceAssignment_StaleStatus(t *testing.T) {
	ctx := context.Background()
	s := NewInMemStorer()
	a := seedArticle(t, s, domain.StatusUnderReview)

	_, err := s.Transition(ctx, storage.Transition{
		ArticleID: a.ID,
		Expected:  domain.StatusUnderReview,
		Event:     domain.NewWorkflowEvent(a.ID, uuid.New(), domain.StatusUnderReview, domain.StatusApproved, ""),
	})
	require.NoError(t, err)

	late := &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentReviewer, AssigneeID: uuid.New()}
	_, err = s.ReplaceAssignment(ctx, late, domain.StatusUnderReview)
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)

	active, err := s.ActiveAssignment(ctx, a.ID, domain.AssignmentReviewer)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestAttachmentsAndCascade(t *testing.T) {
	ctx := context.Background()
	s := NewInMemStorer()
	a := seedArticle(t, s, domain.StatusDraft)

	err := s.AddAttachment(ctx, &domain.Attachment{ArticleID: a.ID, Filename: "x.txt"})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	require.NoError(t, s.AddAttachment(ctx, &domain.Attachment{ArticleID: a.ID, StoragePath: "a/1", Filename: "1.txt"}))
	err = s.AddAttachment(ctx, &domain.Attachment{ArticleID: a.ID, StoragePath: "a/1", Filename: "dup.txt"})
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)

	require.NoError(t, s.SaveReport(ctx, &domain.SimilarityReport{ArticleID: a.ID, Method: domain.MethodTFIDF}))

	require.NoError(t, s.DeleteArticle(ctx, a.ID, domain.StatusDraft))
	atts, _ := s.ListAttachments(ctx, a.ID)
	assert.Empty(t, atts)
	_, err = s.LatestReport(ctx, a.ID)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestListArticles_FiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := NewInMemStorer()
	author := uuid.New()
	for i := 0; i < 5; i++ {
		a := &domain.Article{Title: "t", AuthorID: author, Status: domain.StatusDraft}
		require.NoError(t, s.CreateArticle(ctx, a))
	}
	seedArticle(t, s, domain.StatusPublished)

	page, total, err := s.ListArticles(ctx, domain.ArticleFilter{AuthorID: author, Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	published, total, err := s.ListArticles(ctx, domain.ArticleFilter{Status: domain.StatusPublished})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, published, 1)
}
