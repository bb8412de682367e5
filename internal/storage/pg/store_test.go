//go:build integration

package pg

import (
	"context"
	"os"
	"testing"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	pkgtesting "github.com/DjordjeVuckovic/editorial-hub/pkg/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var (
	testCtx   context.Context
	testStore *Store
)

func TestMain(m *testing.M) {
	testCtx = context.Background()

	pg, err := pkgtesting.NewPGContainer(testCtx, pkgtesting.PGConfig{
		Database: "editorial_test_db",
		Username: "test",
		Password: "test",
	})
	if err != nil {
		panic(err)
	}

	pool, err := NewConnectionPool(testCtx, PoolConfig{ConnStr: pg.ConnString})
	if err != nil {
		_ = testcontainers.TerminateContainer(pg.Container)
		panic(err)
	}
	testStore = NewStore(pool)

	code := m.Run()
	testStore.Close()
	_ = testcontainers.TerminateContainer(pg.Container)
	os.Exit(code)
}

func seedUser(t *testing.T, role domain.Role) domain.User {
	t.Helper()
	u := domain.User{ID: uuid.New(), Name: string(role), Role: role, Active: true}
	require.NoError(t, testStore.SeedUser(testCtx, u))
	return u
}

func seedArticle(t *testing.T, status domain.Status) *domain.Article {
	t.Helper()
	author := seedUser(t, domain.RoleAuthor)
	a := &domain.Article{
		Title:    "Grid outage",
		Body:     "body",
		AuthorID: author.ID,
		Status:   status,
		Tags:     []string{"energy"},
		Metadata: map[string]any{"source": "desk"},
	}
	require.NoError(t, testStore.CreateArticle(testCtx, a))
	return a
}

func TestStore_ArticleRoundTrip(t *testing.T) {
	a := seedArticle(t, domain.StatusDraft)

	got, err := testStore.GetArticle(testCtx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
	assert.Equal(t, []string{"energy"}, got.Tags)
	assert.Equal(t, "desk", got.Metadata["source"])
	assert.Nil(t, got.Pricing)

	updated, err := testStore.UpdateArticle(testCtx, a.ID, domain.StatusDraft, func(a *domain.Article) error {
		a.Title = "Grid outage, day two"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Grid outage, day two", updated.Title)

	_, err = testStore.UpdateArticle(testCtx, a.ID, domain.StatusSubmitted, func(*domain.Article) error { return nil })
	var ce *apperr.ConflictError
	assert.ErrorAs(t, err, &ce)

	list, total, err := testStore.ListArticles(testCtx, domain.ArticleFilter{AuthorID: a.AuthorID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	_, err = testStore.GetArticle(testCtx, uuid.New())
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestStore_Transition(t *testing.T) {
	a := seedArticle(t, domain.StatusSubmitted)
	manager := seedUser(t, domain.RoleContentManager)
	editor := seedUser(t, domain.RoleEditor)

	assign := &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentEditor, AssigneeID: editor.ID, AssignedBy: manager.ID}
	res, err := testStore.Transition(testCtx, storage.Transition{
		ArticleID: a.ID,
		Expected:  domain.StatusSubmitted,
		Event:     domain.NewWorkflowEvent(a.ID, manager.ID, domain.StatusSubmitted, domain.StatusUnderReview, "take it"),
		Assign:    assign,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, res.Article.Status)
	assert.Nil(t, res.Cancelled)

	active, err := testStore.ActiveAssignment(testCtx, a.ID, domain.AssignmentEditor)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, editor.ID, active.AssigneeID)

	_, err = testStore.Transition(testCtx, storage.Transition{
		ArticleID: a.ID,
		Expected:  domain.StatusSubmitted,
		Event:     domain.NewWorkflowEvent(a.ID, manager.ID, domain.StatusSubmitted, domain.StatusUnderReview, ""),
	})
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)

	res, err = testStore.Transition(testCtx, storage.Transition{
		ArticleID: a.ID,
		Expected:  domain.StatusUnderReview,
		Event:     domain.NewWorkflowEvent(a.ID, editor.ID, domain.StatusUnderReview, domain.StatusApproved, ""),
		Complete:  []uuid.UUID{active.ID},
		Mutate: func(a *domain.Article) {
			a.Pricing = &domain.Pricing{Price: 250}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, res.Article.Status)

	got, err := testStore.GetArticle(testCtx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Pricing)
	assert.Equal(t, int64(250), got.Pricing.Price)

	none, err := testStore.ActiveAssignment(testCtx, a.ID, domain.AssignmentEditor)
	require.NoError(t, err)
	assert.Nil(t, none)

	events, err := testStore.ListEvents(testCtx, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.Equal(t, "take it", events[0].Note)
}

func TestStore_TransitionRollsBackOnEventFailure(t *testing.T) {
	a := seedArticle(t, domain.StatusSubmitted)
	manager := seedUser(t, domain.RoleContentManager)
	editor := seedUser(t, domain.RoleEditor)

	first := domain.NewWorkflowEvent(a.ID, manager.ID, domain.StatusSubmitted, domain.StatusUnderReview, "")
	_, err := testStore.Transition(testCtx, storage.Transition{
		ArticleID: a.ID,
		Expected:  domain.StatusSubmitted,
		Event:     first,
		Assign:    &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentEditor, AssigneeID: editor.ID, AssignedBy: manager.ID},
	})
	require.NoError(t, err)
	active, err := testStore.ActiveAssignment(testCtx, a.ID, domain.AssignmentEditor)
	require.NoError(t, err)
	require.NotNil(t, active)

	// reusing an event id violates the unique constraint after every other write ran
	dup := domain.NewWorkflowEvent(a.ID, editor.ID, domain.StatusUnderReview, domain.StatusApproved, "")
	dup.ID = first.ID
	_, err = testStore.Transition(testCtx, storage.Transition{
		ArticleID: a.ID,
		Expected:  domain.StatusUnderReview,
		Event:     dup,
		Complete:  []uuid.UUID{active.ID},
		Mutate: func(a *domain.Article) {
			a.Pricing = &domain.Pricing{Price: 99}
		},
		Assign: &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentReviewer, AssigneeID: seedUser(t, domain.RoleReviewer).ID},
	})
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)

	got, err := testStore.GetArticle(testCtx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, got.Status)
	assert.Nil(t, got.Pricing)

	still, err := testStore.ActiveAssignment(testCtx, a.ID, domain.AssignmentEditor)
	require.NoError(t, err)
	require.NotNil(t, still)
	assert.Equal(t, active.ID, still.ID)
	assert.Equal(t, domain.AssignmentAssigned, still.Status)

	reviewer, err := testStore.ActiveAssignment(testCtx, a.ID, domain.AssignmentReviewer)
	require.NoError(t, err)
	assert.Nil(t, reviewer)

	all, err := testStore.ListAssignments(testCtx, a.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	events, err := testStore.ListEvents(testCtx, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, first.ID, events[0].ID)
}

func TestStore_ReplaceAssignment(t *testing.T) {
	a := seedArticle(t, domain.StatusUnderReview)
	first := &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentReviewer, AssigneeID: seedUser(t, domain.RoleReviewer).ID}
	cancelled, err := testStore.ReplaceAssignment(testCtx, first, domain.StatusUnderReview)
	require.NoError(t, err)
	assert.Nil(t, cancelled)

	second := &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentReviewer, AssigneeID: seedUser(t, domain.RoleReviewer).ID}
	cancelled, err = testStore.ReplaceAssignment(testCtx, second, "")
	require.NoError(t, err)
	require.NotNil(t, cancelled)
	assert.Equal(t, first.ID, cancelled.ID)
	assert.Equal(t, domain.AssignmentCancelled, cancelled.Status)

	_, err = testStore.SetAssignmentStatus(testCtx, first.ID, domain.AssignmentCompleted)
	var ce *apperr.ConflictError
	assert.ErrorAs(t, err, &ce)

	started, err := testStore.SetAssignmentStatus(testCtx, second.ID, domain.AssignmentInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentInProgress, started.Status)

	all, err := testStore.ListAssignments(testCtx, a.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = testStore.ReplaceAssignment(testCtx, &domain.Assignment{ArticleID: uuid.New(), Kind: domain.AssignmentEditor}, "")
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestStore_ReplaceAssignmentStaleStatus(t *testing.T) {
	a := seedArticle(t, domain.StatusApproved)
	reviewer := &domain.Assignment{ArticleID: a.ID, Kind: domain.AssignmentReviewer, AssigneeID: seedUser(t, domain.RoleReviewer).ID}

	_, err := testStore.ReplaceAssignment(testCtx, reviewer, domain.StatusUnderReview)
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)

	active, err := testStore.ActiveAssignment(testCtx, a.ID, domain.AssignmentReviewer)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStore_AttachmentsReportsCascade(t *testing.T) {
	a := seedArticle(t, domain.StatusDraft)

	err := testStore.AddAttachment(testCtx, &domain.Attachment{ArticleID: a.ID, Filename: "x.txt", UploaderID: a.AuthorID})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	path := "articles/" + a.ID.String() + "/one.txt"
	require.NoError(t, testStore.AddAttachment(testCtx, &domain.Attachment{ArticleID: a.ID, StoragePath: path, Filename: "one.txt", UploaderID: a.AuthorID}))
	require.NoError(t, testStore.AddAttachment(testCtx, &domain.Attachment{ArticleID: a.ID, PublicURL: "https://example.org/a.txt", Filename: "a.txt", UploaderID: a.AuthorID}))

	err = testStore.AddAttachment(testCtx, &domain.Attachment{ArticleID: a.ID, StoragePath: path, Filename: "dup.txt", UploaderID: a.AuthorID})
	var ce *apperr.ConflictError
	require.ErrorAs(t, err, &ce)

	atts, err := testStore.ListAttachments(testCtx, a.ID)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Empty(t, atts[1].StoragePath)

	require.NoError(t, testStore.SaveReport(testCtx, &domain.SimilarityReport{
		ArticleID:   a.ID,
		Method:      domain.MethodTFIDF,
		InitiatorID: a.AuthorID,
		Status:      domain.ReportCompleted,
		Summary:     domain.SimilaritySummary{MaxSimilarity: 0.5, AvgSimilarity: 0.5},
	}))
	latest, err := testStore.LatestReport(testCtx, a.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, latest.Summary.MaxSimilarity, 1e-9)

	require.NoError(t, testStore.DeleteArticle(testCtx, a.ID, domain.StatusDraft))
	atts, err = testStore.ListAttachments(testCtx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, atts)

	_, err = testStore.LatestReport(testCtx, a.ID)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestStore_Directory(t *testing.T) {
	u := seedUser(t, domain.RoleEditor)
	u.Name = "renamed"
	require.NoError(t, testStore.SeedUser(testCtx, u))

	got, err := testStore.GetUser(testCtx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	editors, err := testStore.UsersByRole(testCtx, domain.RoleEditor)
	require.NoError(t, err)
	assert.NotEmpty(t, editors)

	n := domain.NewNotification(domain.NotifyAssigned, u.ID, uuid.New(), "assigned", "")
	require.NoError(t, testStore.SaveMessage(testCtx, n))
	require.NoError(t, testStore.SaveMessage(testCtx, n))
	msgs, err := testStore.ListMessages(testCtx, u.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	c := domain.Category{ID: uuid.New(), Name: "Energy", Active: true}
	require.NoError(t, testStore.SeedCategory(testCtx, c))
	gotCat, err := testStore.GetCategory(testCtx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Energy", gotCat.Name)
}
