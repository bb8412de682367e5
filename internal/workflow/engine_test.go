package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage/in_mem"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recordingNotifier) Enqueue(_ context.Context, ns ...domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, ns...)
}

func (r *recordingNotifier) to(recipient uuid.UUID, kind domain.NotificationKind) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.sent {
		if n.RecipientID == recipient && n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	ctx      context.Context
	store    *in_mem.InMemStorer
	notifier *recordingNotifier
	engine   *Engine

	author, otherAuthor, editor, secondEditor, reviewer, manager, admin domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:      context.Background(),
		store:    in_mem.NewInMemStorer(),
		notifier: &recordingNotifier{},
	}
	f.engine = NewEngine(f.store, WithNotifier(f.notifier))

	user := func(name string, role domain.Role) domain.Actor {
		u := domain.User{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: role, Active: true}
		f.store.PutUser(u)
		return u.Actor()
	}
	f.author = user("author", domain.RoleAuthor)
	f.otherAuthor = user("other", domain.RoleAuthor)
	f.editor = user("editor", domain.RoleEditor)
	f.secondEditor = user("editor2", domain.RoleEditor)
	f.reviewer = user("reviewer", domain.RoleReviewer)
	f.manager = user("manager", domain.RoleContentManager)
	f.admin = user("admin", domain.RoleAdmin)
	return f
}

func (f *fixture) draft(t *testing.T) *domain.Article {
	t.Helper()
	a, err := f.engine.CreateDraft(f.ctx, f.author, DraftInput{Title: "On tides", Body: "Moon and water."})
	require.NoError(t, err)
	return a
}

func (f *fixture) underReview(t *testing.T) *domain.Article {
	t.Helper()
	a := f.draft(t)
	_, err := f.engine.SubmitArticle(f.ctx, f.author, a.ID, "")
	require.NoError(t, err)
	_, err = f.engine.AssignEditor(f.ctx, f.manager, a.ID, AssignInput{AssigneeID: f.editor.ID})
	require.NoError(t, err)
	return a
}

func (f *fixture) approved(t *testing.T) *domain.Article {
	t.Helper()
	a := f.underReview(t)
	_, err := f.engine.ApproveForPublishing(f.ctx, f.editor, a.ID, "")
	require.NoError(t, err)
	return a
}

func (f *fixture) events(t *testing.T, id uuid.UUID) []domain.WorkflowEvent {
	t.Helper()
	evs, err := f.store.ListEvents(f.ctx, id)
	require.NoError(t, err)
	return evs
}

func (f *fixture) status(t *testing.T, id uuid.UUID) domain.Status {
	t.Helper()
	a, err := f.store.GetArticle(f.ctx, id)
	require.NoError(t, err)
	return a.Status
}

func TestCreateDraft(t *testing.T) {
	f := newFixture(t)

	t.Run("starts as draft owned by the actor", func(t *testing.T) {
		a, err := f.engine.CreateDraft(f.ctx, f.author, DraftInput{Title: "  Title ", Tags: []string{"a", " a", "", "b"}})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDraft, a.Status)
		assert.Equal(t, f.author.ID, a.AuthorID)
		assert.Equal(t, "Title", a.Title)
		assert.Equal(t, []string{"a", "b"}, a.Tags)
		assert.Empty(t, f.events(t, a.ID))
	})

	t.Run("title is required", func(t *testing.T) {
		_, err := f.engine.CreateDraft(f.ctx, f.author, DraftInput{Title: " "})
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("reviewers cannot author", func(t *testing.T) {
		_, err := f.engine.CreateDraft(f.ctx, f.reviewer, DraftInput{Title: "x"})
		var ae *apperr.AuthorizationError
		assert.ErrorAs(t, err, &ae)
	})

	t.Run("inactive category is rejected", func(t *testing.T) {
		c := domain.Category{ID: uuid.New(), Name: "old", Active: false}
		f.store.PutCategory(c)
		_, err := f.engine.CreateDraft(f.ctx, f.author, DraftInput{Title: "x", CategoryID: &c.ID})
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestSubmitArticle(t *testing.T) {
	f := newFixture(t)

	t.Run("owner submit writes exactly one event and notifies managers", func(t *testing.T) {
		a := f.draft(t)
		res, err := f.engine.SubmitArticle(f.ctx, f.author, a.ID, "ready")
		require.NoError(t, err)

		assert.Equal(t, domain.StatusSubmitted, res.Article.Status)
		evs := f.events(t, a.ID)
		require.Len(t, evs, 1)
		assert.Equal(t, domain.StatusDraft, evs[0].From)
		assert.Equal(t, domain.StatusSubmitted, evs[0].To)
		assert.Equal(t, f.author.ID, evs[0].ActorID)
		assert.Equal(t, "ready", evs[0].Note)
		assert.Len(t, f.notifier.to(f.manager.ID, domain.NotifySubmitted), 1)
	})

	t.Run("another author is forbidden and nothing changes", func(t *testing.T) {
		a := f.draft(t)
		_, err := f.engine.SubmitArticle(f.ctx, f.otherAuthor, a.ID, "")

		var ae *apperr.AuthorizationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, domain.StatusDraft, f.status(t, a.ID))
		assert.Empty(t, f.events(t, a.ID))
	})

	t.Run("second submit conflicts", func(t *testing.T) {
		a := f.draft(t)
		_, err := f.engine.SubmitArticle(f.ctx, f.author, a.ID, "")
		require.NoError(t, err)

		_, err = f.engine.SubmitArticle(f.ctx, f.author, a.ID, "")
		var ce *apperr.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Len(t, f.events(t, a.ID), 1)
	})

	t.Run("unknown article", func(t *testing.T) {
		_, err := f.engine.SubmitArticle(f.ctx, f.author, uuid.New(), "")
		var nf *apperr.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestAssignEditor(t *testing.T) {
	f := newFixture(t)

	t.Run("assigning on submitted moves under review", func(t *testing.T) {
		a := f.underReview(t)

		assert.Equal(t, domain.StatusUnderReview, f.status(t, a.ID))
		evs := f.events(t, a.ID)
		require.Len(t, evs, 2)
		assert.Equal(t, domain.StatusUnderReview, evs[1].To)
		assert.Greater(t, evs[1].Seq, evs[0].Seq)

		current, err := f.store.ActiveAssignment(f.ctx, a.ID, domain.AssignmentEditor)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, f.editor.ID, current.AssigneeID)
		assert.Len(t, f.notifier.to(f.editor.ID, domain.NotifyAssigned), 1)
	})

	t.Run("reassignment cancels the previous editor", func(t *testing.T) {
		a := f.underReview(t)

		res, err := f.engine.AssignEditor(f.ctx, f.manager, a.ID, AssignInput{AssigneeID: f.secondEditor.ID})
		require.NoError(t, err)
		require.NotNil(t, res.Cancelled)
		assert.Equal(t, f.editor.ID, res.Cancelled.AssigneeID)

		all, err := f.store.ListAssignments(f.ctx, a.ID)
		require.NoError(t, err)
		active := 0
		for _, as := range all {
			if as.Active() {
				active++
				assert.Equal(t, f.secondEditor.ID, as.AssigneeID)
			}
		}
		assert.Equal(t, 1, active)
		assert.Len(t, f.events(t, a.ID), 2, "reassignment is not a transition")
		assert.NotEmpty(t, f.notifier.to(f.editor.ID, domain.NotifyUnassigned))

		_, err = f.engine.RequestAuthorChanges(f.ctx, f.editor, a.ID, "too short")
		var ae *apperr.AuthorizationError
		assert.ErrorAs(t, err, &ae, "the replaced editor lost the capability")
	})

	t.Run("editors cannot assign editors", func(t *testing.T) {
		a := f.draft(t)
		_, err := f.engine.AssignEditor(f.ctx, f.editor, a.ID, AssignInput{AssigneeID: f.secondEditor.ID})
		var ae *apperr.AuthorizationError
		assert.ErrorAs(t, err, &ae)
	})

	t.Run("reviewer role is not an editor", func(t *testing.T) {
		a := f.draft(t)
		_, err := f.engine.AssignEditor(f.ctx, f.manager, a.ID, AssignInput{AssigneeID: f.reviewer.ID})
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestReviewerAssignment(t *testing.T) {
	f := newFixture(t)
	a := f.underReview(t)

	_, err := f.engine.AssignReviewer(f.ctx, f.editor, a.ID, AssignInput{AssigneeID: f.reviewer.ID})
	require.NoError(t, err)

	_, err = f.engine.StartAssignment(f.ctx, f.otherAuthor, a.ID, domain.AssignmentReviewer)
	var ae *apperr.AuthorizationError
	require.ErrorAs(t, err, &ae)

	started, err := f.engine.StartAssignment(f.ctx, f.reviewer, a.ID, domain.AssignmentReviewer)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentInProgress, started.Status)

	done, err := f.engine.CompleteReview(f.ctx, f.reviewer, a.ID, "looks fine")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentCompleted, done.Status)
	assert.NotEmpty(t, f.notifier.to(f.editor.ID, domain.NotifyApproved))

	_, err = f.engine.Unassign(f.ctx, f.manager, a.ID, domain.AssignmentReviewer)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRequestAuthorChanges(t *testing.T) {
	f := newFixture(t)
	a := f.underReview(t)

	_, err := f.engine.RequestAuthorChanges(f.ctx, f.editor, a.ID, "")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, domain.StatusUnderReview, f.status(t, a.ID))

	res, err := f.engine.RequestAuthorChanges(f.ctx, f.editor, a.ID, "cite sources")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusChangesRequested, res.Article.Status)

	sent := f.notifier.to(f.author.ID, domain.NotifyChangesRequested)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "cite sources")

	_, err = f.engine.SaveDraft(f.ctx, f.author, a.ID, DraftInput{Title: "On tides, revised"})
	require.NoError(t, err)

	res, err = f.engine.Resubmit(f.ctx, f.author, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, res.Article.Status)
	assert.Len(t, f.notifier.to(f.editor.ID, domain.NotifyResubmitted), 1)

	res, err = f.engine.StartReview(f.ctx, f.manager, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, res.Article.Status)
}

func TestPublishContent(t *testing.T) {
	f := newFixture(t)

	t.Run("free publish sets pricing and notifies the author", func(t *testing.T) {
		a := f.approved(t)

		res, err := f.engine.PublishContent(f.ctx, f.manager, a.ID, domain.Pricing{Price: 500, IsFree: true})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPublished, res.Article.Status)
		require.NotNil(t, res.Article.Pricing)
		assert.True(t, res.Article.Pricing.IsFree)
		assert.Zero(t, res.Article.Pricing.Price)
		assert.NotNil(t, res.Article.PublishedAt)

		assert.Len(t, f.notifier.to(f.author.ID, domain.NotifyPublished), 1)
		evs := f.events(t, a.ID)
		assert.Equal(t, domain.StatusPublished, evs[len(evs)-1].To)
	})

	t.Run("paid publish needs a positive price", func(t *testing.T) {
		a := f.approved(t)
		_, err := f.engine.PublishContent(f.ctx, f.manager, a.ID, domain.Pricing{})
		var ve *apperr.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, domain.StatusApproved, f.status(t, a.ID))
	})

	t.Run("editors cannot publish", func(t *testing.T) {
		a := f.approved(t)
		_, err := f.engine.PublishContent(f.ctx, f.editor, a.ID, domain.Pricing{Price: 100})
		var ae *apperr.AuthorizationError
		assert.ErrorAs(t, err, &ae)
	})

	t.Run("approval completes assignments", func(t *testing.T) {
		a := f.approved(t)
		current, err := f.store.ActiveAssignment(f.ctx, a.ID, domain.AssignmentEditor)
		require.NoError(t, err)
		assert.Nil(t, current)
	})
}

func TestFinalizeEditing(t *testing.T) {
	f := newFixture(t)

	t.Run("review mode approves", func(t *testing.T) {
		a := f.underReview(t)
		res, err := f.engine.FinalizeEditing(f.ctx, f.editor, a.ID, FinalizeForReview, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, res.Article.Status)
	})

	t.Run("publish mode by a content manager approves then publishes", func(t *testing.T) {
		a := f.underReview(t)
		res, err := f.engine.FinalizeEditing(f.ctx, f.manager, a.ID, FinalizeForPublish, &domain.Pricing{Price: 299})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPublished, res.Article.Status)
		assert.Len(t, res.Events, 2)
	})

	t.Run("publish mode by the editor stops at approved", func(t *testing.T) {
		a := f.underReview(t)
		res, err := f.engine.FinalizeEditing(f.ctx, f.editor, a.ID, FinalizeForPublish, &domain.Pricing{IsFree: true})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, res.Article.Status)
	})
}

func TestReject(t *testing.T) {
	f := newFixture(t)

	a := f.underReview(t)
	_, err := f.engine.Reject(f.ctx, f.editor, a.ID, "")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	res, err := f.engine.Reject(f.ctx, f.editor, a.ID, "off topic")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.Article.Status)
	assert.Len(t, f.notifier.to(f.author.ID, domain.NotifyRejected), 1)

	_, err = f.engine.Resubmit(f.ctx, f.author, a.ID, "")
	var ce *apperr.ConflictError
	assert.ErrorAs(t, err, &ce, "rejected is terminal")
}

func TestDeleteArticle(t *testing.T) {
	f := newFixture(t)

	a := f.draft(t)
	require.NoError(t, f.engine.DeleteArticle(f.ctx, f.author, a.ID))
	_, err := f.store.GetArticle(f.ctx, a.ID)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)

	submitted := f.draft(t)
	_, err = f.engine.SubmitArticle(f.ctx, f.author, submitted.ID, "")
	require.NoError(t, err)

	err = f.engine.DeleteArticle(f.ctx, f.author, submitted.ID)
	var ce *apperr.ConflictError
	assert.ErrorAs(t, err, &ce)

	err = f.engine.DeleteArticle(f.ctx, f.otherAuthor, submitted.ID)
	var ae *apperr.AuthorizationError
	assert.ErrorAs(t, err, &ae)

	assert.NoError(t, f.engine.DeleteArticle(f.ctx, f.admin, submitted.ID))
}

func TestReadAccess(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t)

	_, err := f.engine.History(f.ctx, f.otherAuthor, a.ID)
	var ae *apperr.AuthorizationError
	assert.ErrorAs(t, err, &ae)

	_, err = f.engine.History(f.ctx, f.author, a.ID)
	assert.NoError(t, err)

	list, total, err := f.engine.ListArticles(f.ctx, f.otherAuthor, domain.ArticleFilter{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestConcurrentApprovalOneWins(t *testing.T) {
	f := newFixture(t)
	a := f.underReview(t)

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ApproveForPublishing(f.ctx, f.manager, a.ID, "")
			mu.Lock()
			defer mu.Unlock()
			var ce *apperr.ConflictError
			switch {
			case err == nil:
				successes++
			case assert.ErrorAs(t, err, &ce):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, conflicts)

	approvals := 0
	for _, ev := range f.events(t, a.ID) {
		if ev.To == domain.StatusApproved {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)
}

func TestRejectedCommandsAppendNoEvents(t *testing.T) {
	type command func(f *fixture, actor domain.Actor, id uuid.UUID) error
	commands := map[string]command{
		"submit": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.SubmitArticle(f.ctx, actor, id, "")
			return err
		},
		"resubmit": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.Resubmit(f.ctx, actor, id, "")
			return err
		},
		"return to draft": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.ReturnToDraft(f.ctx, actor, id, "")
			return err
		},
		"start review": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.StartReview(f.ctx, actor, id)
			return err
		},
		"request changes": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.RequestAuthorChanges(f.ctx, actor, id, "tighten the lede")
			return err
		},
		"request changes without note": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.RequestAuthorChanges(f.ctx, actor, id, "")
			return err
		},
		"approve": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.ApproveForPublishing(f.ctx, actor, id, "")
			return err
		},
		"publish": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.PublishContent(f.ctx, actor, id, domain.Pricing{Price: 100})
			return err
		},
		"publish without price": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.PublishContent(f.ctx, actor, id, domain.Pricing{})
			return err
		},
		"reject": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.Reject(f.ctx, actor, id, "off topic")
			return err
		},
		"reject without note": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.Reject(f.ctx, actor, id, "")
			return err
		},
		"assign editor": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.AssignEditor(f.ctx, actor, id, AssignInput{AssigneeID: f.secondEditor.ID})
			return err
		},
		"assign reviewer": func(f *fixture, actor domain.Actor, id uuid.UUID) error {
			_, err := f.engine.AssignReviewer(f.ctx, actor, id, AssignInput{AssigneeID: f.reviewer.ID})
			return err
		},
	}

	setups := []struct {
		status domain.Status
		reach  func(t *testing.T, f *fixture) *domain.Article
	}{
		{domain.StatusDraft, func(t *testing.T, f *fixture) *domain.Article {
			return f.draft(t)
		}},
		{domain.StatusSubmitted, func(t *testing.T, f *fixture) *domain.Article {
			a := f.draft(t)
			_, err := f.engine.SubmitArticle(f.ctx, f.author, a.ID, "")
			require.NoError(t, err)
			return a
		}},
		{domain.StatusUnderReview, func(t *testing.T, f *fixture) *domain.Article {
			return f.underReview(t)
		}},
		{domain.StatusChangesRequested, func(t *testing.T, f *fixture) *domain.Article {
			a := f.underReview(t)
			_, err := f.engine.RequestAuthorChanges(f.ctx, f.editor, a.ID, "cite sources")
			require.NoError(t, err)
			return a
		}},
		{domain.StatusApproved, func(t *testing.T, f *fixture) *domain.Article {
			return f.approved(t)
		}},
		{domain.StatusPublished, func(t *testing.T, f *fixture) *domain.Article {
			a := f.approved(t)
			_, err := f.engine.PublishContent(f.ctx, f.manager, a.ID, domain.Pricing{IsFree: true})
			require.NoError(t, err)
			return a
		}},
		{domain.StatusRejected, func(t *testing.T, f *fixture) *domain.Article {
			a := f.draft(t)
			_, err := f.engine.Reject(f.ctx, f.editor, a.ID, "duplicate")
			require.NoError(t, err)
			return a
		}},
	}
	require.Len(t, setups, len(domain.Statuses))

	rejected := 0
	for _, setup := range setups {
		status := setup.status
		for name, run := range commands {
			f := newFixture(t)
			actors := map[string]domain.Actor{
				"author":          f.author,
				"other author":    f.otherAuthor,
				"assigned editor": f.editor,
				"second editor":   f.secondEditor,
				"reviewer":        f.reviewer,
				"manager":         f.manager,
				"admin":           f.admin,
			}
			for who, actor := range actors {
				a := setup.reach(t, f)
				require.Equal(t, status, f.status(t, a.ID))
				before := f.events(t, a.ID)

				if err := run(f, actor, a.ID); err == nil {
					continue
				}
				rejected++
				assert.Len(t, f.events(t, a.ID), len(before), "%s by %s on %s", name, who, status)
				assert.Equal(t, status, f.status(t, a.ID), "%s by %s on %s", name, who, status)
			}
		}
	}
	assert.Positive(t, rejected)
}
