package workflow

import (
	"testing"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantsOf(caps ...Capability) Grants {
	g := Grants{}
	for _, c := range caps {
		g[c] = true
	}
	return g
}

func TestCheck_LegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		from  domain.Status
		to    domain.Status
		grant Capability
	}{
		{"owner submits", domain.StatusDraft, domain.StatusSubmitted, CapOwner},
		{"editor submits on behalf", domain.StatusDraft, domain.StatusSubmitted, capEditor},
		{"content manager starts review", domain.StatusSubmitted, domain.StatusUnderReview, capContentManager},
		{"assigned editor requests changes", domain.StatusUnderReview, domain.StatusChangesRequested, CapAssignedEditor},
		{"admin requests changes", domain.StatusUnderReview, domain.StatusChangesRequested, capAdmin},
		{"assigned editor approves", domain.StatusUnderReview, domain.StatusApproved, CapAssignedEditor},
		{"content manager approves", domain.StatusUnderReview, domain.StatusApproved, capContentManager},
		{"owner returns to draft", domain.StatusChangesRequested, domain.StatusDraft, CapOwner},
		{"owner resubmits", domain.StatusChangesRequested, domain.StatusSubmitted, CapOwner},
		{"content manager publishes", domain.StatusApproved, domain.StatusPublished, capContentManager},
		{"admin publishes", domain.StatusApproved, domain.StatusPublished, capAdmin},
		{"editor rejects draft", domain.StatusDraft, domain.StatusRejected, capEditor},
		{"admin rejects approved", domain.StatusApproved, domain.StatusRejected, capAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Check(tt.from, tt.to, grantsOf(tt.grant))
			assert.NoError(t, err)
			assert.True(t, Allowed(tt.from, tt.to, grantsOf(tt.grant)))
		})
	}
}

func TestCheck_Denied(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.Status
		to      domain.Status
		grants  Grants
		wantErr error
	}{
		{"author cannot start review", domain.StatusSubmitted, domain.StatusUnderReview, grantsOf(CapOwner, RoleCap(domain.RoleAuthor)), ErrNotPermitted},
		{"unassigned editor cannot request changes", domain.StatusUnderReview, domain.StatusChangesRequested, grantsOf(capEditor), ErrNotPermitted},
		{"reviewer cannot approve", domain.StatusUnderReview, domain.StatusApproved, grantsOf(CapAssignedReviewer), ErrNotPermitted},
		{"editor cannot publish", domain.StatusApproved, domain.StatusPublished, grantsOf(capEditor, CapAssignedEditor), ErrNotPermitted},
		{"owner cannot reject", domain.StatusDraft, domain.StatusRejected, grantsOf(CapOwner), ErrNotPermitted},
		{"draft cannot skip to approved", domain.StatusDraft, domain.StatusApproved, grantsOf(capAdmin), ErrNoSuchTransition},
		{"published is terminal", domain.StatusPublished, domain.StatusRejected, grantsOf(capAdmin), ErrNoSuchTransition},
		{"rejected is terminal", domain.StatusRejected, domain.StatusDraft, grantsOf(CapOwner, capAdmin), ErrNoSuchTransition},
		{"no self loop", domain.StatusSubmitted, domain.StatusSubmitted, grantsOf(capAdmin), ErrNoSuchTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Check(tt.from, tt.to, tt.grants)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, Allowed(tt.from, tt.to, tt.grants))
		})
	}
}

func TestCheck_FullMatrix(t *testing.T) {
	roleCaps := make([]Capability, 0, len(domain.Roles))
	for _, r := range domain.Roles {
		roleCaps = append(roleCaps, RoleCap(r))
	}
	caps := append([]Capability{CapOwner, CapAssignedEditor, CapAssignedReviewer}, roleCaps...)

	admin, manager, editor := RoleCap(domain.RoleAdmin), RoleCap(domain.RoleContentManager), RoleCap(domain.RoleEditor)
	reject := []Capability{admin, manager, editor}
	edges := []struct {
		from, to domain.Status
		allowed  []Capability
	}{
		{domain.StatusDraft, domain.StatusSubmitted, []Capability{CapOwner, admin, manager, editor}},
		{domain.StatusSubmitted, domain.StatusUnderReview, []Capability{admin, manager, editor}},
		{domain.StatusUnderReview, domain.StatusChangesRequested, []Capability{CapAssignedEditor, admin}},
		{domain.StatusUnderReview, domain.StatusApproved, []Capability{CapAssignedEditor, manager, admin}},
		{domain.StatusChangesRequested, domain.StatusDraft, []Capability{CapOwner}},
		{domain.StatusChangesRequested, domain.StatusSubmitted, []Capability{CapOwner}},
		{domain.StatusApproved, domain.StatusPublished, []Capability{manager, admin}},
		{domain.StatusDraft, domain.StatusRejected, reject},
		{domain.StatusSubmitted, domain.StatusRejected, reject},
		{domain.StatusUnderReview, domain.StatusRejected, reject},
		{domain.StatusChangesRequested, domain.StatusRejected, reject},
		{domain.StatusApproved, domain.StatusRejected, reject},
	}
	want := make(map[[2]domain.Status][]Capability, len(edges))
	for _, e := range edges {
		want[[2]domain.Status{e.from, e.to}] = e.allowed
	}

	for _, from := range domain.Statuses {
		for _, to := range domain.Statuses {
			allowed, exists := want[[2]domain.Status{from, to}]
			for _, c := range caps {
				_, err := Check(from, to, grantsOf(c))
				switch {
				case !exists:
					assert.ErrorIs(t, err, ErrNoSuchTransition, "%s -> %s as %s", from, to, c)
				case contains(allowed, c):
					assert.NoError(t, err, "%s -> %s as %s", from, to, c)
				default:
					assert.ErrorIs(t, err, ErrNotPermitted, "%s -> %s as %s", from, to, c)
				}
			}
			_, err := Check(from, to, Grants{})
			assert.Error(t, err, "%s -> %s with no grants", from, to)
		}
	}
}

func contains(caps []Capability, c Capability) bool {
	for _, x := range caps {
		if x == c {
			return true
		}
	}
	return false
}

func TestRules_NotesAndPricing(t *testing.T) {
	changes, ok := Lookup(domain.StatusUnderReview, domain.StatusChangesRequested)
	require.True(t, ok)
	assert.True(t, changes.RequiresNote)

	publish, ok := Lookup(domain.StatusApproved, domain.StatusPublished)
	require.True(t, ok)
	assert.True(t, publish.RequiresPricing)

	for _, s := range domain.Statuses {
		r, ok := Lookup(s, domain.StatusRejected)
		assert.Equal(t, s.Active(), ok, "reject from %s", s)
		if ok {
			assert.True(t, r.RequiresNote)
		}
	}
}

func TestTargets(t *testing.T) {
	assert.ElementsMatch(t,
		[]domain.Status{domain.StatusDraft, domain.StatusSubmitted, domain.StatusRejected},
		Targets(domain.StatusChangesRequested))
	assert.Empty(t, Targets(domain.StatusPublished))
}

func TestNewGrants(t *testing.T) {
	author := domain.Actor{ID: uuid.New(), Role: domain.RoleAuthor}
	editor := domain.Actor{ID: uuid.New(), Role: domain.RoleEditor}
	article := &domain.Article{ID: uuid.New(), AuthorID: author.ID}
	active := []domain.Assignment{
		{ID: uuid.New(), Kind: domain.AssignmentEditor, AssigneeID: editor.ID, Status: domain.AssignmentInProgress},
		{ID: uuid.New(), Kind: domain.AssignmentReviewer, AssigneeID: editor.ID, Status: domain.AssignmentCancelled},
	}

	g := NewGrants(author, article, active)
	assert.True(t, g.Has(CapOwner))
	assert.True(t, g.Has(RoleCap(domain.RoleAuthor)))
	assert.False(t, g.Has(CapAssignedEditor))

	g = NewGrants(editor, article, active)
	assert.False(t, g.Has(CapOwner))
	assert.True(t, g.Has(CapAssignedEditor))
	assert.False(t, g.Has(CapAssignedReviewer), "cancelled assignments grant nothing")
}

func TestCanRead(t *testing.T) {
	owner := domain.Actor{ID: uuid.New(), Role: domain.RoleAuthor}
	stranger := domain.Actor{ID: uuid.New(), Role: domain.RoleAuthor}
	reviewer := domain.Actor{ID: uuid.New(), Role: domain.RoleReviewer}
	article := &domain.Article{ID: uuid.New(), AuthorID: owner.ID}
	active := []domain.Assignment{{Kind: domain.AssignmentReviewer, AssigneeID: reviewer.ID, Status: domain.AssignmentAssigned}}

	assert.True(t, CanRead(owner, article, nil))
	assert.False(t, CanRead(stranger, article, active))
	assert.True(t, CanRead(reviewer, article, active))
	assert.False(t, CanRead(reviewer, article, nil))
	assert.True(t, CanRead(domain.Actor{ID: uuid.New(), Role: domain.RoleContentManager}, article, nil))
}
