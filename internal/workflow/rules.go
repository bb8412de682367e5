package workflow

import (
	"errors"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
)

// Capability is something an actor holds with respect to one article.
type Capability string

const (
	CapOwner            Capability = "owner"
	CapAssignedEditor   Capability = "assigned_editor"
	CapAssignedReviewer Capability = "assigned_reviewer"
)

func RoleCap(r domain.Role) Capability {
	return Capability("role:" + string(r))
}

var (
	capAdmin          = RoleCap(domain.RoleAdmin)
	capContentManager = RoleCap(domain.RoleContentManager)
	capEditor         = RoleCap(domain.RoleEditor)
)

var (
	ErrNoSuchTransition = errors.New("transition is not part of the workflow")
	ErrNotPermitted     = errors.New("actor lacks the capability for this transition")
)

type Rule struct {
	From            domain.Status
	To              domain.Status
	Allowed         []Capability
	RequiresNote    bool
	RequiresPricing bool
}

type edge struct {
	from, to domain.Status
}

var rules = buildRules()

func buildRules() map[edge]Rule {
	table := []Rule{
		{From: domain.StatusDraft, To: domain.StatusSubmitted,
			Allowed: []Capability{CapOwner, capAdmin, capContentManager, capEditor}},
		{From: domain.StatusSubmitted, To: domain.StatusUnderReview,
			Allowed: []Capability{capAdmin, capContentManager, capEditor}},
		{From: domain.StatusUnderReview, To: domain.StatusChangesRequested,
			Allowed: []Capability{CapAssignedEditor, capAdmin}, RequiresNote: true},
		{From: domain.StatusUnderReview, To: domain.StatusApproved,
			Allowed: []Capability{CapAssignedEditor, capContentManager, capAdmin}},
		{From: domain.StatusChangesRequested, To: domain.StatusDraft,
			Allowed: []Capability{CapOwner}},
		{From: domain.StatusChangesRequested, To: domain.StatusSubmitted,
			Allowed: []Capability{CapOwner}},
		{From: domain.StatusApproved, To: domain.StatusPublished,
			Allowed: []Capability{capContentManager, capAdmin}, RequiresPricing: true},
	}

	m := make(map[edge]Rule, len(table)+len(domain.Statuses))
	for _, r := range table {
		m[edge{r.From, r.To}] = r
	}
	for _, s := range domain.Statuses {
		if !s.Active() {
			continue
		}
		m[edge{s, domain.StatusRejected}] = Rule{
			From:         s,
			To:           domain.StatusRejected,
			Allowed:      []Capability{capAdmin, capContentManager, capEditor},
			RequiresNote: true,
		}
	}
	return m
}

// Lookup returns the rule for from -> to, if the workflow has one.
func Lookup(from, to domain.Status) (Rule, bool) {
	r, ok := rules[edge{from, to}]
	return r, ok
}

// Targets lists the statuses reachable from s regardless of actor.
func Targets(from domain.Status) []domain.Status {
	var out []domain.Status
	for _, to := range domain.Statuses {
		if _, ok := rules[edge{from, to}]; ok {
			out = append(out, to)
		}
	}
	return out
}

// Grants is the set of capabilities one actor holds for one article.
type Grants map[Capability]bool

func NewGrants(actor domain.Actor, article *domain.Article, active []domain.Assignment) Grants {
	g := Grants{RoleCap(actor.Role): true}
	if article != nil && article.OwnedBy(actor.ID) {
		g[CapOwner] = true
	}
	for _, a := range active {
		if !a.Active() || a.AssigneeID != actor.ID {
			continue
		}
		switch a.Kind {
		case domain.AssignmentEditor:
			g[CapAssignedEditor] = true
		case domain.AssignmentReviewer:
			g[CapAssignedReviewer] = true
		}
	}
	return g
}

func (g Grants) Has(c Capability) bool {
	return g[c]
}

// Check is the pure legality function: it reports ErrNoSuchTransition when the
// workflow has no such edge and ErrNotPermitted when the grants do not cover it.
func Check(from, to domain.Status, grants Grants) (Rule, error) {
	r, ok := Lookup(from, to)
	if !ok {
		return Rule{}, ErrNoSuchTransition
	}
	for _, c := range r.Allowed {
		if grants.Has(c) {
			return r, nil
		}
	}
	return r, ErrNotPermitted
}

func Allowed(from, to domain.Status, grants Grants) bool {
	_, err := Check(from, to, grants)
	return err == nil
}

// CanRead reports whether the actor may read an article's attachments and reports.
func CanRead(actor domain.Actor, article *domain.Article, active []domain.Assignment) bool {
	if actor.Role.Privileged() || article.OwnedBy(actor.ID) {
		return true
	}
	return assignedTo(actor.ID, active)
}

func assignedTo(id uuid.UUID, active []domain.Assignment) bool {
	for _, a := range active {
		if a.Active() && a.AssigneeID == id {
			return true
		}
	}
	return false
}
