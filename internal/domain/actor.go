package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAuthor         Role = "author"
	RoleReviewer       Role = "reviewer"
	RoleEditor         Role = "editor"
	RoleContentManager Role = "content_manager"
	RoleAdmin          Role = "admin"
)

var Roles = []Role{RoleAuthor, RoleReviewer, RoleEditor, RoleContentManager, RoleAdmin}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Privileged roles may drive workflow transitions on articles they do not own.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleContentManager || r == RoleEditor
}

func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

// Actor is the authenticated identity issuing a command.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

type User struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
	Active bool      `json:"active"`
}

func (u User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
