package models

import (
	"strings"
	"time"
)

type Principal struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role is ordered by privilege: viewer < admin < superadmin.
type Role string

const (
	RoleNone       Role = ""
	RoleViewer     Role = "viewer"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) Level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperadmin:
		return 3
	}
	return 0
}

func (r Role) Valid() bool {
	return r.Level() > 0
}

// Satisfies reports whether r meets the required privilege. RoleNone as a
// requirement admits any valid role.
func (r Role) Satisfies(required Role) bool {
	if !r.Valid() {
		return false
	}
	if required == RoleNone {
		return true
	}
	return required.Valid() && r.Level() >= required.Level()
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// NormalizeEmail is applied before every principal store access.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
