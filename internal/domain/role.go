package domain

import (
	"strings"
	"time"
)

type RoleID string

// ThinkingLevel is the reasoning-effort setting passed to the model when a
// session runs under the role.
type ThinkingLevel string

const (
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

func (l ThinkingLevel) Valid() bool {
	switch l {
	case ThinkingLow, ThinkingMedium, ThinkingHigh:
		return true
	default:
		return false
	}
}

// DefaultModel is applied when a role is created without an explicit model.
const DefaultModel = "anthropic/claude-sonnet-4"

// Role is a named execution profile selectable when assigning work. Names are
// unique case-insensitively. Built-in roles keep their name and builtin flag
// for the lifetime of the store; every other field stays editable.
type Role struct {
	ID           RoleID
	Name         string
	Description  string
	Model        string
	Thinking     ThinkingLevel
	Instructions string
	Builtin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeRoleName is the canonical form used for uniqueness checks.
func NormalizeRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BuiltinRoleNames are seeded at store construction and can never be renamed
// or deleted.
var BuiltinRoleNames = []string{"architect", "builder", "reviewer"}

// RoleInput carries the caller-supplied fields for Create. Zero values fall
// back to defaults (DefaultModel, ThinkingLow, empty description and
// instructions).
type RoleInput struct {
	Name         string
	Description  string
	Model        string
	Thinking     ThinkingLevel
	Instructions string
}

// RolePatch carries a partial update; nil fields are left untouched.
type RolePatch struct {
	Name         *string
	Description  *string
	Model        *string
	Thinking     *ThinkingLevel
	Instructions *string
}
