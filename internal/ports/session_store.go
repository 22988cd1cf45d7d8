package ports

import (
	"context"

	"github.com/karlmjogila/swarmops/internal/domain"
)

// SessionFilter narrows session listings. Zero-value fields are ignored.
// LabelContains is a substring match; the rest are exact.
type SessionFilter struct {
	Status        domain.SessionStatus
	RoleID        domain.RoleID
	WorkItemID    domain.WorkID
	LabelContains string
}

// SessionPage is one page of a filtered listing.
type SessionPage struct {
	Sessions []domain.Session
	HasMore  bool
}

// SessionStore tracks ephemeral execution sessions keyed by their externally
// visible session key.
type SessionStore interface {
	// Track registers a new session in state starting. The input key is used
	// verbatim when present and must be unused; otherwise a key is generated.
	Track(ctx context.Context, input domain.SessionInput) (domain.Session, error)
	Get(ctx context.Context, key string) (domain.Session, error)
	List(ctx context.Context, filter SessionFilter, page Page) (SessionPage, error)
	Update(ctx context.Context, key string, patch domain.SessionPatch) (domain.Session, error)
	// AddTokenUsage adds the per-field deltas to the running totals and
	// refreshes LastActivityAt.
	AddTokenUsage(ctx context.Context, key string, delta domain.TokenUsage) (domain.Session, error)
	MarkActive(ctx context.Context, key string) (domain.Session, error)
	MarkIdle(ctx context.Context, key string) (domain.Session, error)
	MarkStopping(ctx context.Context, key string) (domain.Session, error)
	// MarkStopped is reachable from any state and idempotent in effect.
	// exitCode and errMsg are recorded when given.
	MarkStopped(ctx context.Context, key string, exitCode *int, errMsg string) (domain.Session, error)
	Remove(ctx context.Context, key string) error
	// PruneStopped removes every stopped session and returns the count.
	PruneStopped(ctx context.Context) (int, error)
	GetActiveSessions(ctx context.Context) ([]domain.Session, error)
	IsActive(ctx context.Context, key string) (bool, error)
	InvalidateCache()
}
