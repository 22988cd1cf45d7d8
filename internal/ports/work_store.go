package ports

import (
	"context"

	"github.com/karlmjogila/swarmops/internal/domain"
)

// Page is offset/limit pagination shared by list queries. A zero Limit means
// no limit.
type Page struct {
	Offset int
	Limit  int
}

// WorkFilter narrows List results. Zero-value fields are ignored; Statuses
// matches any of the given values.
type WorkFilter struct {
	Statuses []domain.WorkStatus
	Type     domain.WorkType
	Tag      string
}

// WorkPage is one page of a filtered listing. HasMore is true when
// offset+limit < total.
type WorkPage struct {
	Items   []domain.WorkItem
	Total   int
	HasMore bool
}

// WorkStore persists work items and enforces their state machine. Every
// read-modify-write operation is atomic per item id.
type WorkStore interface {
	Create(ctx context.Context, input domain.WorkInput) (domain.WorkItem, error)
	Get(ctx context.Context, id domain.WorkID) (domain.WorkItem, error)
	List(ctx context.Context, filter WorkFilter, page Page) (WorkPage, error)
	// UpdateStatus follows only the edges of the work transition table.
	// Cancelled is unreachable here; use Cancel.
	UpdateStatus(ctx context.Context, id domain.WorkID, next domain.WorkStatus) (domain.WorkItem, error)
	AppendEvent(ctx context.Context, id domain.WorkID, event domain.WorkEvent) (domain.WorkItem, error)
	// Cancel moves any non-terminal item to cancelled, records reason as the
	// item error, and stamps CompletedAt.
	Cancel(ctx context.Context, id domain.WorkID, reason string) (domain.WorkItem, error)
	SetOutput(ctx context.Context, id domain.WorkID, output map[string]any) (domain.WorkItem, error)
	SetError(ctx context.Context, id domain.WorkID, message string) (domain.WorkItem, error)
	IncrementIterations(ctx context.Context, id domain.WorkID) (domain.WorkItem, error)
	GetChildren(ctx context.Context, parentID domain.WorkID) ([]domain.WorkItem, error)
	// InvalidateCache forces the next read to hit durable storage. Needed
	// after out-of-band edits of the ledger files.
	InvalidateCache()
}
