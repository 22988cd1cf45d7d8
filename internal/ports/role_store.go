package ports

import (
	"context"

	"github.com/karlmjogila/swarmops/internal/domain"
)

// RoleStore persists execution profiles. Constructors seed the built-in roles
// (architect, builder, reviewer) when absent.
type RoleStore interface {
	Create(ctx context.Context, input domain.RoleInput) (domain.Role, error)
	Get(ctx context.Context, id domain.RoleID) (domain.Role, error)
	// GetByName matches case-insensitively.
	GetByName(ctx context.Context, name string) (domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
	Update(ctx context.Context, id domain.RoleID, patch domain.RolePatch) (domain.Role, error)
	Delete(ctx context.Context, id domain.RoleID) error
	IsNameAvailable(ctx context.Context, name string) (bool, error)
}
