package jsonfile

import (
	"fmt"
	"time"

	"github.com/karlmjogila/swarmops/internal/domain"
)

const rolesSchemaVersion = 1

type rolesFileSchema struct {
	Version int          `json:"version"`
	Roles   []roleSchema `json:"roles"`
}

type roleSchema struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Model        string    `json:"model"`
	Thinking     string    `json:"thinking"`
	Instructions string    `json:"instructions"`
	Builtin      bool      `json:"builtin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (f *rolesFileSchema) applyDefaults() {
	if f.Version == 0 {
		f.Version = rolesSchemaVersion
	}
	if f.Roles == nil {
		f.Roles = []roleSchema{}
	}
}

func (f rolesFileSchema) validateVersion() error {
	if f.Version > rolesSchemaVersion {
		return fmt.Errorf("unsupported roles schema version %d", f.Version)
	}
	return nil
}

func roleToSchema(role domain.Role) roleSchema {
	return roleSchema{
		ID:           string(role.ID),
		Name:         role.Name,
		Description:  role.Description,
		Model:        role.Model,
		Thinking:     string(role.Thinking),
		Instructions: role.Instructions,
		Builtin:      role.Builtin,
		CreatedAt:    role.CreatedAt,
		UpdatedAt:    role.UpdatedAt,
	}
}

func roleFromSchema(entry roleSchema) domain.Role {
	return domain.Role{
		ID:           domain.RoleID(entry.ID),
		Name:         entry.Name,
		Description:  entry.Description,
		Model:        entry.Model,
		Thinking:     domain.ThinkingLevel(entry.Thinking),
		Instructions: entry.Instructions,
		Builtin:      entry.Builtin,
		CreatedAt:    entry.CreatedAt,
		UpdatedAt:    entry.UpdatedAt,
	}
}
