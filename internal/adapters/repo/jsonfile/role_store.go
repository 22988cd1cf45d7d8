package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/karlmjogila/swarmops/internal/domain"
	"github.com/karlmjogila/swarmops/internal/ports"
)

// RoleStore keeps the full role collection in a single roles.json file.
type RoleStore struct {
	path  string
	mu    *sync.RWMutex
	clock ports.Clock
}

var _ ports.RoleStore = (*RoleStore)(nil)

// NewRoleStore opens the role collection at path and seeds the built-in roles
// when they are absent.
func NewRoleStore(path string, clock ports.Clock) (*RoleStore, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	store := &RoleStore{path: path, mu: lockForPath(path), clock: clock}
	if err := store.seedBuiltins(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *RoleStore) seedBuiltins() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	present := make(map[string]struct{}, len(file.Roles))
	for _, entry := range file.Roles {
		present[domain.NormalizeRoleName(entry.Name)] = struct{}{}
	}

	seeded := false
	now := s.clock.Now()
	for _, name := range domain.BuiltinRoleNames {
		if _, ok := present[name]; ok {
			continue
		}
		file.Roles = append(file.Roles, roleToSchema(domain.Role{
			ID:        domain.RoleID(uuid.NewString()),
			Name:      name,
			Model:     domain.DefaultModel,
			Thinking:  domain.ThinkingLow,
			Builtin:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}))
		seeded = true
	}

	if !seeded {
		return nil
	}
	return s.writeSchema(file)
}

func (s *RoleStore) Create(ctx context.Context, input domain.RoleInput) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return domain.Role{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Role{}, err
	}

	normalized := domain.NormalizeRoleName(input.Name)
	if normalized == "" {
		return domain.Role{}, errors.New("role name is empty")
	}
	for _, entry := range file.Roles {
		if domain.NormalizeRoleName(entry.Name) == normalized {
			return domain.Role{}, &domain.ConflictError{Reason: fmt.Sprintf("role %q already exists", input.Name)}
		}
	}

	now := s.clock.Now()
	role := domain.Role{
		ID:           domain.RoleID(uuid.NewString()),
		Name:         input.Name,
		Description:  input.Description,
		Model:        input.Model,
		Thinking:     input.Thinking,
		Instructions: input.Instructions,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if role.Model == "" {
		role.Model = domain.DefaultModel
	}
	if role.Thinking == "" {
		role.Thinking = domain.ThinkingLow
	}

	file.Roles = append(file.Roles, roleToSchema(role))
	if err := s.writeSchema(file); err != nil {
		return domain.Role{}, err
	}

	return role, nil
}

func (s *RoleStore) Get(ctx context.Context, id domain.RoleID) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return domain.Role{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Role{}, err
	}

	for _, entry := range file.Roles {
		if entry.ID == string(id) {
			return roleFromSchema(entry), nil
		}
	}

	return domain.Role{}, &domain.NotFoundError{Entity: "role", Key: string(id)}
}

func (s *RoleStore) GetByName(ctx context.Context, name string) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return domain.Role{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Role{}, err
	}

	normalized := domain.NormalizeRoleName(name)
	for _, entry := range file.Roles {
		if domain.NormalizeRoleName(entry.Name) == normalized {
			return roleFromSchema(entry), nil
		}
	}

	return domain.Role{}, &domain.NotFoundError{Entity: "role", Key: name}
}

func (s *RoleStore) List(ctx context.Context) ([]domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	roles := make([]domain.Role, 0, len(file.Roles))
	for _, entry := range file.Roles {
		roles = append(roles, roleFromSchema(entry))
	}

	return roles, nil
}

func (s *RoleStore) Update(ctx context.Context, id domain.RoleID, patch domain.RolePatch) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return domain.Role{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Role{}, err
	}

	index := -1
	for i, entry := range file.Roles {
		if entry.ID == string(id) {
			index = i
			break
		}
	}
	if index == -1 {
		return domain.Role{}, &domain.NotFoundError{Entity: "role", Key: string(id)}
	}

	role := roleFromSchema(file.Roles[index])

	if patch.Name != nil && domain.NormalizeRoleName(*patch.Name) != domain.NormalizeRoleName(role.Name) {
		if role.Builtin {
			return domain.Role{}, &domain.ConflictError{Reason: fmt.Sprintf("role %q is built-in and cannot be renamed", role.Name)}
		}
		normalized := domain.NormalizeRoleName(*patch.Name)
		for i, entry := range file.Roles {
			if i != index && domain.NormalizeRoleName(entry.Name) == normalized {
				return domain.Role{}, &domain.ConflictError{Reason: fmt.Sprintf("role %q already exists", *patch.Name)}
			}
		}
		role.Name = *patch.Name
	}
	if patch.Description != nil {
		role.Description = *patch.Description
	}
	if patch.Model != nil {
		role.Model = *patch.Model
	}
	if patch.Thinking != nil {
		role.Thinking = *patch.Thinking
	}
	if patch.Instructions != nil {
		role.Instructions = *patch.Instructions
	}

	// UpdatedAt must be strictly greater than the previous value, even for
	// back-to-back updates within clock resolution.
	now := s.clock.Now()
	if !now.After(role.UpdatedAt) {
		now = role.UpdatedAt.Add(time.Nanosecond)
	}
	role.UpdatedAt = now

	file.Roles[index] = roleToSchema(role)
	if err := s.writeSchema(file); err != nil {
		return domain.Role{}, err
	}

	return role, nil
}

func (s *RoleStore) Delete(ctx context.Context, id domain.RoleID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	for i, entry := range file.Roles {
		if entry.ID != string(id) {
			continue
		}
		if entry.Builtin {
			return &domain.ConflictError{Reason: fmt.Sprintf("role %q is built-in and cannot be deleted", entry.Name)}
		}
		file.Roles = append(file.Roles[:i], file.Roles[i+1:]...)
		return s.writeSchema(file)
	}

	return &domain.NotFoundError{Entity: "role", Key: string(id)}
}

func (s *RoleStore) IsNameAvailable(ctx context.Context, name string) (bool, error) {
	_, err := s.GetByName(ctx, name)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	return false, err
}

func (s *RoleStore) readSchema() (rolesFileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := rolesFileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return rolesFileSchema{}, fmt.Errorf("read roles file: %w", err)
	}

	var file rolesFileSchema
	if err := json.Unmarshal(data, &file); err != nil {
		return rolesFileSchema{}, fmt.Errorf("decode roles file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return rolesFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *RoleStore) writeSchema(file rolesFileSchema) error {
	file.applyDefaults()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode roles file: %w", err)
	}

	return writeFileAtomic(s.path, append(data, '\n'))
}
