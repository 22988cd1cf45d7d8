package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/karlmjogila/swarmops/internal/domain"
	"github.com/karlmjogila/swarmops/internal/ports"
)

// SessionStore keeps the session collection in a single active.json file.
// Reads come from a collection snapshot cache invalidated by every write.
type SessionStore struct {
	path  string
	mu    *sync.RWMutex
	clock ports.Clock

	cacheMu    sync.Mutex
	cache      []domain.Session
	cacheValid bool
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore opens the session collection at path.
func NewSessionStore(path string, clock ports.Clock) (*SessionStore, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SessionStore{path: path, mu: lockForPath(path), clock: clock}, nil
}

func (s *SessionStore) Track(ctx context.Context, input domain.SessionInput) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if input.RoleID == "" {
		return domain.Session{}, errors.New("session role id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Session{}, err
	}

	key := input.Key
	if key == "" {
		key = uuid.NewString()
	}
	for _, entry := range file.Sessions {
		if entry.Key == key {
			return domain.Session{}, &domain.ConflictError{Reason: fmt.Sprintf("session key %q is already tracked", key)}
		}
	}

	now := s.clock.Now()
	session := domain.Session{
		Key:            key,
		ID:             uuid.NewString(),
		RoleID:         input.RoleID,
		WorkItemID:     input.WorkItemID,
		Label:          input.Label,
		Task:           input.Task,
		Status:         domain.SessionStarting,
		SpawnedAt:      now,
		LastActivityAt: now,
	}

	file.Sessions = append(file.Sessions, sessionToSchema(session))
	if err := s.writeSchema(file); err != nil {
		return domain.Session{}, err
	}

	return session, nil
}

func (s *SessionStore) Get(ctx context.Context, key string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions, err := s.loadAll()
	if err != nil {
		return domain.Session{}, err
	}

	for _, session := range sessions {
		if session.Key == key {
			return cloneSession(session), nil
		}
	}

	return domain.Session{}, &domain.NotFoundError{Entity: "session", Key: key}
}

func (s *SessionStore) List(ctx context.Context, filter ports.SessionFilter, page ports.Page) (ports.SessionPage, error) {
	if err := ctx.Err(); err != nil {
		return ports.SessionPage{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions, err := s.loadAll()
	if err != nil {
		return ports.SessionPage{}, err
	}

	matched := make([]domain.Session, 0, len(sessions))
	for _, session := range sessions {
		if !matchesSessionFilter(session, filter) {
			continue
		}
		matched = append(matched, cloneSession(session))
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SpawnedAt.Equal(matched[j].SpawnedAt) {
			return matched[i].Key < matched[j].Key
		}
		return matched[i].SpawnedAt.Before(matched[j].SpawnedAt)
	})

	total := len(matched)
	offset := page.Offset
	if offset > total {
		offset = total
	}
	end := total
	if page.Limit > 0 && offset+page.Limit < end {
		end = offset + page.Limit
	}

	return ports.SessionPage{
		Sessions: matched[offset:end],
		HasMore:  page.Limit > 0 && page.Offset+page.Limit < total,
	}, nil
}

func matchesSessionFilter(session domain.Session, filter ports.SessionFilter) bool {
	if filter.Status != "" && session.Status != filter.Status {
		return false
	}
	if filter.RoleID != "" && session.RoleID != filter.RoleID {
		return false
	}
	if filter.WorkItemID != "" && session.WorkItemID != filter.WorkItemID {
		return false
	}
	if filter.LabelContains != "" && !strings.Contains(session.Label, filter.LabelContains) {
		return false
	}
	return true
}

func (s *SessionStore) Update(ctx context.Context, key string, patch domain.SessionPatch) (domain.Session, error) {
	return s.mutate(ctx, key, func(session *domain.Session) error {
		if patch.Label != nil {
			session.Label = *patch.Label
		}
		if patch.Task != nil {
			session.Task = *patch.Task
		}
		if patch.Error != nil {
			session.Error = *patch.Error
		}
		return nil
	})
}

func (s *SessionStore) AddTokenUsage(ctx context.Context, key string, delta domain.TokenUsage) (domain.Session, error) {
	if delta.Input < 0 || delta.Output < 0 || delta.Thinking < 0 {
		return domain.Session{}, errors.New("token usage deltas must be non-negative")
	}

	return s.mutate(ctx, key, func(session *domain.Session) error {
		session.TokenUsage = session.TokenUsage.Add(delta)
		return nil
	})
}

func (s *SessionStore) MarkActive(ctx context.Context, key string) (domain.Session, error) {
	return s.transition(ctx, key, domain.SessionActive)
}

func (s *SessionStore) MarkIdle(ctx context.Context, key string) (domain.Session, error) {
	return s.transition(ctx, key, domain.SessionIdle)
}

func (s *SessionStore) MarkStopping(ctx context.Context, key string) (domain.Session, error) {
	return s.transition(ctx, key, domain.SessionStopping)
}

// MarkStopped is reachable from any state and safe to repeat: a session that
// is already stopped only has its exit code and error refreshed.
func (s *SessionStore) MarkStopped(ctx context.Context, key string, exitCode *int, errMsg string) (domain.Session, error) {
	return s.mutate(ctx, key, func(session *domain.Session) error {
		session.Status = domain.SessionStopped
		if exitCode != nil {
			code := *exitCode
			session.ExitCode = &code
		}
		if errMsg != "" {
			session.Error = errMsg
		}
		return nil
	})
}

func (s *SessionStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	for i, entry := range file.Sessions {
		if entry.Key == key {
			file.Sessions = append(file.Sessions[:i], file.Sessions[i+1:]...)
			return s.writeSchema(file)
		}
	}

	return &domain.NotFoundError{Entity: "session", Key: key}
}

func (s *SessionStore) PruneStopped(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return 0, err
	}

	kept := file.Sessions[:0]
	pruned := 0
	for _, entry := range file.Sessions {
		if domain.SessionStatus(entry.Status) == domain.SessionStopped {
			pruned++
			continue
		}
		kept = append(kept, entry)
	}

	if pruned == 0 {
		return 0, nil
	}

	file.Sessions = kept
	if err := s.writeSchema(file); err != nil {
		return 0, err
	}

	return pruned, nil
}

func (s *SessionStore) GetActiveSessions(ctx context.Context) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	active := make([]domain.Session, 0, len(sessions))
	for _, session := range sessions {
		if !session.Status.Terminal() {
			active = append(active, cloneSession(session))
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].SpawnedAt.Before(active[j].SpawnedAt)
	})

	return active, nil
}

func (s *SessionStore) IsActive(ctx context.Context, key string) (bool, error) {
	session, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return !session.Status.Terminal(), nil
}

// InvalidateCache drops the collection snapshot so the next read hits the
// sessions file.
func (s *SessionStore) InvalidateCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache = nil
	s.cacheValid = false
}

func (s *SessionStore) transition(ctx context.Context, key string, next domain.SessionStatus) (domain.Session, error) {
	return s.mutate(ctx, key, func(session *domain.Session) error {
		if !session.Status.CanTransitionTo(next) {
			return &domain.InvalidTransitionError{
				Entity: "session",
				From:   string(session.Status),
				To:     string(next),
			}
		}
		session.Status = next
		return nil
	})
}

// mutate applies fn to the session under the store lock, refreshes
// LastActivityAt, and persists the collection.
func (s *SessionStore) mutate(ctx context.Context, key string, fn func(*domain.Session) error) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.Session{}, err
	}

	for i, entry := range file.Sessions {
		if entry.Key != key {
			continue
		}

		session := sessionFromSchema(entry)
		if err := fn(&session); err != nil {
			return domain.Session{}, err
		}
		session.LastActivityAt = s.clock.Now()

		file.Sessions[i] = sessionToSchema(session)
		if err := s.writeSchema(file); err != nil {
			return domain.Session{}, err
		}
		return cloneSession(session), nil
	}

	return domain.Session{}, &domain.NotFoundError{Entity: "session", Key: key}
}

// cloneSession detaches the pointer fields so callers cannot reach into the
// snapshot cache through a returned session.
func cloneSession(session domain.Session) domain.Session {
	if session.ExitCode != nil {
		code := *session.ExitCode
		session.ExitCode = &code
	}
	return session
}

func (s *SessionStore) loadAll() ([]domain.Session, error) {
	s.cacheMu.Lock()
	if s.cacheValid {
		cached := s.cache
		s.cacheMu.Unlock()
		return cached, nil
	}
	s.cacheMu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, 0, len(file.Sessions))
	for _, entry := range file.Sessions {
		sessions = append(sessions, sessionFromSchema(entry))
	}

	s.cacheMu.Lock()
	s.cache = sessions
	s.cacheValid = true
	s.cacheMu.Unlock()

	return sessions, nil
}

func (s *SessionStore) readSchema() (sessionsFileSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := sessionsFileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return sessionsFileSchema{}, fmt.Errorf("read sessions file: %w", err)
	}

	var file sessionsFileSchema
	if err := json.Unmarshal(data, &file); err != nil {
		return sessionsFileSchema{}, fmt.Errorf("decode sessions file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return sessionsFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *SessionStore) writeSchema(file sessionsFileSchema) error {
	file.applyDefaults()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions file: %w", err)
	}

	if err := writeFileAtomic(s.path, append(data, '\n')); err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.cache = nil
	s.cacheValid = false
	s.cacheMu.Unlock()

	return nil
}
