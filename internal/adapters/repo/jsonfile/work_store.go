package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/karlmjogila/swarmops/internal/domain"
	"github.com/karlmjogila/swarmops/internal/ports"
)

// WorkStore keeps one JSON record per work item under its ledger directory.
// Reads are served from an id-keyed write-through cache; InvalidateCache
// drops it after out-of-band edits.
type WorkStore struct {
	dir   string
	mu    *sync.RWMutex
	clock ports.Clock

	cacheMu sync.Mutex
	cache   map[domain.WorkID]domain.WorkItem
}

var _ ports.WorkStore = (*WorkStore)(nil)

// NewWorkStore opens (and creates if needed) the ledger directory at dir.
func NewWorkStore(dir string, clock ports.Clock) (*WorkStore, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if err := os.MkdirAll(dir, storageDirMode); err != nil {
		return nil, fmt.Errorf("create work ledger directory: %w", err)
	}

	return &WorkStore{
		dir:   dir,
		mu:    lockForPath(dir),
		clock: clock,
		cache: map[domain.WorkID]domain.WorkItem{},
	}, nil
}

func (s *WorkStore) Create(ctx context.Context, input domain.WorkInput) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return domain.WorkItem{}, errors.New("work title is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var parent domain.WorkItem
	if input.ParentID != "" {
		var err error
		parent, err = s.load(input.ParentID)
		if err != nil {
			return domain.WorkItem{}, err
		}
	}

	now := s.clock.Now()
	workType := input.Type
	if workType == "" {
		workType = domain.WorkTypeTask
	}

	item := domain.WorkItem{
		ID:          domain.WorkID(uuid.NewString()),
		Type:        workType,
		Status:      domain.WorkPending,
		Title:       input.Title,
		Description: input.Description,
		Input:       input.Input,
		Tags:        input.Tags,
		Priority:    input.Priority,
		ParentID:    input.ParentID,
		Events: []domain.WorkEvent{{
			Type:      domain.EventCreated,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.save(item); err != nil {
		return domain.WorkItem{}, err
	}

	if input.ParentID != "" {
		parent.ChildIDs = append(parent.ChildIDs, item.ID)
		parent.UpdatedAt = now
		if err := s.save(parent); err != nil {
			return domain.WorkItem{}, err
		}
	}

	return cloneWorkItem(item), nil
}

func (s *WorkStore) Get(ctx context.Context, id domain.WorkID) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.load(id)
	if err != nil {
		return domain.WorkItem{}, err
	}
	return cloneWorkItem(item), nil
}

func (s *WorkStore) List(ctx context.Context, filter ports.WorkFilter, page ports.Page) (ports.WorkPage, error) {
	if err := ctx.Err(); err != nil {
		return ports.WorkPage{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadAll()
	if err != nil {
		return ports.WorkPage{}, err
	}

	matched := make([]domain.WorkItem, 0, len(all))
	for _, item := range all {
		if !matchesWorkFilter(item, filter) {
			continue
		}
		matched = append(matched, item)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
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

	items := make([]domain.WorkItem, 0, end-offset)
	for _, item := range matched[offset:end] {
		items = append(items, cloneWorkItem(item))
	}

	return ports.WorkPage{
		Items:   items,
		Total:   total,
		HasMore: page.Limit > 0 && page.Offset+page.Limit < total,
	}, nil
}

func matchesWorkFilter(item domain.WorkItem, filter ports.WorkFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if item.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Type != "" && item.Type != filter.Type {
		return false
	}
	if filter.Tag != "" && !item.HasTag(filter.Tag) {
		return false
	}
	return true
}

func (s *WorkStore) UpdateStatus(ctx context.Context, id domain.WorkID, next domain.WorkStatus) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.load(id)
	if err != nil {
		return domain.WorkItem{}, err
	}

	if !item.Status.CanTransitionTo(next) {
		return domain.WorkItem{}, &domain.InvalidTransitionError{
			Entity: "work item",
			From:   string(item.Status),
			To:     string(next),
		}
	}

	now := s.clock.Now()
	previous := item.Status
	item.Status = next
	item.UpdatedAt = now
	// StartedAt and CompletedAt are each set exactly once.
	if next == domain.WorkRunning && item.StartedAt == nil {
		startedAt := now
		item.StartedAt = &startedAt
	}
	if next.Terminal() && item.CompletedAt == nil {
		completedAt := now
		item.CompletedAt = &completedAt
	}
	item.Events = append(item.Events, domain.WorkEvent{
		Type:      domain.EventStatusChanged,
		Message:   fmt.Sprintf("%s -> %s", previous, next),
		Timestamp: now,
	})

	if err := s.save(item); err != nil {
		return domain.WorkItem{}, err
	}
	return cloneWorkItem(item), nil
}

func (s *WorkStore) AppendEvent(ctx context.Context, id domain.WorkID, event domain.WorkEvent) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}
	if event.Type == "" {
		return domain.WorkItem{}, errors.New("event type is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.load(id)
	if err != nil {
		return domain.WorkItem{}, err
	}

	now := s.clock.Now()
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	item.Events = append(item.Events, event)
	item.UpdatedAt = now

	if err := s.save(item); err != nil {
		return domain.WorkItem{}, err
	}
	return cloneWorkItem(item), nil
}

func (s *WorkStore) Cancel(ctx context.Context, id domain.WorkID, reason string) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.load(id)
	if err != nil {
		return domain.WorkItem{}, err
	}

	if item.Status.Terminal() {
		return domain.WorkItem{}, &domain.InvalidTransitionError{
			Entity: "work item",
			From:   string(item.Status),
			To:     string(domain.WorkCancelled),
		}
	}

	now := s.clock.Now()
	item.Status = domain.WorkCancelled
	item.Error = reason
	item.UpdatedAt = now
	if item.CompletedAt == nil {
		completedAt := now
		item.CompletedAt = &completedAt
	}
	item.Events = append(item.Events, domain.WorkEvent{
		Type:      domain.EventCancelled,
		Message:   reason,
		Timestamp: now,
	})

	if err := s.save(item); err != nil {
		return domain.WorkItem{}, err
	}
	return cloneWorkItem(item), nil
}

func (s *WorkStore) SetOutput(ctx context.Context, id domain.WorkID, output map[string]any) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.load(id)
	if err != nil {
		return domain.WorkItem{}, err
	}

	item.Output = cloneAnyMap(output)
	item.UpdatedAt = s.clock.Now()

	if err := s.save(item); err != nil {
		return domain.WorkItem{}, err
	}
	return cloneWorkItem(item), nil
}

func (s *WorkStore) SetError(ctx context.Context, id domain.WorkID, message string) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.load(id)
	if err != nil {
		return domain.WorkItem{}, err
	}

	item.Error = message
	item.UpdatedAt = s.clock.Now()

	if err := s.save(item); err != nil {
		return domain.WorkItem{}, err
	}
	return cloneWorkItem(item), nil
}

func (s *WorkStore) IncrementIterations(ctx context.Context, id domain.WorkID) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.load(id)
	if err != nil {
		return domain.WorkItem{}, err
	}

	item.Iterations++
	item.UpdatedAt = s.clock.Now()

	if err := s.save(item); err != nil {
		return domain.WorkItem{}, err
	}
	return cloneWorkItem(item), nil
}

func (s *WorkStore) GetChildren(ctx context.Context, parentID domain.WorkID) ([]domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	parent, err := s.load(parentID)
	if err != nil {
		return nil, err
	}

	children := make([]domain.WorkItem, 0, len(parent.ChildIDs))
	for _, childID := range parent.ChildIDs {
		child, err := s.load(childID)
		if err != nil {
			return nil, err
		}
		children = append(children, cloneWorkItem(child))
	}

	return children, nil
}

// InvalidateCache drops the id-keyed cache so the next read hits the ledger
// files.
func (s *WorkStore) InvalidateCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache = map[domain.WorkID]domain.WorkItem{}
}

func (s *WorkStore) itemPath(id domain.WorkID) string {
	return filepath.Join(s.dir, string(id)+".json")
}

// load returns the item from cache or disk. Caller must hold s.mu.
func (s *WorkStore) load(id domain.WorkID) (domain.WorkItem, error) {
	s.cacheMu.Lock()
	cached, ok := s.cache[id]
	s.cacheMu.Unlock()
	if ok {
		return cached, nil
	}

	data, err := os.ReadFile(s.itemPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.WorkItem{}, &domain.NotFoundError{Entity: "work item", Key: string(id)}
		}
		return domain.WorkItem{}, fmt.Errorf("read work record: %w", err)
	}

	var file workFileSchema
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.WorkItem{}, fmt.Errorf("decode work record: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.WorkItem{}, err
	}

	item := workFromSchema(file)
	s.cacheMu.Lock()
	s.cache[id] = item
	s.cacheMu.Unlock()

	return item, nil
}

// loadAll reads every record in the ledger. Caller must hold s.mu.
func (s *WorkStore) loadAll() ([]domain.WorkItem, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read work ledger directory: %w", err)
	}

	items := make([]domain.WorkItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := domain.WorkID(strings.TrimSuffix(entry.Name(), ".json"))
		item, err := s.load(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

// save writes the record and refreshes the cache entry. Caller must hold s.mu
// for writing.
func (s *WorkStore) save(item domain.WorkItem) error {
	data, err := json.MarshalIndent(workToSchema(item), "", "  ")
	if err != nil {
		return fmt.Errorf("encode work record: %w", err)
	}

	if err := writeFileAtomic(s.itemPath(item.ID), append(data, '\n')); err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.cache[item.ID] = cloneWorkItem(item)
	s.cacheMu.Unlock()

	return nil
}
