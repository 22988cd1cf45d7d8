package jsonfile

import (
	"fmt"
	"time"

	"github.com/karlmjogila/swarmops/internal/domain"
)

const workSchemaVersion = 1

type workFileSchema struct {
	Version int        `json:"version"`
	Item    workSchema `json:"item"`
}

type workSchema struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Input       map[string]any    `json:"input,omitempty"`
	Output      map[string]any    `json:"output,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Priority    int               `json:"priority,omitempty"`
	ParentID    string            `json:"parentId,omitempty"`
	ChildIDs    []string          `json:"childIds,omitempty"`
	Iterations  int               `json:"iterations"`
	Error       string            `json:"error,omitempty"`
	Events      []workEventSchema `json:"events"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

type workEventSchema struct {
	Type      string         `json:"type"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (f workFileSchema) validateVersion() error {
	if f.Version > workSchemaVersion {
		return fmt.Errorf("unsupported work schema version %d", f.Version)
	}
	return nil
}

func workToSchema(item domain.WorkItem) workFileSchema {
	events := make([]workEventSchema, 0, len(item.Events))
	for _, ev := range item.Events {
		events = append(events, workEventSchema{
			Type:      ev.Type,
			Message:   ev.Message,
			Data:      ev.Data,
			Timestamp: ev.Timestamp,
		})
	}

	childIDs := make([]string, 0, len(item.ChildIDs))
	for _, id := range item.ChildIDs {
		childIDs = append(childIDs, string(id))
	}

	return workFileSchema{
		Version: workSchemaVersion,
		Item: workSchema{
			ID:          string(item.ID),
			Type:        string(item.Type),
			Status:      string(item.Status),
			Title:       item.Title,
			Description: item.Description,
			Input:       item.Input,
			Output:      item.Output,
			Tags:        item.Tags,
			Priority:    item.Priority,
			ParentID:    string(item.ParentID),
			ChildIDs:    childIDs,
			Iterations:  item.Iterations,
			Error:       item.Error,
			Events:      events,
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
			StartedAt:   item.StartedAt,
			CompletedAt: item.CompletedAt,
		},
	}
}

func workFromSchema(file workFileSchema) domain.WorkItem {
	entry := file.Item

	events := make([]domain.WorkEvent, 0, len(entry.Events))
	for _, ev := range entry.Events {
		events = append(events, domain.WorkEvent{
			Type:      ev.Type,
			Message:   ev.Message,
			Data:      ev.Data,
			Timestamp: ev.Timestamp,
		})
	}

	childIDs := make([]domain.WorkID, 0, len(entry.ChildIDs))
	for _, id := range entry.ChildIDs {
		childIDs = append(childIDs, domain.WorkID(id))
	}

	return domain.WorkItem{
		ID:          domain.WorkID(entry.ID),
		Type:        domain.WorkType(entry.Type),
		Status:      domain.WorkStatus(entry.Status),
		Title:       entry.Title,
		Description: entry.Description,
		Input:       entry.Input,
		Output:      entry.Output,
		Tags:        entry.Tags,
		Priority:    entry.Priority,
		ParentID:    domain.WorkID(entry.ParentID),
		ChildIDs:    childIDs,
		Iterations:  entry.Iterations,
		Error:       entry.Error,
		Events:      events,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
		StartedAt:   entry.StartedAt,
		CompletedAt: entry.CompletedAt,
	}
}

// cloneWorkItem detaches the slices and maps shared with cache entries so a
// caller mutating a returned item cannot corrupt cached state.
func cloneWorkItem(item domain.WorkItem) domain.WorkItem {
	out := item
	out.Input = cloneAnyMap(item.Input)
	out.Output = cloneAnyMap(item.Output)
	out.Tags = append([]string(nil), item.Tags...)
	out.ChildIDs = append([]domain.WorkID(nil), item.ChildIDs...)
	out.Events = make([]domain.WorkEvent, len(item.Events))
	for i, ev := range item.Events {
		out.Events[i] = ev
		out.Events[i].Data = cloneAnyMap(ev.Data)
	}
	if item.StartedAt != nil {
		startedAt := *item.StartedAt
		out.StartedAt = &startedAt
	}
	if item.CompletedAt != nil {
		completedAt := *item.CompletedAt
		out.CompletedAt = &completedAt
	}
	return out
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
