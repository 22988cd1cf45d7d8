package jsonfile

import (
	"fmt"
	"time"

	"github.com/karlmjogila/swarmops/internal/domain"
)

const sessionsSchemaVersion = 1

type sessionsFileSchema struct {
	Version  int             `json:"version"`
	Sessions []sessionSchema `json:"sessions"`
}

type sessionSchema struct {
	Key            string           `json:"sessionKey"`
	ID             string           `json:"sessionId"`
	RoleID         string           `json:"roleId"`
	WorkItemID     string           `json:"workItemId,omitempty"`
	Label          string           `json:"label,omitempty"`
	Task           string           `json:"task,omitempty"`
	Status         string           `json:"status"`
	TokenUsage     tokenUsageSchema `json:"tokenUsage"`
	ExitCode       *int             `json:"exitCode,omitempty"`
	Error          string           `json:"error,omitempty"`
	SpawnedAt      time.Time        `json:"spawnedAt"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
}

type tokenUsageSchema struct {
	Input    int64 `json:"input"`
	Output   int64 `json:"output"`
	Thinking int64 `json:"thinking"`
}

func (f *sessionsFileSchema) applyDefaults() {
	if f.Version == 0 {
		f.Version = sessionsSchemaVersion
	}
	if f.Sessions == nil {
		f.Sessions = []sessionSchema{}
	}
}

func (f sessionsFileSchema) validateVersion() error {
	if f.Version > sessionsSchemaVersion {
		return fmt.Errorf("unsupported sessions schema version %d", f.Version)
	}
	return nil
}

func sessionToSchema(session domain.Session) sessionSchema {
	var exitCode *int
	if session.ExitCode != nil {
		code := *session.ExitCode
		exitCode = &code
	}

	return sessionSchema{
		Key:        session.Key,
		ID:         session.ID,
		RoleID:     string(session.RoleID),
		WorkItemID: string(session.WorkItemID),
		Label:      session.Label,
		Task:       session.Task,
		Status:     string(session.Status),
		TokenUsage: tokenUsageSchema{
			Input:    session.TokenUsage.Input,
			Output:   session.TokenUsage.Output,
			Thinking: session.TokenUsage.Thinking,
		},
		ExitCode:       exitCode,
		Error:          session.Error,
		SpawnedAt:      session.SpawnedAt,
		LastActivityAt: session.LastActivityAt,
	}
}

func sessionFromSchema(entry sessionSchema) domain.Session {
	var exitCode *int
	if entry.ExitCode != nil {
		code := *entry.ExitCode
		exitCode = &code
	}

	return domain.Session{
		Key:        entry.Key,
		ID:         entry.ID,
		RoleID:     domain.RoleID(entry.RoleID),
		WorkItemID: domain.WorkID(entry.WorkItemID),
		Label:      entry.Label,
		Task:       entry.Task,
		Status:     domain.SessionStatus(entry.Status),
		TokenUsage: domain.TokenUsage{
			Input:    entry.TokenUsage.Input,
			Output:   entry.TokenUsage.Output,
			Thinking: entry.TokenUsage.Thinking,
		},
		ExitCode:       exitCode,
		Error:          entry.Error,
		SpawnedAt:      entry.SpawnedAt,
		LastActivityAt: entry.LastActivityAt,
	}
}
