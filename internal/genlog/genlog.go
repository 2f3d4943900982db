// Package genlog provides the append-only generation log. Every pipeline step
// attempt leaves an entry here; entries are never updated or deleted, and they
// are the sole source of truth for what happened to a stuck scene.
package genlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ErrNoJobHandle is returned when no job handle has been recorded for a
// scene and step.
var ErrNoJobHandle = errors.New("genlog: no job handle recorded")

// Entry is one immutable record of a pipeline step attempt.
type Entry struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SceneID   string    `gorm:"index;type:varchar(64)" json:"scene_id"`
	ProjectID string    `gorm:"index;type:varchar(64)" json:"project_id"`
	Step      string    `gorm:"type:varchar(64)" json:"step"`
	Level     Level     `gorm:"type:varchar(8)" json:"level"`
	Message   string    `gorm:"type:text" json:"message"`
	Provider  string    `gorm:"type:varchar(64)" json:"provider,omitempty"`
	JobHandle string    `gorm:"type:varchar(255)" json:"job_handle,omitempty"`
	Manual    bool      `json:"manual"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName maps Entry to its table.
func (Entry) TableName() string { return "generation_log" }

// NewEntry fills in the id and timestamp of an entry.
func NewEntry(e Entry) Entry {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	return e
}

// Recorder is the persistence port for the generation log.
type Recorder interface {
	// Append writes one entry. Implementations never mutate existing rows.
	Append(ctx context.Context, e Entry) error

	// BySceneID returns the scene's entries in append order.
	BySceneID(ctx context.Context, sceneID string) ([]Entry, error)

	// LastJobHandle returns the most recently recorded provider job handle
	// for a scene and step, or ErrNoJobHandle when none exists. The
	// orchestrator consults it before submitting so a crash between submit
	// and checkpoint does not produce a duplicate provider job.
	LastJobHandle(ctx context.Context, sceneID, step string) (handle, provider string, err error)
}
