// Package scene provides the Scene aggregate and its generation state machine.
// A Scene advances through the generation stages in a fixed order; transitions
// are validated centrally here rather than scattered across stage handlers.
package scene

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the current pipeline state of a Scene.
type Status string

const (
	// StatusPending indicates the scene has been created but generation has not started.
	StatusPending Status = "PENDING"
	// StatusImageGeneration indicates the styled headshot image is being generated.
	StatusImageGeneration Status = "IMAGE_GENERATION"
	// StatusVideoGeneration indicates the base video is being generated from the image.
	StatusVideoGeneration Status = "VIDEO_GENERATION"
	// StatusLipsyncApplication indicates lip-sync is being applied to the base video.
	StatusLipsyncApplication Status = "LIPSYNC_APPLICATION"
	// StatusCompleted indicates the final video has been committed.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the pipeline gave up on this scene.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the scene was cancelled by an external action.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("scene: invalid state transition")

// validTransitions defines which status transitions are allowed.
// FAILED and CANCELLED are reachable from every non-terminal status;
// forward movement follows the pipeline order strictly.
var validTransitions = map[Status][]Status{
	StatusPending:            {StatusImageGeneration, StatusFailed, StatusCancelled},
	StatusImageGeneration:    {StatusVideoGeneration, StatusFailed, StatusCancelled},
	StatusVideoGeneration:    {StatusLipsyncApplication, StatusFailed, StatusCancelled},
	StatusLipsyncApplication: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:          {},
	StatusFailed:             {},
	StatusCancelled:          {},
}

// CanTransition reports whether a transition between two statuses is legal.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the status that follows s in the pipeline order.
// The second return value is false when s has no automatic successor.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusPending:
		return StatusImageGeneration, true
	case StatusImageGeneration:
		return StatusVideoGeneration, true
	case StatusVideoGeneration:
		return StatusLipsyncApplication, true
	case StatusLipsyncApplication:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// IsTerminal reports whether the status admits no further automatic transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Project is a container of scenes and assets.
type Project struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Asset is user-supplied reference material: a headshot in object storage and,
// optionally, a cloned-voice identifier. Assets are owned by the project and
// referenced, not owned, by scenes.
type Asset struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID  string    `gorm:"index;type:varchar(64)" json:"project_id"`
	StorageKey string    `gorm:"type:varchar(512)" json:"storage_key"`
	VoiceID    string    `gorm:"type:varchar(128)" json:"voice_id,omitempty"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Scene is the unit of work for the generation pipeline.
// The orchestrator is the only writer of Status and the media keys;
// the administrative recovery action is the sole exception.
type Scene struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID string `gorm:"index;type:varchar(64)" json:"project_id"`
	Idx       int    `json:"idx"`
	Status    Status `gorm:"type:varchar(32);index" json:"status"`

	// Generation inputs.
	Script          string `gorm:"type:text" json:"script"`
	Prompt          string `gorm:"type:text" json:"prompt"`
	HeadshotAssetID string `gorm:"type:varchar(64)" json:"headshot_asset_id,omitempty"`
	VoiceID         string `gorm:"type:varchar(128)" json:"voice_id,omitempty"`

	// Provider/model identifiers used per stage.
	ImageModel   string `gorm:"type:varchar(128)" json:"image_model,omitempty"`
	VideoModel   string `gorm:"type:varchar(128)" json:"video_model,omitempty"`
	LipsyncModel string `gorm:"type:varchar(128)" json:"lipsync_model,omitempty"`

	// Object storage keys for intermediate and final artifacts.
	ImageKey   string `gorm:"type:varchar(512)" json:"image_key,omitempty"`
	VideoKey   string `gorm:"type:varchar(512)" json:"video_key,omitempty"`
	LipsyncKey string `gorm:"type:varchar(512)" json:"lipsync_key,omitempty"`
	FinalKey   string `gorm:"type:varchar(512)" json:"final_key,omitempty"`

	// Error holds the last fatal failure message, if any.
	Error string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a scene in PENDING status with a generated id.
func New(projectID string, idx int) *Scene {
	now := time.Now()
	return &Scene{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Idx:       idx,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ArtifactKeyFor returns the storage key recorded for the artifact that the
// given stage consumes as its upstream input.
func (s *Scene) ArtifactKeyFor(status Status) string {
	switch status {
	case StatusVideoGeneration:
		return s.ImageKey
	case StatusLipsyncApplication:
		return s.VideoKey
	default:
		return ""
	}
}

// TableName maps Scene to its table.
func (Scene) TableName() string { return "scenes" }

// TableName maps Project to its table.
func (Project) TableName() string { return "projects" }

// TableName maps Asset to its table.
func (Asset) TableName() string { return "assets" }
