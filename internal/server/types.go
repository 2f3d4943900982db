// Package server provides the HTTP server for the SceneReel API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateProjectRequest is the HTTP request body for creating a project.
type CreateProjectRequest struct {
	// Name is the human-readable project name.
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// ProjectResponse is the HTTP response for a project.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAssetRequest registers an already-uploaded asset with a project.
type CreateAssetRequest struct {
	// Name is the display name of the asset.
	Name string `json:"name" validate:"required,min=1,max=255"`
	// StorageKey is the object storage key of the uploaded media.
	StorageKey string `json:"storage_key" validate:"required"`
	// VoiceID is the optional cloned-voice identifier tied to this asset.
	VoiceID string `json:"voice_id,omitempty"`
}

// AssetResponse is the HTTP response for an asset.
type AssetResponse struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	StorageKey string `json:"storage_key"`
	VoiceID    string `json:"voice_id,omitempty"`
}

// CreateSceneRequest is the HTTP request body for creating a scene.
type CreateSceneRequest struct {
	// Idx is the scene's position within the project.
	Idx int `json:"idx" validate:"min=0"`
	// Script is the text the avatar speaks in this scene.
	Script string `json:"script" validate:"required"`
	// Prompt describes the visual style and setting of the scene.
	Prompt string `json:"prompt" validate:"required"`
	// HeadshotAssetID references a registered headshot asset.
	HeadshotAssetID string `json:"headshot_asset_id,omitempty"`
	// VoiceID selects the cloned voice used for speech.
	VoiceID string `json:"voice_id,omitempty"`
	// Per-stage model overrides; configured defaults apply when empty.
	ImageModel   string `json:"image_model,omitempty"`
	VideoModel   string `json:"video_model,omitempty"`
	LipsyncModel string `json:"lipsync_model,omitempty"`
}

// SceneResponse is the HTTP response for a scene, media references included.
type SceneResponse struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	Idx             int       `json:"idx"`
	Status          string    `json:"status"`
	Script          string    `json:"script"`
	Prompt          string    `json:"prompt"`
	HeadshotAssetID string    `json:"headshot_asset_id,omitempty"`
	VoiceID         string    `json:"voice_id,omitempty"`
	ImageKey        string    `json:"image_key,omitempty"`
	VideoKey        string    `json:"video_key,omitempty"`
	LipsyncKey      string    `json:"lipsync_key,omitempty"`
	FinalKey        string    `json:"final_key,omitempty"`
	// FinalURL is a signed download URL, present when the scene is completed.
	FinalURL  string    `json:"final_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Log is the scene's recent generation log, newest last.
	Log []LogEntryResponse `json:"log,omitempty"`
}

// LogEntryResponse is one generation log entry in a scene response.
type LogEntryResponse struct {
	Step      string    `json:"step"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider,omitempty"`
	JobHandle string    `json:"job_handle,omitempty"`
	Manual    bool      `json:"manual,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateResponse is the HTTP response after triggering generation.
type GenerateResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RecoverRequest is the HTTP request body for the administrative recovery
// action. ResultURL is optional; when empty the recorded job handle is used.
type RecoverRequest struct {
	ResultURL string `json:"result_url,omitempty" validate:"omitempty,url"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
