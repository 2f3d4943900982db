// Package synclabs provides an HTTP client for the Sync Labs generation API,
// used to apply script-driven lip movement to a base video.
package synclabs

// Status represents the status of a Sync Labs generation.
type Status string

// Generation statuses aligned with the Sync Labs API.
const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRejected   Status = "REJECTED"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// SubmitOptions contains parameters for creating a generation.
type SubmitOptions struct {
	Model    string // Model name, e.g. "lipsync-2"
	VideoURL string // Base video URL
	Script   string // Text the speaker says
	VoiceID  string // TTS voice identifier used to render the script
}

// generateRequest represents the request body for POST /v2/generate.
type generateRequest struct {
	Model   string          `json:"model"`
	Input   []generateInput `json:"input"`
	Options generateOptions `json:"options,omitempty"`
}

// generateInput is one input slot of a generation request.
type generateInput struct {
	Type     string       `json:"type"` // "video" or "text"
	URL      string       `json:"url,omitempty"`
	Provider *ttsProvider `json:"provider,omitempty"`
	Input    string       `json:"input,omitempty"`
}

// ttsProvider selects the voice used to render a text input.
type ttsProvider struct {
	Name    string `json:"name"`
	VoiceID string `json:"voiceId"`
}

// generateOptions carries optional tuning flags.
type generateOptions struct {
	SyncMode string `json:"sync_mode,omitempty"`
}

// generateResponse represents a generation resource returned by the API.
type generateResponse struct {
	ID        string `json:"id"`
	Status    Status `json:"status"`
	OutputURL string `json:"outputUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PollResult contains the result of polling a generation.
type PollResult struct {
	Status    Status
	OutputURL string // Set when Status is StatusCompleted
	Error     string // Set when Status is StatusFailed or StatusRejected
}
