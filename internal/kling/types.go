// Package kling provides an HTTP client for the Kling image-to-video API,
// used to animate a generated still image into a base video clip.
package kling

// Status represents the status of a Kling video task.
type Status string

// Task statuses aligned with the Kling API.
const (
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusSucceed    Status = "succeed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceed || s == StatusFailed
}

// SubmitOptions contains parameters for creating a video task.
type SubmitOptions struct {
	Model       string // Model name, e.g. "kling-v1-6"
	ImageURL    string // Source image URL
	Prompt      string // Motion/scene prompt
	DurationSec int    // Clip length in seconds (default 5)
}

// createTaskRequest represents the request body for POST /v1/videos/image2video.
type createTaskRequest struct {
	ModelName string `json:"model_name"`
	Image     string `json:"image"`
	Prompt    string `json:"prompt,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// taskEnvelope wraps every Kling response.
type taskEnvelope struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    taskData `json:"data"`
}

// taskData represents a video task resource.
type taskData struct {
	TaskID        string     `json:"task_id"`
	TaskStatus    Status     `json:"task_status"`
	TaskStatusMsg string     `json:"task_status_msg,omitempty"`
	TaskResult    taskResult `json:"task_result,omitempty"`
}

// taskResult carries the outputs of a finished task.
type taskResult struct {
	Videos []taskVideo `json:"videos,omitempty"`
}

// taskVideo is one generated clip.
type taskVideo struct {
	URL      string `json:"url"`
	Duration string `json:"duration,omitempty"`
}

// PollResult contains the result of polling a video task.
type PollResult struct {
	Status   Status
	VideoURL string // Set when Status is StatusSucceed
	Error    string // Set when Status is StatusFailed
}
