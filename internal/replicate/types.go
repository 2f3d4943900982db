// Package replicate provides an HTTP client for the Replicate prediction API,
// used for image synthesis from a reference headshot and a style prompt.
package replicate

// Status represents the status of a Replicate prediction.
type Status string

// Prediction statuses aligned with the Replicate API.
const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// SubmitOptions contains parameters for creating a prediction.
type SubmitOptions struct {
	Model    string // Model version identifier
	Prompt   string // Generation prompt
	ImageURL string // Reference image URL (image-to-image)
}

// predictionRequest represents the request body for POST /v1/predictions.
type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

// predictionInput represents the input field of a prediction request.
type predictionInput struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image,omitempty"`
}

// predictionResponse represents a prediction resource returned by the API.
// Image models return their output as a list of URLs; the last element is
// the final image.
type predictionResponse struct {
	ID     string   `json:"id"`
	Status Status   `json:"status"`
	Output []string `json:"output,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// PollResult contains the result of polling a prediction.
type PollResult struct {
	Status    Status
	OutputURL string // Set when Status is StatusSucceeded
	Error     string // Set when Status is StatusFailed
}
