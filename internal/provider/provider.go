// Package provider defines the common ports for third-party generation
// capabilities. Each capability is an interface with one adapter per service,
// selected by configuration; the orchestrator never talks to a provider
// client directly.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// State represents the remote state of a generation job.
type State string

const (
	// StatePending indicates the job is queued or running remotely.
	StatePending State = "PENDING"
	// StateCompleted indicates the job finished and a media URL is available.
	StateCompleted State = "COMPLETED"
	// StateFailed indicates the job failed remotely.
	StateFailed State = "FAILED"
)

// Result is the outcome of fetching a job's status.
type Result struct {
	State    State
	MediaURL string // Set when State is StateCompleted
	Reason   string // Set when State is StateFailed
}

// Error taxonomy shared by all capabilities. Adapters map client-specific
// errors onto these so the orchestrator can pick a retry policy without
// knowing which service is behind an interface.
var (
	// ErrInvalidInput indicates required fields are missing or malformed.
	// Never retried.
	ErrInvalidInput = errors.New("provider: invalid input")
	// ErrRejected indicates the remote service declined the request
	// (policy, quota). Fatal unless the configured policy says otherwise.
	ErrRejected = errors.New("provider: request rejected")
	// ErrTimeout indicates a job did not complete within the configured
	// maximum wait. Retryable up to a cap.
	ErrTimeout = errors.New("provider: timed out waiting for job")
)

// TransientError marks a failure worth retrying: network errors, 5xx
// responses, rate limits.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ImageInput describes an image synthesis request.
type ImageInput struct {
	Prompt      string // Style/scene prompt
	HeadshotURL string // Signed URL of the reference headshot
	Model       string // Provider model identifier
}

// VideoInput describes an image-to-video request.
type VideoInput struct {
	ImageURL    string // Signed URL of the generated image
	Prompt      string
	Model       string
	DurationSec int
}

// LipsyncInput describes an audio-driven lip-sync request.
type LipsyncInput struct {
	VideoURL string // Signed URL of the base video
	Script   string // Text the avatar speaks
	VoiceID  string // Cloned-voice identifier
	Model    string
}

// ImageSynthesizer generates a styled image from a headshot and prompt.
type ImageSynthesizer interface {
	Name() string
	Submit(ctx context.Context, in ImageInput) (jobID string, err error)
	Fetch(ctx context.Context, jobID string) (Result, error)
}

// VideoSynthesizer generates a short video clip from a still image.
type VideoSynthesizer interface {
	Name() string
	Submit(ctx context.Context, in VideoInput) (jobID string, err error)
	Fetch(ctx context.Context, jobID string) (Result, error)
}

// LipSyncer applies speech-driven lip movement to a base video.
type LipSyncer interface {
	Name() string
	Submit(ctx context.Context, in LipsyncInput) (jobID string, err error)
	Fetch(ctx context.Context, jobID string) (Result, error)
}

// FailedError converts a failed Result into an error, keeping the remote
// reason for the generation log.
func FailedError(name string, res Result) error {
	return fmt.Errorf("%w: %s: %s", ErrRejected, name, res.Reason)
}
