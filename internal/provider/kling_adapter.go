package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/maauso/scenereel-api/internal/kling"
)

// KlingAdapter adapts the Kling client to the VideoSynthesizer port.
type KlingAdapter struct {
	client kling.Client
}

// NewKlingAdapter creates a new Kling video synthesis adapter.
func NewKlingAdapter(client kling.Client) *KlingAdapter {
	return &KlingAdapter{client: client}
}

// Name identifies the provider in logs.
func (a *KlingAdapter) Name() string { return "kling" }

// Submit creates an image-to-video task.
func (a *KlingAdapter) Submit(ctx context.Context, in VideoInput) (string, error) {
	taskID, err := a.client.Submit(ctx, kling.SubmitOptions{
		Model:       in.Model,
		ImageURL:    in.ImageURL,
		Prompt:      in.Prompt,
		DurationSec: in.DurationSec,
	})
	if err != nil {
		return "", mapKlingError(err)
	}
	return taskID, nil
}

// Fetch checks the status of a task.
func (a *KlingAdapter) Fetch(ctx context.Context, jobID string) (Result, error) {
	res, err := a.client.Poll(ctx, jobID)
	if err != nil {
		return Result{}, mapKlingError(err)
	}

	switch res.Status {
	case kling.StatusSucceed:
		return Result{State: StateCompleted, MediaURL: res.VideoURL}, nil
	case kling.StatusFailed:
		return Result{State: StateFailed, Reason: res.Error}, nil
	default:
		return Result{State: StatePending}, nil
	}
}

// mapKlingError translates client errors into the shared taxonomy.
func mapKlingError(err error) error {
	switch {
	case errors.Is(err, kling.ErrImageURLRequired),
		errors.Is(err, kling.ErrTaskIDRequired):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case kling.IsTransient(err):
		return Transient(err)
	case errors.Is(err, kling.ErrTaskRejected),
		errors.Is(err, kling.ErrRequestFailed):
		return fmt.Errorf("%w: %w", ErrRejected, err)
	default:
		return fmt.Errorf("kling adapter: %w", err)
	}
}

// Compile-time check that KlingAdapter implements VideoSynthesizer.
var _ VideoSynthesizer = (*KlingAdapter)(nil)
