package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/maauso/scenereel-api/internal/replicate"
)

// ReplicateAdapter adapts the Replicate client to the ImageSynthesizer port.
type ReplicateAdapter struct {
	client replicate.Client
}

// NewReplicateAdapter creates a new Replicate image synthesis adapter.
func NewReplicateAdapter(client replicate.Client) *ReplicateAdapter {
	return &ReplicateAdapter{client: client}
}

// Name identifies the provider in logs.
func (a *ReplicateAdapter) Name() string { return "replicate" }

// Submit creates an image synthesis prediction.
func (a *ReplicateAdapter) Submit(ctx context.Context, in ImageInput) (string, error) {
	jobID, err := a.client.Submit(ctx, replicate.SubmitOptions{
		Model:    in.Model,
		Prompt:   in.Prompt,
		ImageURL: in.HeadshotURL,
	})
	if err != nil {
		return "", mapReplicateError(err)
	}
	return jobID, nil
}

// Fetch checks the status of a prediction.
func (a *ReplicateAdapter) Fetch(ctx context.Context, jobID string) (Result, error) {
	res, err := a.client.Poll(ctx, jobID)
	if err != nil {
		return Result{}, mapReplicateError(err)
	}

	switch res.Status {
	case replicate.StatusSucceeded:
		return Result{State: StateCompleted, MediaURL: res.OutputURL}, nil
	case replicate.StatusFailed, replicate.StatusCanceled:
		return Result{State: StateFailed, Reason: res.Error}, nil
	default:
		return Result{State: StatePending}, nil
	}
}

// mapReplicateError translates client errors into the shared taxonomy.
func mapReplicateError(err error) error {
	switch {
	case errors.Is(err, replicate.ErrModelRequired),
		errors.Is(err, replicate.ErrPromptRequired),
		errors.Is(err, replicate.ErrPredictionIDRequired):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case replicate.IsTransient(err):
		return Transient(err)
	case errors.Is(err, replicate.ErrRequestFailed):
		return fmt.Errorf("%w: %w", ErrRejected, err)
	default:
		return fmt.Errorf("replicate adapter: %w", err)
	}
}

// Compile-time check that ReplicateAdapter implements ImageSynthesizer.
var _ ImageSynthesizer = (*ReplicateAdapter)(nil)
