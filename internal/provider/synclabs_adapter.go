package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/maauso/scenereel-api/internal/synclabs"
)

// SyncLabsAdapter adapts the Sync Labs client to the LipSyncer port.
type SyncLabsAdapter struct {
	client synclabs.Client
}

// NewSyncLabsAdapter creates a new Sync Labs lip-sync adapter.
func NewSyncLabsAdapter(client synclabs.Client) *SyncLabsAdapter {
	return &SyncLabsAdapter{client: client}
}

// Name identifies the provider in logs.
func (a *SyncLabsAdapter) Name() string { return "synclabs" }

// Submit creates a lip-sync generation.
func (a *SyncLabsAdapter) Submit(ctx context.Context, in LipsyncInput) (string, error) {
	generationID, err := a.client.Submit(ctx, synclabs.SubmitOptions{
		Model:    in.Model,
		VideoURL: in.VideoURL,
		Script:   in.Script,
		VoiceID:  in.VoiceID,
	})
	if err != nil {
		return "", mapSyncLabsError(err)
	}
	return generationID, nil
}

// Fetch checks the status of a generation.
func (a *SyncLabsAdapter) Fetch(ctx context.Context, jobID string) (Result, error) {
	res, err := a.client.Poll(ctx, jobID)
	if err != nil {
		return Result{}, mapSyncLabsError(err)
	}

	switch res.Status {
	case synclabs.StatusCompleted:
		return Result{State: StateCompleted, MediaURL: res.OutputURL}, nil
	case synclabs.StatusFailed, synclabs.StatusRejected:
		return Result{State: StateFailed, Reason: res.Error}, nil
	default:
		return Result{State: StatePending}, nil
	}
}

// mapSyncLabsError translates client errors into the shared taxonomy.
func mapSyncLabsError(err error) error {
	switch {
	case errors.Is(err, synclabs.ErrVideoURLRequired),
		errors.Is(err, synclabs.ErrScriptRequired),
		errors.Is(err, synclabs.ErrGenerationIDRequired):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case synclabs.IsTransient(err):
		return Transient(err)
	case errors.Is(err, synclabs.ErrRequestFailed):
		return fmt.Errorf("%w: %w", ErrRejected, err)
	default:
		return fmt.Errorf("synclabs adapter: %w", err)
	}
}

// Compile-time check that SyncLabsAdapter implements LipSyncer.
var _ LipSyncer = (*SyncLabsAdapter)(nil)
