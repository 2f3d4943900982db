package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/scenereel-api/internal/artifact"
	"github.com/maauso/scenereel-api/internal/genlog"
	"github.com/maauso/scenereel-api/internal/provider"
	"github.com/maauso/scenereel-api/internal/scene"
)

// Static errors for administrative recovery.
var (
	// ErrNothingToRecover is returned for scenes with no recoverable stage.
	ErrNothingToRecover = errors.New("pipeline: nothing to recover")
	// ErrJobNotFinished is returned when the remote job has not completed.
	ErrJobNotFinished = errors.New("pipeline: remote job not finished")
)

// Recover reconciles a scene with a remote job that completed but whose
// result was never committed, typically after a crash or a failed download.
// The result is fetched through the recorded job handle (or taken from
// resultURL when the operator supplies one), stored under a fresh key, and
// the scene advances past the recovered stage. Works on FAILED scenes too,
// which is the one path allowed to leave FAILED.
func (o *Orchestrator) Recover(ctx context.Context, sceneID, resultURL string) (*scene.Scene, error) {
	sc, err := o.repo.FindScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}

	stage, err := o.recoverableStage(ctx, sc)
	if err != nil {
		return nil, err
	}

	// Build the stage view specFor expects.
	staged := *sc
	staged.Status = stage
	spec, err := o.specFor(&staged)
	if err != nil {
		return nil, err
	}

	mediaURL := resultURL
	if mediaURL == "" {
		jobID, _, err := o.log.LastJobHandle(ctx, sc.ID, string(stage))
		if err != nil {
			if errors.Is(err, genlog.ErrNoJobHandle) {
				return nil, fmt.Errorf("%w: no job handle recorded for %s", ErrNothingToRecover, stage)
			}
			return nil, err
		}
		res, err := spec.fetch(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("fetch job %s: %w", jobID, err)
		}
		if res.State != provider.StateCompleted {
			return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotFinished, jobID, res.State)
		}
		mediaURL = res.MediaURL
	}

	key := artifact.BuildKey(sc.ProjectID, sc.ID, strings.ToLower(string(stage)), spec.ext)
	if _, err := o.relocate(ctx, mediaURL, key, spec.ext); err != nil {
		return nil, err
	}

	var upd scene.Update
	spec.apply(&upd, key)

	if err := o.repo.Override(ctx, sc.ID, sc.Status, spec.next, upd); err != nil {
		if errors.Is(err, scene.ErrStaleStatus) {
			if delErr := o.store.Delete(ctx, key); delErr != nil {
				o.logger.Warn("could not delete orphaned artifact",
					slog.String("key", key),
					slog.String("error", delErr.Error()),
				)
			}
		}
		return nil, err
	}

	o.appendLog(ctx, sc, string(stage), genlog.LevelInfo, spec.name, "",
		fmt.Sprintf("manual recovery: artifact stored: %s", key), true)

	o.logger.Info("scene recovered",
		slog.String("scene_id", sc.ID),
		slog.String("stage", string(stage)),
		slog.String("status", string(spec.next)),
	)

	if !spec.next.IsTerminal() {
		if err := o.enqueueNext(ctx, sc.ID, spec.next); err != nil {
			return nil, err
		}
	}
	return o.repo.FindScene(ctx, sc.ID)
}

// recoverableStage decides which stage the recovery targets. An in-flight
// scene recovers its current stage; a FAILED scene recovers the stage its
// generation log last recorded.
func (o *Orchestrator) recoverableStage(ctx context.Context, sc *scene.Scene) (scene.Status, error) {
	switch sc.Status {
	case scene.StatusImageGeneration, scene.StatusVideoGeneration, scene.StatusLipsyncApplication:
		return sc.Status, nil
	case scene.StatusFailed:
		entries, err := o.log.BySceneID(ctx, sc.ID)
		if err != nil {
			return "", err
		}
		for i := len(entries) - 1; i >= 0; i-- {
			switch s := scene.Status(entries[i].Step); s {
			case scene.StatusImageGeneration, scene.StatusVideoGeneration, scene.StatusLipsyncApplication:
				return s, nil
			}
		}
		return "", fmt.Errorf("%w: no stage recorded for failed scene", ErrNothingToRecover)
	default:
		return "", fmt.Errorf("%w: scene is %s", ErrNothingToRecover, sc.Status)
	}
}
