// Package pipeline provides the workflow orchestrator that advances a scene
// through its generation stages. One invocation executes exactly one stage;
// self-continuation happens by enqueueing the next invocation, so a process
// crash between stages loses nothing beyond the last uncommitted step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maauso/scenereel-api/internal/artifact"
	"github.com/maauso/scenereel-api/internal/genlog"
	"github.com/maauso/scenereel-api/internal/provider"
	"github.com/maauso/scenereel-api/internal/scene"
)

// ErrRetryLater marks a transient stage failure. The queue redelivers the
// invocation with backoff; everything durable is untouched.
var ErrRetryLater = errors.New("pipeline: transient failure, retry later")

// Enqueuer triggers the next workflow invocation for a scene.
type Enqueuer interface {
	EnqueueScene(ctx context.Context, sceneID string, status scene.Status) error
}

// Policy bounds retries and waits for every stage.
type Policy struct {
	// MaxAttempts is the total number of attempts per stage before the
	// scene is marked FAILED.
	MaxAttempts int
	// RetryRejected treats provider rejections (quota and the like) as
	// transient instead of fatal.
	RetryRejected bool
	// Await bounds the per-stage polling loop.
	Await provider.AwaitOptions
	// SignedURLTTL is the validity window of artifact URLs handed to providers.
	SignedURLTTL time.Duration
}

// DefaultPolicy returns the retry policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		Await:        provider.DefaultAwaitOptions(),
		SignedURLTTL: 2 * time.Hour,
	}
}

// Orchestrator owns the progression of scenes through the state machine.
// The scene record is the single source of truth for progress; the generation
// log records every attempt. Nothing is cached in memory between invocations.
type Orchestrator struct {
	repo    scene.Repository
	log     genlog.Recorder
	store   artifact.Store
	images  provider.ImageSynthesizer
	videos  provider.VideoSynthesizer
	lipsync provider.LipSyncer
	queue   Enqueuer
	policy  Policy
	logger  *slog.Logger

	// httpClient downloads provider results for relocation into the store.
	httpClient *http.Client
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy overrides the retry policy.
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithHTTPClient overrides the download client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) {
		o.httpClient = c
	}
}

// NewOrchestrator creates an orchestrator with its collaborators.
func NewOrchestrator(
	repo scene.Repository,
	log genlog.Recorder,
	store artifact.Store,
	images provider.ImageSynthesizer,
	videos provider.VideoSynthesizer,
	lipsync provider.LipSyncer,
	queue Enqueuer,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		repo:       repo,
		log:        log,
		store:      store,
		images:     images,
		videos:     videos,
		lipsync:    lipsync,
		queue:      queue,
		policy:     DefaultPolicy(),
		logger:     logger,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one stage for the scene. Redelivered triggers for a scene in a
// terminal or later status are safe no-ops.
func (o *Orchestrator) Run(ctx context.Context, sceneID string) error {
	sc, err := o.repo.FindScene(ctx, sceneID)
	if err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			o.logger.Warn("scene not found, dropping invocation",
				slog.String("scene_id", sceneID),
			)
			return nil
		}
		return fmt.Errorf("%w: load scene: %w", ErrRetryLater, err)
	}

	if sc.Status.IsTerminal() {
		o.logger.Debug("scene already terminal, nothing to do",
			slog.String("scene_id", sc.ID),
			slog.String("status", string(sc.Status)),
		)
		return nil
	}

	if sc.Status == scene.StatusPending {
		return o.start(ctx, sc)
	}
	return o.runStage(ctx, sc)
}

// start moves a pending scene into its first stage and enqueues the work.
func (o *Orchestrator) start(ctx context.Context, sc *scene.Scene) error {
	err := o.repo.Transition(ctx, sc.ID, scene.StatusPending, scene.StatusImageGeneration, scene.Update{})
	if err != nil {
		if errors.Is(err, scene.ErrStaleStatus) {
			// Another run got here first.
			return nil
		}
		return fmt.Errorf("%w: start scene: %w", ErrRetryLater, err)
	}

	o.appendLog(ctx, sc, string(scene.StatusPending), genlog.LevelInfo, "", "", "pipeline started", false)
	return o.enqueueNext(ctx, sc.ID, scene.StatusImageGeneration)
}

// stageSpec describes how one stage submits work and commits its result.
type stageSpec struct {
	name     string
	ext      string
	next     scene.Status
	submit   func(ctx context.Context) (string, error)
	fetch    func(ctx context.Context, jobID string) (provider.Result, error)
	apply    func(upd *scene.Update, key string)
}

// specFor builds the stage spec for the scene's current status.
// Input gathering happens lazily inside submit so a resumed invocation with a
// recorded job handle never touches the inputs again.
func (o *Orchestrator) specFor(sc *scene.Scene) (stageSpec, error) {
	switch sc.Status {
	case scene.StatusImageGeneration:
		return stageSpec{
			name: o.images.Name(),
			ext:  "png",
			next: scene.StatusVideoGeneration,
			submit: func(ctx context.Context) (string, error) {
				headshotURL, err := o.headshotURL(ctx, sc)
				if err != nil {
					return "", err
				}
				return o.images.Submit(ctx, provider.ImageInput{
					Prompt:      sc.Prompt,
					HeadshotURL: headshotURL,
					Model:       sc.ImageModel,
				})
			},
			fetch: o.images.Fetch,
			apply: func(upd *scene.Update, key string) { upd.ImageKey = key },
		}, nil

	case scene.StatusVideoGeneration:
		return stageSpec{
			name: o.videos.Name(),
			ext:  "mp4",
			next: scene.StatusLipsyncApplication,
			submit: func(ctx context.Context) (string, error) {
				imageURL, err := o.upstreamURL(ctx, sc)
				if err != nil {
					return "", err
				}
				return o.videos.Submit(ctx, provider.VideoInput{
					ImageURL: imageURL,
					Prompt:   sc.Prompt,
					Model:    sc.VideoModel,
				})
			},
			fetch: o.videos.Fetch,
			apply: func(upd *scene.Update, key string) { upd.VideoKey = key },
		}, nil

	case scene.StatusLipsyncApplication:
		return stageSpec{
			name: o.lipsync.Name(),
			ext:  "mp4",
			next: scene.StatusCompleted,
			submit: func(ctx context.Context) (string, error) {
				videoURL, err := o.upstreamURL(ctx, sc)
				if err != nil {
					return "", err
				}
				return o.lipsync.Submit(ctx, provider.LipsyncInput{
					VideoURL: videoURL,
					Script:   sc.Script,
					VoiceID:  sc.VoiceID,
					Model:    sc.LipsyncModel,
				})
			},
			fetch: o.lipsync.Fetch,
			apply: func(upd *scene.Update, key string) {
				upd.LipsyncKey = key
				upd.FinalKey = key
			},
		}, nil

	default:
		return stageSpec{}, fmt.Errorf("pipeline: no stage handler for status %s", sc.Status)
	}
}

// runStage executes the scene's current stage end to end: resume or submit,
// await the remote job, relocate the artifact, checkpoint the advance.
func (o *Orchestrator) runStage(ctx context.Context, sc *scene.Scene) error {
	step := string(sc.Status)

	spec, err := o.specFor(sc)
	if err != nil {
		return o.fail(ctx, sc, step, "", err.Error())
	}

	// Resubmission guard: a crash between submit and checkpoint leaves the
	// handle in the log. Resume polling rather than paying for a second job.
	jobID, _, err := o.log.LastJobHandle(ctx, sc.ID, step)
	switch {
	case errors.Is(err, genlog.ErrNoJobHandle):
		jobID, err = spec.submit(ctx)
		if err != nil {
			return o.classifyFailure(ctx, sc, step, spec.name, err)
		}
		o.appendLog(ctx, sc, step, genlog.LevelInfo, spec.name, jobID, "job submitted", false)
	case err != nil:
		return fmt.Errorf("%w: read generation log: %w", ErrRetryLater, err)
	default:
		o.logger.Info("resuming previously submitted job",
			slog.String("scene_id", sc.ID),
			slog.String("step", step),
			slog.String("job_id", jobID),
		)
	}

	res, err := provider.Await(ctx, func(ctx context.Context) (provider.Result, error) {
		return spec.fetch(ctx, jobID)
	}, o.policy.Await)
	if err != nil {
		return o.classifyFailure(ctx, sc, step, spec.name, err)
	}
	if res.State == provider.StateFailed {
		return o.classifyFailure(ctx, sc, step, spec.name, provider.FailedError(spec.name, res))
	}

	key := artifact.BuildKey(sc.ProjectID, sc.ID, strings.ToLower(step), spec.ext)
	if _, err := o.relocate(ctx, res.MediaURL, key, spec.ext); err != nil {
		return o.classifyFailure(ctx, sc, step, spec.name, err)
	}

	var upd scene.Update
	spec.apply(&upd, key)

	if err := o.repo.Transition(ctx, sc.ID, sc.Status, spec.next, upd); err != nil {
		if errors.Is(err, scene.ErrStaleStatus) {
			// A concurrent run, cancellation or recovery won the race.
			// Drop our copy so no unreferenced artifact lingers.
			if delErr := o.store.Delete(ctx, key); delErr != nil {
				o.logger.Warn("could not delete orphaned artifact",
					slog.String("key", key),
					slog.String("error", delErr.Error()),
				)
			}
			o.logger.Info("scene advanced concurrently, discarding result",
				slog.String("scene_id", sc.ID),
				slog.String("step", step),
			)
			return nil
		}
		return fmt.Errorf("%w: checkpoint scene: %w", ErrRetryLater, err)
	}

	o.appendLog(ctx, sc, step, genlog.LevelInfo, spec.name, jobID,
		fmt.Sprintf("artifact stored: %s", key), false)

	o.logger.Info("stage completed",
		slog.String("scene_id", sc.ID),
		slog.String("step", step),
		slog.String("next", string(spec.next)),
	)

	if spec.next.IsTerminal() {
		return nil
	}
	return o.enqueueNext(ctx, sc.ID, spec.next)
}

// Cancel marks a non-terminal scene CANCELLED. An in-flight run loses its
// final checkpoint guard and discards its result.
func (o *Orchestrator) Cancel(ctx context.Context, sceneID string) error {
	sc, err := o.repo.FindScene(ctx, sceneID)
	if err != nil {
		return err
	}
	if sc.Status.IsTerminal() {
		return fmt.Errorf("pipeline: scene %s is already %s", sceneID, sc.Status)
	}

	if err := o.repo.Transition(ctx, sc.ID, sc.Status, scene.StatusCancelled, scene.Update{}); err != nil {
		return err
	}
	o.appendLog(ctx, sc, string(sc.Status), genlog.LevelWarn, "", "", "scene cancelled", false)
	return nil
}

// classifyFailure picks the retry policy for a stage failure:
// invalid input is fatal, rejections are fatal unless configured otherwise,
// timeouts and transient errors burn one attempt and retry up to the cap.
func (o *Orchestrator) classifyFailure(ctx context.Context, sc *scene.Scene, step, providerName string, cause error) error {
	switch {
	case errors.Is(cause, provider.ErrInvalidInput):
		return o.fail(ctx, sc, step, providerName, cause.Error())
	case errors.Is(cause, provider.ErrRejected):
		if o.policy.RetryRejected {
			return o.retryOrFail(ctx, sc, step, providerName, cause)
		}
		return o.fail(ctx, sc, step, providerName, cause.Error())
	case errors.Is(cause, provider.ErrTimeout),
		errors.Is(cause, artifact.ErrStorage),
		provider.IsTransient(cause):
		return o.retryOrFail(ctx, sc, step, providerName, cause)
	default:
		return o.fail(ctx, sc, step, providerName, cause.Error())
	}
}

// retryOrFail burns one attempt. Attempts are counted from the log, not from
// memory, so they survive process restarts.
func (o *Orchestrator) retryOrFail(ctx context.Context, sc *scene.Scene, step, providerName string, cause error) error {
	attempt := o.attemptCount(ctx, sc.ID, step) + 1
	if attempt >= o.policy.MaxAttempts {
		return o.fail(ctx, sc, step, providerName,
			fmt.Sprintf("giving up after %d attempts: %v", attempt, cause))
	}

	o.appendLog(ctx, sc, step, genlog.LevelWarn, providerName, "",
		fmt.Sprintf("attempt %d failed: %v", attempt, cause), false)
	return fmt.Errorf("%w: %s attempt %d: %w", ErrRetryLater, step, attempt, cause)
}

// attemptCount returns how many failed attempts the log records for a step.
func (o *Orchestrator) attemptCount(ctx context.Context, sceneID, step string) int {
	entries, err := o.log.BySceneID(ctx, sceneID)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Step == step && e.Level == genlog.LevelWarn && !e.Manual {
			n++
		}
	}
	return n
}

// fail records the fatal outcome and marks the scene FAILED.
// Every FAILED scene carries at least this one ERROR entry.
func (o *Orchestrator) fail(ctx context.Context, sc *scene.Scene, step, providerName, message string) error {
	o.appendLog(ctx, sc, step, genlog.LevelError, providerName, "", message, false)

	err := o.repo.Transition(ctx, sc.ID, sc.Status, scene.StatusFailed, scene.Update{Error: message})
	if err != nil && !errors.Is(err, scene.ErrStaleStatus) {
		return fmt.Errorf("%w: mark scene failed: %w", ErrRetryLater, err)
	}

	o.logger.Error("scene failed",
		slog.String("scene_id", sc.ID),
		slog.String("step", step),
		slog.String("provider", providerName),
		slog.String("error", message),
	)
	return nil
}

// headshotURL resolves the optional headshot asset into a signed URL.
func (o *Orchestrator) headshotURL(ctx context.Context, sc *scene.Scene) (string, error) {
	if sc.HeadshotAssetID == "" {
		return "", nil
	}
	asset, err := o.repo.FindAsset(ctx, sc.HeadshotAssetID)
	if err != nil {
		if errors.Is(err, scene.ErrAssetNotFound) {
			return "", fmt.Errorf("%w: headshot asset %s not found", provider.ErrInvalidInput, sc.HeadshotAssetID)
		}
		return "", provider.Transient(err)
	}
	return o.signedURL(ctx, asset.StorageKey)
}

// upstreamURL resolves the previous stage's artifact into a signed URL.
func (o *Orchestrator) upstreamURL(ctx context.Context, sc *scene.Scene) (string, error) {
	key := sc.ArtifactKeyFor(sc.Status)
	if key == "" {
		return "", fmt.Errorf("%w: missing upstream artifact for %s", provider.ErrInvalidInput, sc.Status)
	}
	return o.signedURL(ctx, key)
}

func (o *Orchestrator) signedURL(ctx context.Context, key string) (string, error) {
	url, err := o.store.SignedGet(ctx, key, o.policy.SignedURLTTL)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return "", fmt.Errorf("%w: artifact %s not in store", provider.ErrInvalidInput, key)
		}
		return "", err
	}
	return url, nil
}

// enqueueNext triggers the following stage. The scene has already advanced,
// so a redelivered invocation simply picks up the new status.
func (o *Orchestrator) enqueueNext(ctx context.Context, sceneID string, status scene.Status) error {
	if err := o.queue.EnqueueScene(ctx, sceneID, status); err != nil {
		return fmt.Errorf("%w: enqueue next stage: %w", ErrRetryLater, err)
	}
	return nil
}

// appendLog writes an entry, logging rather than failing when the log write
// itself errors: a log failure must never mask the pipeline outcome.
func (o *Orchestrator) appendLog(ctx context.Context, sc *scene.Scene, step string, level genlog.Level, providerName, jobID, message string, manual bool) {
	err := o.log.Append(ctx, genlog.Entry{
		SceneID:   sc.ID,
		ProjectID: sc.ProjectID,
		Step:      step,
		Level:     level,
		Message:   message,
		Provider:  providerName,
		JobHandle: jobID,
		Manual:    manual,
	})
	if err != nil {
		o.logger.Error("could not append generation log entry",
			slog.String("scene_id", sc.ID),
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
	}
}
