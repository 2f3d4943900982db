package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/maauso/scenereel-api/internal/scene"
)

// TypeSceneStage is the task type for one pipeline stage invocation.
const TypeSceneStage = "scene:stage"

// queueName is the asynq queue carrying pipeline work.
const queueName = "pipeline"

// stagePayload is the task body. The scene ID is the only durable input;
// everything else is reloaded from the database on execution.
type stagePayload struct {
	SceneID string `json:"scene_id"`
}

// QueueConfig bounds task delivery.
type QueueConfig struct {
	// MaxRetry is the redelivery cap per task. Attempt accounting lives in
	// the generation log, so this only needs to cover transient delivery
	// failures generously.
	MaxRetry int
	// TaskTimeout bounds one stage invocation end to end, polling included.
	TaskTimeout time.Duration
}

// DefaultQueueConfig returns delivery settings that outlast the longest
// provider polling budget.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxRetry:    10,
		TaskTimeout: 30 * time.Minute,
	}
}

// Queue enqueues stage invocations. Task IDs are derived from scene and
// stage, so duplicate triggers for the same stage collapse into one task
// while distinct stages chain freely.
type Queue struct {
	client *asynq.Client
	cfg    QueueConfig
}

// NewQueue creates a queue backed by Redis.
func NewQueue(redis asynq.RedisClientOpt, cfg QueueConfig) *Queue {
	return &Queue{
		client: asynq.NewClient(redis),
		cfg:    cfg,
	}
}

// EnqueueScene schedules one invocation for the scene at the given stage.
// A conflicting in-flight task for the same stage makes this a no-op.
func (q *Queue) EnqueueScene(ctx context.Context, sceneID string, status scene.Status) error {
	payload, err := json.Marshal(stagePayload{SceneID: sceneID})
	if err != nil {
		return fmt.Errorf("marshal stage payload: %w", err)
	}

	task := asynq.NewTask(TypeSceneStage, payload)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.TaskID(fmt.Sprintf("scene:%s:%s", sceneID, status)),
		asynq.Queue(queueName),
		asynq.MaxRetry(q.cfg.MaxRetry),
		asynq.Timeout(q.cfg.TaskTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Single-flight: the stage is already queued or running.
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue scene stage: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

// Worker consumes stage invocations and hands them to the orchestrator.
type Worker struct {
	srv    *asynq.Server
	orch   *Orchestrator
	logger *slog.Logger
}

// NewWorker creates a worker with the given concurrency.
func NewWorker(redis asynq.RedisClientOpt, orch *Orchestrator, concurrency int, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			d := time.Duration(1<<uint(n)) * 10 * time.Second
			if d > 10*time.Minute {
				d = 10 * time.Minute
			}
			return d
		},
	})
	return &Worker{srv: srv, orch: orch, logger: logger}
}

// Start begins consuming tasks. It does not block.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSceneStage, w.handleSceneStage)
	return w.srv.Start(mux)
}

// Shutdown waits for in-flight tasks and stops the worker.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

// handleSceneStage runs one stage. Only transient failures propagate to
// asynq for redelivery; everything fatal is already recorded durably.
func (w *Worker) handleSceneStage(ctx context.Context, t *asynq.Task) error {
	var p stagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal stage payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.orch.Run(ctx, p.SceneID); err != nil {
		if errors.Is(err, ErrRetryLater) {
			w.logger.Warn("stage invocation will be retried",
				slog.String("scene_id", p.SceneID),
				slog.String("error", err.Error()),
			)
			return err
		}
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}
