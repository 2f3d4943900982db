// Package bootstrap provides dependency initialization for the SceneReel API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/maauso/scenereel-api/internal/artifact"
	"github.com/maauso/scenereel-api/internal/config"
	"github.com/maauso/scenereel-api/internal/genlog"
	"github.com/maauso/scenereel-api/internal/kling"
	"github.com/maauso/scenereel-api/internal/pipeline"
	"github.com/maauso/scenereel-api/internal/provider"
	"github.com/maauso/scenereel-api/internal/replicate"
	"github.com/maauso/scenereel-api/internal/scene"
	"github.com/maauso/scenereel-api/internal/server"
	"github.com/maauso/scenereel-api/internal/synclabs"
)

// Dependencies holds all initialized dependencies for the application.
type Dependencies struct {
	Repository   scene.Repository
	Recorder     genlog.Recorder
	Store        artifact.Store
	Orchestrator *pipeline.Orchestrator
	Queue        *pipeline.Queue
	Worker       *pipeline.Worker
	Handlers     *server.Handlers
}

// NewDependencies creates and wires all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	db, err := scene.OpenDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repo := scene.NewGormRepository(db)

	recorder, err := genlog.NewGormRecorder(db)
	if err != nil {
		return nil, fmt.Errorf("create generation log recorder: %w", err)
	}

	store, err := artifact.NewS3Store(ctx, artifact.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact store: %w", err)
	}
	logger.Info("artifact store configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)

	images, videos, lipsync, err := newProviders(cfg)
	if err != nil {
		return nil, err
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	queue := pipeline.NewQueue(redisOpt, pipeline.DefaultQueueConfig())

	orch := pipeline.NewOrchestrator(
		repo, recorder, store,
		images, videos, lipsync,
		queue, logger,
		pipeline.WithPolicy(pipeline.Policy{
			MaxAttempts:   cfg.MaxAttempts,
			RetryRejected: cfg.RetryRejected,
			Await: provider.AwaitOptions{
				Interval:    cfg.PollInterval,
				MaxInterval: cfg.PollMaxInterval,
				MaxWait:     cfg.PollMaxWait,
			},
			SignedURLTTL: cfg.SignedURLTTL,
		}),
	)

	worker := pipeline.NewWorker(redisOpt, orch, cfg.WorkerConcurrency, logger)

	handlers := server.NewHandlers(
		repo, recorder, store, orch, queue,
		server.ModelDefaults{
			Image:   cfg.ImageModel,
			Video:   cfg.VideoModel,
			Lipsync: cfg.LipsyncModel,
		},
		cfg.SignedURLTTL,
		logger,
	)

	return &Dependencies{
		Repository:   repo,
		Recorder:     recorder,
		Store:        store,
		Orchestrator: orch,
		Queue:        queue,
		Worker:       worker,
		Handlers:     handlers,
	}, nil
}

// newProviders builds the three capability adapters from configuration.
// Clients fall back to their own env vars when the config keys are empty.
func newProviders(cfg *config.Config) (provider.ImageSynthesizer, provider.VideoSynthesizer, provider.LipSyncer, error) {
	var replicateOpts []replicate.ClientOption
	if cfg.ReplicateAPIToken != "" {
		replicateOpts = append(replicateOpts, replicate.WithAPIToken(cfg.ReplicateAPIToken))
	}
	replicateClient, err := replicate.NewClient(replicateOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create replicate client: %w", err)
	}

	var klingOpts []kling.ClientOption
	if cfg.KlingAPIKey != "" {
		klingOpts = append(klingOpts, kling.WithAPIKey(cfg.KlingAPIKey))
	}
	klingClient, err := kling.NewClient(klingOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kling client: %w", err)
	}

	var syncOpts []synclabs.ClientOption
	if cfg.SyncLabsAPIKey != "" {
		syncOpts = append(syncOpts, synclabs.WithAPIKey(cfg.SyncLabsAPIKey))
	}
	syncClient, err := synclabs.NewClient(syncOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create synclabs client: %w", err)
	}

	return provider.NewReplicateAdapter(replicateClient),
		provider.NewKlingAdapter(klingClient),
		provider.NewSyncLabsAdapter(syncClient),
		nil
}
