package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/maauso/scenereel-api/internal/artifact"
	"github.com/maauso/scenereel-api/internal/genlog"
	"github.com/maauso/scenereel-api/internal/pipeline"
	"github.com/maauso/scenereel-api/internal/scene"
)

// Pipeline is the orchestrator surface the handlers need.
type Pipeline interface {
	Cancel(ctx context.Context, sceneID string) error
	Recover(ctx context.Context, sceneID, resultURL string) (*scene.Scene, error)
}

// ModelDefaults are the configured provider models applied to scenes that do
// not override them.
type ModelDefaults struct {
	Image   string
	Video   string
	Lipsync string
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	repo      scene.Repository
	recorder  genlog.Recorder
	store     artifact.Store
	pipeline  Pipeline
	queue     pipeline.Enqueuer
	defaults  ModelDefaults
	signTTL   time.Duration
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	repo scene.Repository,
	recorder genlog.Recorder,
	store artifact.Store,
	pipe Pipeline,
	queue pipeline.Enqueuer,
	defaults ModelDefaults,
	signTTL time.Duration,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if signTTL <= 0 {
		signTTL = time.Hour
	}
	return &Handlers{
		repo:      repo,
		recorder:  recorder,
		store:     store,
		pipeline:  pipe,
		queue:     queue,
		defaults:  defaults,
		signTTL:   signTTL,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateProject handles POST /projects requests.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := &scene.Project{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedAt: time.Now(),
	}
	if err := h.repo.CreateProject(r.Context(), p); err != nil {
		h.logger.Error("failed to create project",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create project", "PROJECT_CREATION_FAILED")
		return
	}

	h.logger.Info("project created", slog.String("project_id", p.ID))
	writeJSON(w, http.StatusCreated, ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
	})
}

// DeleteProject handles DELETE /projects/{id} requests. The project, its
// scenes and assets are removed along with their stored artifacts.
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	keys, err := h.repo.DeleteProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, scene.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found", "PROJECT_NOT_FOUND")
			return
		}
		h.logger.Error("failed to delete project",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete project", "PROJECT_DELETION_FAILED")
		return
	}

	for _, key := range keys {
		if err := h.store.Delete(r.Context(), key); err != nil {
			// Row deletion already committed; report and keep going.
			h.logger.Warn("failed to delete artifact",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	h.logger.Info("project deleted",
		slog.String("project_id", projectID),
		slog.Int("artifacts", len(keys)),
	)
	w.WriteHeader(http.StatusNoContent)
}

// CreateAsset handles POST /projects/{id}/assets requests.
func (h *Handlers) CreateAsset(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req CreateAssetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.repo.FindProject(r.Context(), projectID); err != nil {
		if errors.Is(err, scene.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found", "PROJECT_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load project", "PROJECT_FETCH_FAILED")
		return
	}

	a := &scene.Asset{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Name:       req.Name,
		StorageKey: req.StorageKey,
		VoiceID:    req.VoiceID,
		CreatedAt:  time.Now(),
	}
	if err := h.repo.CreateAsset(r.Context(), a); err != nil {
		h.logger.Error("failed to create asset",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create asset", "ASSET_CREATION_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, AssetResponse{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		Name:       a.Name,
		StorageKey: a.StorageKey,
		VoiceID:    a.VoiceID,
	})
}

// CreateScene handles POST /projects/{id}/scenes requests.
func (h *Handlers) CreateScene(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req CreateSceneRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.repo.FindProject(r.Context(), projectID); err != nil {
		if errors.Is(err, scene.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found", "PROJECT_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load project", "PROJECT_FETCH_FAILED")
		return
	}

	if req.HeadshotAssetID != "" {
		if _, err := h.repo.FindAsset(r.Context(), req.HeadshotAssetID); err != nil {
			if errors.Is(err, scene.ErrAssetNotFound) {
				writeError(w, http.StatusBadRequest, "headshot asset not found", "ASSET_NOT_FOUND")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load asset", "ASSET_FETCH_FAILED")
			return
		}
	}

	sc := scene.New(projectID, req.Idx)
	sc.Script = req.Script
	sc.Prompt = req.Prompt
	sc.HeadshotAssetID = req.HeadshotAssetID
	sc.VoiceID = req.VoiceID
	sc.ImageModel = firstNonEmpty(req.ImageModel, h.defaults.Image)
	sc.VideoModel = firstNonEmpty(req.VideoModel, h.defaults.Video)
	sc.LipsyncModel = firstNonEmpty(req.LipsyncModel, h.defaults.Lipsync)

	if err := h.repo.CreateScene(r.Context(), sc); err != nil {
		h.logger.Error("failed to create scene",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create scene", "SCENE_CREATION_FAILED")
		return
	}

	h.logger.Info("scene created",
		slog.String("project_id", projectID),
		slog.String("scene_id", sc.ID),
	)
	writeJSON(w, http.StatusCreated, h.sceneResponse(r.Context(), sc, false))
}

// ListScenes handles GET /projects/{id}/scenes requests.
func (h *Handlers) ListScenes(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	if _, err := h.repo.FindProject(r.Context(), projectID); err != nil {
		if errors.Is(err, scene.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found", "PROJECT_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load project", "PROJECT_FETCH_FAILED")
		return
	}

	scenes, err := h.repo.ListScenes(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list scenes", "SCENE_LIST_FAILED")
		return
	}

	resp := make([]SceneResponse, 0, len(scenes))
	for _, sc := range scenes {
		resp = append(resp, h.sceneResponse(r.Context(), sc, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetScene handles GET /scenes/{id} requests, returning the scene with its
// generation log.
func (h *Handlers) GetScene(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.findScene(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.sceneResponse(r.Context(), sc, true))
}

// GenerateScene handles POST /scenes/{id}/generate requests. It enqueues the
// scene's current stage; duplicate triggers while a stage is in flight
// collapse into the running task.
func (h *Handlers) GenerateScene(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.findScene(w, r)
	if !ok {
		return
	}
	if sc.Status.IsTerminal() {
		writeError(w, http.StatusConflict, "scene is in a terminal status", "SCENE_TERMINAL")
		return
	}

	if err := h.queue.EnqueueScene(r.Context(), sc.ID, sc.Status); err != nil {
		h.logger.Error("failed to enqueue scene",
			slog.String("scene_id", sc.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to trigger generation", "ENQUEUE_FAILED")
		return
	}

	h.logger.Info("generation triggered",
		slog.String("scene_id", sc.ID),
		slog.String("status", string(sc.Status)),
	)
	writeJSON(w, http.StatusAccepted, GenerateResponse{
		ID:     sc.ID,
		Status: string(sc.Status),
	})
}

// CancelScene handles POST /scenes/{id}/cancel requests.
func (h *Handlers) CancelScene(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.findScene(w, r)
	if !ok {
		return
	}

	if err := h.pipeline.Cancel(r.Context(), sc.ID); err != nil {
		if errors.Is(err, scene.ErrStaleStatus) {
			writeError(w, http.StatusConflict, "scene changed concurrently, retry", "CONCURRENT_UPDATE")
			return
		}
		writeError(w, http.StatusConflict, err.Error(), "CANCEL_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		ID:     sc.ID,
		Status: string(scene.StatusCancelled),
	})
}

// RecoverScene handles POST /scenes/{id}/recover requests, the administrative
// recovery action for scenes whose provider job finished but whose result was
// never committed.
func (h *Handlers) RecoverScene(w http.ResponseWriter, r *http.Request) {
	sceneID := r.PathValue("id")

	var req RecoverRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}

	sc, err := h.pipeline.Recover(r.Context(), sceneID, req.ResultURL)
	if err != nil {
		switch {
		case errors.Is(err, scene.ErrSceneNotFound):
			writeError(w, http.StatusNotFound, "scene not found", "SCENE_NOT_FOUND")
		case errors.Is(err, pipeline.ErrNothingToRecover):
			writeError(w, http.StatusConflict, err.Error(), "NOTHING_TO_RECOVER")
		case errors.Is(err, pipeline.ErrJobNotFinished):
			writeError(w, http.StatusConflict, err.Error(), "JOB_NOT_FINISHED")
		default:
			h.logger.Error("recovery failed",
				slog.String("scene_id", sceneID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "recovery failed", "RECOVERY_FAILED")
		}
		return
	}

	h.logger.Info("scene recovered",
		slog.String("scene_id", sc.ID),
		slog.String("status", string(sc.Status)),
	)
	writeJSON(w, http.StatusOK, h.sceneResponse(r.Context(), sc, true))
}

// findScene loads the scene from the path id, writing the error response on
// failure.
func (h *Handlers) findScene(w http.ResponseWriter, r *http.Request) (*scene.Scene, bool) {
	sceneID := r.PathValue("id")

	sc, err := h.repo.FindScene(r.Context(), sceneID)
	if err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			writeError(w, http.StatusNotFound, "scene not found", "SCENE_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get scene",
			slog.String("scene_id", sceneID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get scene", "SCENE_FETCH_FAILED")
		return nil, false
	}
	return sc, true
}

// sceneResponse builds the response DTO, optionally including the generation
// log and a signed download URL for completed scenes.
func (h *Handlers) sceneResponse(ctx context.Context, sc *scene.Scene, includeLog bool) SceneResponse {
	resp := SceneResponse{
		ID:              sc.ID,
		ProjectID:       sc.ProjectID,
		Idx:             sc.Idx,
		Status:          string(sc.Status),
		Script:          sc.Script,
		Prompt:          sc.Prompt,
		HeadshotAssetID: sc.HeadshotAssetID,
		VoiceID:         sc.VoiceID,
		ImageKey:        sc.ImageKey,
		VideoKey:        sc.VideoKey,
		LipsyncKey:      sc.LipsyncKey,
		FinalKey:        sc.FinalKey,
		Error:           sc.Error,
		CreatedAt:       sc.CreatedAt,
		UpdatedAt:       sc.UpdatedAt,
	}

	if sc.Status == scene.StatusCompleted && sc.FinalKey != "" {
		url, err := h.store.SignedGet(ctx, sc.FinalKey, h.signTTL)
		if err != nil {
			// Omit the URL rather than failing the whole read.
			h.logger.Warn("failed to sign final video URL",
				slog.String("scene_id", sc.ID),
				slog.String("error", err.Error()),
			)
		} else {
			resp.FinalURL = url
		}
	}

	if includeLog {
		entries, err := h.recorder.BySceneID(ctx, sc.ID)
		if err != nil {
			h.logger.Warn("failed to read generation log",
				slog.String("scene_id", sc.ID),
				slog.String("error", err.Error()),
			)
		}
		for _, e := range entries {
			resp.Log = append(resp.Log, LogEntryResponse{
				Step:      e.Step,
				Level:     string(e.Level),
				Message:   e.Message,
				Provider:  e.Provider,
				JobHandle: e.JobHandle,
				Manual:    e.Manual,
				CreatedAt: e.CreatedAt,
			})
		}
	}
	return resp
}

// decode reads and validates a JSON request body.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
