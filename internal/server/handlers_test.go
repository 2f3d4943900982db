package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/scenereel-api/internal/artifact"
	"github.com/maauso/scenereel-api/internal/genlog"
	"github.com/maauso/scenereel-api/internal/pipeline"
	"github.com/maauso/scenereel-api/internal/scene"
)

// stubPipeline satisfies Pipeline without a real orchestrator.
type stubPipeline struct {
	repo       *scene.MemoryRepository
	cancelErr  error
	recoverErr error
	recovered  *scene.Scene
}

func (s *stubPipeline) Cancel(ctx context.Context, sceneID string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	sc, err := s.repo.FindScene(ctx, sceneID)
	if err != nil {
		return err
	}
	return s.repo.Transition(ctx, sc.ID, sc.Status, scene.StatusCancelled, scene.Update{})
}

func (s *stubPipeline) Recover(ctx context.Context, sceneID, resultURL string) (*scene.Scene, error) {
	if s.recoverErr != nil {
		return nil, s.recoverErr
	}
	if s.recovered != nil {
		return s.recovered, nil
	}
	return s.repo.FindScene(ctx, sceneID)
}

type recordingQueue struct {
	calls []string
	err   error
}

func (q *recordingQueue) EnqueueScene(_ context.Context, sceneID string, status scene.Status) error {
	if q.err != nil {
		return q.err
	}
	q.calls = append(q.calls, fmt.Sprintf("%s:%s", sceneID, status))
	return nil
}

type testEnv struct {
	repo   *scene.MemoryRepository
	rec    *genlog.MemoryRecorder
	store  *artifact.MemoryStore
	pipe   *stubPipeline
	queue  *recordingQueue
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := scene.NewMemoryRepository()
	env := &testEnv{
		repo:  repo,
		rec:   genlog.NewMemoryRecorder(),
		store: artifact.NewMemoryStore(),
		pipe:  &stubPipeline{repo: repo},
		queue: &recordingQueue{},
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHandlers(
		env.repo, env.rec, env.store, env.pipe, env.queue,
		ModelDefaults{Image: "default-image", Video: "default-video", Lipsync: "default-lipsync"},
		time.Hour,
		logger,
	)
	env.router = NewRouter(h, logger, DefaultConfig())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seedProject(t *testing.T) *scene.Project {
	t.Helper()
	p := &scene.Project{ID: "p1", Name: "launch video", CreatedAt: time.Now()}
	require.NoError(t, e.repo.CreateProject(context.Background(), p))
	return p
}

func (e *testEnv) seedScene(t *testing.T, projectID string, status scene.Status) *scene.Scene {
	t.Helper()
	sc := scene.New(projectID, 0)
	sc.Status = status
	sc.Script = "welcome to the demo"
	sc.Prompt = "sunlit studio"
	require.NoError(t, e.repo.CreateScene(context.Background(), sc))
	return sc
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/projects", CreateProjectRequest{Name: "launch video"})

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp ProjectResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "launch video", resp.Name)
}

func TestCreateProject_Validation(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/projects", CreateProjectRequest{})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}

func TestCreateProject_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "INVALID_JSON")
}

func TestDeleteProject_CleansArtifacts(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)

	key, err := env.store.Put(context.Background(), "projects/p1/final.mp4", strings.NewReader("x"), 1, "video/mp4")
	require.NoError(t, err)

	sc := scene.New(p.ID, 0)
	sc.Status = scene.StatusCompleted
	sc.FinalKey = key
	require.NoError(t, env.repo.CreateScene(context.Background(), sc))

	rr := env.do(t, http.MethodDelete, "/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	_, err = env.repo.FindProject(context.Background(), p.ID)
	assert.ErrorIs(t, err, scene.ErrProjectNotFound)
	_, err = env.repo.FindScene(context.Background(), sc.ID)
	assert.ErrorIs(t, err, scene.ErrSceneNotFound)
	assert.Equal(t, 0, env.store.Len())
}

func TestDeleteProject_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodDelete, "/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateAsset(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)

	rr := env.do(t, http.MethodPost, "/projects/"+p.ID+"/assets", CreateAssetRequest{
		Name:       "founder headshot",
		StorageKey: "uploads/headshot.png",
		VoiceID:    "voice-42",
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp AssetResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, p.ID, resp.ProjectID)
	assert.Equal(t, "voice-42", resp.VoiceID)
}

func TestCreateAsset_ProjectNotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/projects/missing/assets", CreateAssetRequest{
		Name:       "headshot",
		StorageKey: "uploads/headshot.png",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateScene(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)

	rr := env.do(t, http.MethodPost, "/projects/"+p.ID+"/scenes", CreateSceneRequest{
		Idx:    0,
		Script: "welcome to the demo",
		Prompt: "sunlit studio",
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp SceneResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(scene.StatusPending), resp.Status)
	// Configured defaults fill in unset models.
	assert.Equal(t, "default-image", mustFindScene(t, env, resp.ID).ImageModel)
}

func TestCreateScene_ModelOverride(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)

	rr := env.do(t, http.MethodPost, "/projects/"+p.ID+"/scenes", CreateSceneRequest{
		Script:     "hello",
		Prompt:     "street at dusk",
		VideoModel: "kling-v2",
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp SceneResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	got := mustFindScene(t, env, resp.ID)
	assert.Equal(t, "kling-v2", got.VideoModel)
	assert.Equal(t, "default-lipsync", got.LipsyncModel)
}

func TestCreateScene_UnknownHeadshotAsset(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)

	rr := env.do(t, http.MethodPost, "/projects/"+p.ID+"/scenes", CreateSceneRequest{
		Script:          "hello",
		Prompt:          "street at dusk",
		HeadshotAssetID: "missing",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "ASSET_NOT_FOUND")
}

func TestListScenes(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)
	env.seedScene(t, p.ID, scene.StatusPending)
	env.seedScene(t, p.ID, scene.StatusCompleted)

	rr := env.do(t, http.MethodGet, "/projects/"+p.ID+"/scenes", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []SceneResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestGetScene_IncludesLog(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)
	sc := env.seedScene(t, p.ID, scene.StatusVideoGeneration)
	require.NoError(t, env.rec.Append(context.Background(), genlog.Entry{
		SceneID: sc.ID, ProjectID: p.ID,
		Step: string(scene.StatusImageGeneration), Level: genlog.LevelInfo,
		Provider: "replicate", JobHandle: "job-1", Message: "job submitted",
	}))

	rr := env.do(t, http.MethodGet, "/scenes/"+sc.ID, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp SceneResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Log, 1)
	assert.Equal(t, "job-1", resp.Log[0].JobHandle)
}

func TestGetScene_CompletedSignsFinalURL(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)

	key, err := env.store.Put(context.Background(), "projects/p1/scenes/s1/final.mp4", strings.NewReader("v"), 1, "video/mp4")
	require.NoError(t, err)

	sc := scene.New(p.ID, 0)
	sc.Status = scene.StatusCompleted
	sc.FinalKey = key
	require.NoError(t, env.repo.CreateScene(context.Background(), sc))

	rr := env.do(t, http.MethodGet, "/scenes/"+sc.ID, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp SceneResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.FinalURL)
}

func TestGetScene_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/scenes/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGenerateScene(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)
	sc := env.seedScene(t, p.ID, scene.StatusPending)

	rr := env.do(t, http.MethodPost, "/scenes/"+sc.ID+"/generate", nil)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, env.queue.calls, 1)
	assert.Equal(t, sc.ID+":PENDING", env.queue.calls[0])
}

func TestGenerateScene_TerminalConflict(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)
	sc := env.seedScene(t, p.ID, scene.StatusCompleted)

	rr := env.do(t, http.MethodPost, "/scenes/"+sc.ID+"/generate", nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, env.queue.calls)
}

func TestCancelScene(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)
	sc := env.seedScene(t, p.ID, scene.StatusImageGeneration)

	rr := env.do(t, http.MethodPost, "/scenes/"+sc.ID+"/cancel", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	got := mustFindScene(t, env, sc.ID)
	assert.Equal(t, scene.StatusCancelled, got.Status)
}

func TestRecoverScene_NothingToRecover(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)
	sc := env.seedScene(t, p.ID, scene.StatusPending)
	env.pipe.recoverErr = fmt.Errorf("wrap: %w", pipeline.ErrNothingToRecover)

	rr := env.do(t, http.MethodPost, "/scenes/"+sc.ID+"/recover", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "NOTHING_TO_RECOVER")
}

func TestRecoverScene_WithResultURL(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)
	sc := env.seedScene(t, p.ID, scene.StatusVideoGeneration)
	env.pipe.recovered = sc

	rr := env.do(t, http.MethodPost, "/scenes/"+sc.ID+"/recover", RecoverRequest{
		ResultURL: "https://cdn.example.com/result.mp4",
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecoverScene_InvalidResultURL(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProject(t)
	sc := env.seedScene(t, p.ID, scene.StatusVideoGeneration)

	rr := env.do(t, http.MethodPost, "/scenes/"+sc.ID+"/recover", RecoverRequest{
		ResultURL: "not a url",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func mustFindScene(t *testing.T, env *testEnv, id string) *scene.Scene {
	t.Helper()
	sc, err := env.repo.FindScene(context.Background(), id)
	require.NoError(t, err)
	return sc
}
