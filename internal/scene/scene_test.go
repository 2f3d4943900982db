package scene

import (
	"context"
	"testing"
)

func TestNew(t *testing.T) {
	s := New("project-1", 3)

	if s.ID == "" {
		t.Error("expected scene to have an ID")
	}
	if s.ProjectID != "project-1" {
		t.Errorf("expected project id project-1, got %s", s.ProjectID)
	}
	if s.Idx != 3 {
		t.Errorf("expected idx 3, got %d", s.Idx)
	}
	if s.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, s.Status)
	}
	if s.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		// Forward pipeline order
		{"PENDING to IMAGE_GENERATION", StatusPending, StatusImageGeneration, true},
		{"IMAGE_GENERATION to VIDEO_GENERATION", StatusImageGeneration, StatusVideoGeneration, true},
		{"VIDEO_GENERATION to LIPSYNC_APPLICATION", StatusVideoGeneration, StatusLipsyncApplication, true},
		{"LIPSYNC_APPLICATION to COMPLETED", StatusLipsyncApplication, StatusCompleted, true},
		// FAILED reachable from every non-terminal status
		{"PENDING to FAILED", StatusPending, StatusFailed, true},
		{"IMAGE_GENERATION to FAILED", StatusImageGeneration, StatusFailed, true},
		{"VIDEO_GENERATION to FAILED", StatusVideoGeneration, StatusFailed, true},
		{"LIPSYNC_APPLICATION to FAILED", StatusLipsyncApplication, StatusFailed, true},
		// CANCELLED reachable from every non-terminal status
		{"PENDING to CANCELLED", StatusPending, StatusCancelled, true},
		{"VIDEO_GENERATION to CANCELLED", StatusVideoGeneration, StatusCancelled, true},
		// No skipping stages
		{"PENDING to VIDEO_GENERATION", StatusPending, StatusVideoGeneration, false},
		{"PENDING to COMPLETED", StatusPending, StatusCompleted, false},
		{"IMAGE_GENERATION to LIPSYNC_APPLICATION", StatusImageGeneration, StatusLipsyncApplication, false},
		{"IMAGE_GENERATION to COMPLETED", StatusImageGeneration, StatusCompleted, false},
		// No backward movement
		{"VIDEO_GENERATION to IMAGE_GENERATION", StatusVideoGeneration, StatusImageGeneration, false},
		{"COMPLETED to LIPSYNC_APPLICATION", StatusCompleted, StatusLipsyncApplication, false},
		// Terminal states stay terminal
		{"COMPLETED to FAILED", StatusCompleted, StatusFailed, false},
		{"FAILED to PENDING", StatusFailed, StatusPending, false},
		{"FAILED to COMPLETED", StatusFailed, StatusCompleted, false},
		{"CANCELLED to IMAGE_GENERATION", StatusCancelled, StatusImageGeneration, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatus_Next(t *testing.T) {
	tests := []struct {
		status Status
		next   Status
		ok     bool
	}{
		{StatusPending, StatusImageGeneration, true},
		{StatusImageGeneration, StatusVideoGeneration, true},
		{StatusVideoGeneration, StatusLipsyncApplication, true},
		{StatusLipsyncApplication, StatusCompleted, true},
		{StatusCompleted, "", false},
		{StatusFailed, "", false},
		{StatusCancelled, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			next, ok := tt.status.Next()
			if ok != tt.ok || next != tt.next {
				t.Errorf("Status(%s).Next() = (%s, %v), want (%s, %v)", tt.status, next, ok, tt.next, tt.ok)
			}
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusImageGeneration, false},
		{StatusVideoGeneration, false},
		{StatusLipsyncApplication, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestMemoryRepository_Transition(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	s := New("p1", 0)
	if err := repo.CreateScene(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := repo.Transition(ctx, s.ID, StatusPending, StatusImageGeneration, Update{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.FindScene(ctx, s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusImageGeneration {
		t.Errorf("expected status %s, got %s", StatusImageGeneration, got.Status)
	}
}

func TestMemoryRepository_TransitionStale(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	s := New("p1", 0)
	s.Status = StatusVideoGeneration
	if err := repo.CreateScene(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A late write guarded on an older status must not apply.
	err := repo.Transition(ctx, s.ID, StatusImageGeneration, StatusVideoGeneration, Update{ImageKey: "stale.png"})
	if err != ErrStaleStatus {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}

	got, _ := repo.FindScene(ctx, s.ID)
	if got.ImageKey != "" {
		t.Errorf("expected no media ref written on stale transition, got %q", got.ImageKey)
	}
}

func TestMemoryRepository_TransitionInvalid(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	s := New("p1", 0)
	if err := repo.CreateScene(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := repo.Transition(ctx, s.ID, StatusPending, StatusCompleted, Update{})
	if err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMemoryRepository_DeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	p := &Project{ID: "p1", Name: "demo"}
	if err := repo.CreateProject(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := New("p1", 0)
	s.ImageKey = "projects/p1/scenes/s1/image.png"
	s.VideoKey = "projects/p1/scenes/s1/video.mp4"
	_ = repo.CreateScene(ctx, s)
	_ = repo.CreateAsset(ctx, &Asset{ID: "a1", ProjectID: "p1", StorageKey: "projects/p1/assets/a1.png"})

	keys, err := repo.DeleteProject(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("expected 3 orphaned keys, got %d: %v", len(keys), keys)
	}

	if _, err := repo.FindScene(ctx, s.ID); err != ErrSceneNotFound {
		t.Errorf("expected scene to be deleted, got %v", err)
	}
	if _, err := repo.FindAsset(ctx, "a1"); err != ErrAssetNotFound {
		t.Errorf("expected asset to be deleted, got %v", err)
	}
}
