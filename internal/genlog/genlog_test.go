package genlog

import (
	"context"
	"testing"
)

func TestMemoryRecorder_Append(t *testing.T) {
	ctx := context.Background()
	rec := NewMemoryRecorder()

	err := rec.Append(ctx, Entry{
		SceneID:   "s1",
		ProjectID: "p1",
		Step:      "IMAGE_GENERATION",
		Level:     LevelInfo,
		Message:   "image stored",
		Provider:  "replicate",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := rec.BySceneID(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("expected entry to have an ID")
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("expected entry to have a timestamp")
	}
}

func TestMemoryRecorder_BySceneIDFilters(t *testing.T) {
	ctx := context.Background()
	rec := NewMemoryRecorder()

	_ = rec.Append(ctx, Entry{SceneID: "s1", Step: "IMAGE_GENERATION", Level: LevelInfo})
	_ = rec.Append(ctx, Entry{SceneID: "s2", Step: "IMAGE_GENERATION", Level: LevelInfo})
	_ = rec.Append(ctx, Entry{SceneID: "s1", Step: "VIDEO_GENERATION", Level: LevelError})

	entries, err := rec.BySceneID(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Step != "IMAGE_GENERATION" || entries[1].Step != "VIDEO_GENERATION" {
		t.Error("expected entries in append order")
	}
}

func TestMemoryRecorder_LastJobHandle(t *testing.T) {
	ctx := context.Background()
	rec := NewMemoryRecorder()

	if _, _, err := rec.LastJobHandle(ctx, "s1", "VIDEO_GENERATION"); err != ErrNoJobHandle {
		t.Fatalf("expected ErrNoJobHandle, got %v", err)
	}

	_ = rec.Append(ctx, Entry{SceneID: "s1", Step: "VIDEO_GENERATION", Level: LevelInfo, Provider: "kling", JobHandle: "job-1"})
	_ = rec.Append(ctx, Entry{SceneID: "s1", Step: "VIDEO_GENERATION", Level: LevelWarn, Provider: "kling", JobHandle: "job-2"})
	_ = rec.Append(ctx, Entry{SceneID: "s1", Step: "VIDEO_GENERATION", Level: LevelError, Message: "no handle here"})

	handle, provider, err := rec.LastJobHandle(ctx, "s1", "VIDEO_GENERATION")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle != "job-2" {
		t.Errorf("expected latest handle job-2, got %s", handle)
	}
	if provider != "kling" {
		t.Errorf("expected provider kling, got %s", provider)
	}
}
