package genlog

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRecorder implements Recorder.
var _ Recorder = (*MemoryRecorder)(nil)

// MemoryRecorder is an in-memory implementation of Recorder for tests and
// local development.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Append stores one entry.
func (r *MemoryRecorder) Append(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, NewEntry(e))
	return nil
}

// BySceneID returns entries for a scene in append order.
func (r *MemoryRecorder) BySceneID(_ context.Context, sceneID string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.SceneID == sceneID {
			out = append(out, e)
		}
	}
	return out, nil
}

// LastJobHandle returns the most recent recorded handle for a scene and step.
func (r *MemoryRecorder) LastJobHandle(_ context.Context, sceneID, step string) (string, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.SceneID == sceneID && e.Step == step && e.JobHandle != "" {
			return e.JobHandle, e.Provider, nil
		}
	}
	return "", "", ErrNoJobHandle
}

// All returns every entry; test helper.
func (r *MemoryRecorder) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
