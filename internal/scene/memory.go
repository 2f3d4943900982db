package scene

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It honors the same guarded-transition semantics as the MySQL repository
// and is used by tests and local development.
type MemoryRepository struct {
	mu       sync.RWMutex
	projects map[string]*Project
	scenes   map[string]*Scene
	assets   map[string]*Asset
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[string]*Project),
		scenes:   make(map[string]*Scene),
		assets:   make(map[string]*Asset),
	}
}

// CreateProject stores a copy of the project.
func (r *MemoryRepository) CreateProject(_ context.Context, p *Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

// FindProject retrieves a project by id.
func (r *MemoryRepository) FindProject(_ context.Context, id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

// DeleteProject removes the project, its scenes and assets, returning the
// storage keys of orphaned artifacts.
func (r *MemoryRepository) DeleteProject(_ context.Context, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return nil, ErrProjectNotFound
	}
	delete(r.projects, id)

	var keys []string
	for sid, s := range r.scenes {
		if s.ProjectID != id {
			continue
		}
		for _, k := range []string{s.ImageKey, s.VideoKey, s.LipsyncKey, s.FinalKey} {
			if k != "" {
				keys = append(keys, k)
			}
		}
		delete(r.scenes, sid)
	}
	for aid, a := range r.assets {
		if a.ProjectID != id {
			continue
		}
		if a.StorageKey != "" {
			keys = append(keys, a.StorageKey)
		}
		delete(r.assets, aid)
	}
	return keys, nil
}

// CreateScene stores a copy of the scene.
func (r *MemoryRepository) CreateScene(_ context.Context, s *Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.scenes[s.ID] = &cp
	return nil
}

// FindScene retrieves a scene by id.
func (r *MemoryRepository) FindScene(_ context.Context, id string) (*Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scenes[id]
	if !ok {
		return nil, ErrSceneNotFound
	}
	cp := *s
	return &cp, nil
}

// ListScenes returns the scenes of a project ordered by Idx.
func (r *MemoryRepository) ListScenes(_ context.Context, projectID string) ([]*Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Scene
	for _, s := range r.scenes {
		if s.ProjectID == projectID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Idx < out[j].Idx })
	return out, nil
}

// Transition applies a guarded status change under the repository lock.
func (r *MemoryRepository) Transition(ctx context.Context, id string, from, to Status, upd Update) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return r.Override(ctx, id, from, to, upd)
}

// Override applies a guarded status change without the legality check.
func (r *MemoryRepository) Override(_ context.Context, id string, from, to Status, upd Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scenes[id]
	if !ok {
		return ErrSceneNotFound
	}
	if s.Status != from {
		return ErrStaleStatus
	}

	s.Status = to
	if upd.ImageKey != "" {
		s.ImageKey = upd.ImageKey
	}
	if upd.VideoKey != "" {
		s.VideoKey = upd.VideoKey
	}
	if upd.LipsyncKey != "" {
		s.LipsyncKey = upd.LipsyncKey
	}
	if upd.FinalKey != "" {
		s.FinalKey = upd.FinalKey
	}
	if upd.Error != "" {
		s.Error = upd.Error
	}
	s.UpdatedAt = time.Now()
	return nil
}

// CreateAsset stores a copy of the asset.
func (r *MemoryRepository) CreateAsset(_ context.Context, a *Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.assets[a.ID] = &cp
	return nil
}

// FindAsset retrieves an asset by id.
func (r *MemoryRepository) FindAsset(_ context.Context, id string) (*Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}
