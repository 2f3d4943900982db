package scene

import (
	"context"
	"errors"
)

// Static errors for scene persistence.
var (
	// ErrSceneNotFound is returned when a scene cannot be found by id.
	ErrSceneNotFound = errors.New("scene: not found")
	// ErrProjectNotFound is returned when a project cannot be found by id.
	ErrProjectNotFound = errors.New("scene: project not found")
	// ErrAssetNotFound is returned when an asset cannot be found by id.
	ErrAssetNotFound = errors.New("scene: asset not found")
	// ErrStaleStatus is returned when a guarded update loses its status check,
	// which means another run advanced, failed or cancelled the scene first.
	ErrStaleStatus = errors.New("scene: status changed concurrently")
)

// Update carries the fields a guarded transition writes alongside the new status.
// Only non-empty fields are applied.
type Update struct {
	ImageKey   string
	VideoKey   string
	LipsyncKey string
	FinalKey   string
	Error      string
}

// Repository is the persistence port for projects, scenes and assets.
//
// Transition is the single checkpoint primitive of the pipeline: it applies the
// status change and the media references in one atomic write, guarded by the
// expected current status. A write that finds a different status returns
// ErrStaleStatus and changes nothing, so a late result can never overwrite a
// more advanced or already-failed scene.
type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	FindProject(ctx context.Context, id string) (*Project, error)
	// DeleteProject removes the project and cascades to its scenes and assets.
	// It returns the storage keys of all artifacts that belonged to the project
	// so the caller can delete them from object storage.
	DeleteProject(ctx context.Context, id string) ([]string, error)

	CreateScene(ctx context.Context, s *Scene) error
	FindScene(ctx context.Context, id string) (*Scene, error)
	ListScenes(ctx context.Context, projectID string) ([]*Scene, error)
	Transition(ctx context.Context, id string, from, to Status, upd Update) error
	// Override applies a guarded status change without checking state machine
	// legality. It exists for administrative recovery, which may move a FAILED
	// scene back into a stage or straight to COMPLETED. The concurrency guard
	// still applies.
	Override(ctx context.Context, id string, from, to Status, upd Update) error

	CreateAsset(ctx context.Context, a *Asset) error
	FindAsset(ctx context.Context, id string) (*Asset, error)
}
