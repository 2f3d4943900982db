package scene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Compile-time check that GormRepository implements Repository.
var _ Repository = (*GormRepository)(nil)

// GormRepository is the MySQL-backed implementation of Repository.
type GormRepository struct {
	db *gorm.DB
}

// OpenDB opens a MySQL connection and migrates the scene tables.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("scene: open database: %w", err)
	}
	if err := db.AutoMigrate(&Project{}, &Scene{}, &Asset{}); err != nil {
		return nil, fmt.Errorf("scene: migrate: %w", err)
	}
	return db, nil
}

// NewGormRepository creates a repository on an open gorm handle.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// CreateProject persists a new project.
func (r *GormRepository) CreateProject(ctx context.Context, p *Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindProject retrieves a project by id.
func (r *GormRepository) FindProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// DeleteProject deletes the project with its scenes and assets in one
// transaction and returns the storage keys of the orphaned artifacts.
func (r *GormRepository) DeleteProject(ctx context.Context, id string) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Project{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrProjectNotFound
		}

		var scenes []Scene
		if err := tx.Find(&scenes, "project_id = ?", id).Error; err != nil {
			return err
		}
		for _, s := range scenes {
			for _, k := range []string{s.ImageKey, s.VideoKey, s.LipsyncKey, s.FinalKey} {
				if k != "" {
					keys = append(keys, k)
				}
			}
		}
		var assets []Asset
		if err := tx.Find(&assets, "project_id = ?", id).Error; err != nil {
			return err
		}
		for _, a := range assets {
			if a.StorageKey != "" {
				keys = append(keys, a.StorageKey)
			}
		}

		if err := tx.Delete(&Scene{}, "project_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&Asset{}, "project_id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateScene persists a new scene.
func (r *GormRepository) CreateScene(ctx context.Context, s *Scene) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// FindScene retrieves a scene by id.
func (r *GormRepository) FindScene(ctx context.Context, id string) (*Scene, error) {
	var s Scene
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSceneNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListScenes returns the scenes of a project in ordering-index order.
func (r *GormRepository) ListScenes(ctx context.Context, projectID string) ([]*Scene, error) {
	var scenes []*Scene
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("idx asc").
		Find(&scenes).Error
	if err != nil {
		return nil, err
	}
	return scenes, nil
}

// Transition applies a guarded status change in a single UPDATE.
// The WHERE clause carries the expected current status; zero affected rows
// means the scene moved underneath us (or does not exist) and nothing changed.
func (r *GormRepository) Transition(ctx context.Context, id string, from, to Status, upd Update) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return r.guardedUpdate(ctx, id, from, to, upd)
}

// Override applies a guarded status change without the legality check.
func (r *GormRepository) Override(ctx context.Context, id string, from, to Status, upd Update) error {
	return r.guardedUpdate(ctx, id, from, to, upd)
}

func (r *GormRepository) guardedUpdate(ctx context.Context, id string, from, to Status, upd Update) error {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if upd.ImageKey != "" {
		values["image_key"] = upd.ImageKey
	}
	if upd.VideoKey != "" {
		values["video_key"] = upd.VideoKey
	}
	if upd.LipsyncKey != "" {
		values["lipsync_key"] = upd.LipsyncKey
	}
	if upd.FinalKey != "" {
		values["final_key"] = upd.FinalKey
	}
	if upd.Error != "" {
		values["error"] = upd.Error
	}

	res := r.db.WithContext(ctx).
		Model(&Scene{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindScene(ctx, id); err != nil {
			return err
		}
		return ErrStaleStatus
	}
	return nil
}

// CreateAsset persists a new asset.
func (r *GormRepository) CreateAsset(ctx context.Context, a *Asset) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// FindAsset retrieves an asset by id.
func (r *GormRepository) FindAsset(ctx context.Context, id string) (*Asset, error) {
	var a Asset
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &a, nil
}
