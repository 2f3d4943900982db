package genlog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Compile-time check that GormRecorder implements Recorder.
var _ Recorder = (*GormRecorder)(nil)

// GormRecorder is the MySQL-backed implementation of Recorder.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder migrates the log table and returns a recorder.
func NewGormRecorder(db *gorm.DB) (*GormRecorder, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("genlog: migrate: %w", err)
	}
	return &GormRecorder{db: db}, nil
}

// Append inserts one entry.
func (r *GormRecorder) Append(ctx context.Context, e Entry) error {
	e = NewEntry(e)
	return r.db.WithContext(ctx).Create(&e).Error
}

// BySceneID returns entries for a scene in append order.
func (r *GormRecorder) BySceneID(ctx context.Context, sceneID string) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("scene_id = ?", sceneID).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LastJobHandle returns the most recent recorded handle for a scene and step.
func (r *GormRecorder) LastJobHandle(ctx context.Context, sceneID, step string) (string, string, error) {
	var e Entry
	err := r.db.WithContext(ctx).
		Where("scene_id = ? AND step = ? AND job_handle <> ''", sceneID, step).
		Order("created_at desc").
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrNoJobHandle
		}
		return "", "", err
	}
	return e.JobHandle, e.Provider, nil
}
