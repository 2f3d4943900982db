// Package artifact provides the object storage port for generated media.
// It defines the Store interface and implementations for S3-compatible
// backends and in-memory testing.
package artifact

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// Static errors for artifact storage operations.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("artifact: not found")
	// ErrStorage wraps backend failures so callers can classify them as
	// retryable without inspecting backend-specific error types.
	ErrStorage = errors.New("artifact: storage failure")
)

// Store is the object storage port.
// Put streams the payload; implementations must not buffer the whole object
// in memory, since stage outputs can run to gigabytes.
type Store interface {
	// Put writes the payload under key and returns the committed key.
	// Pass size -1 when the length is unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)

	// SignedGet returns a time-limited read URL for key.
	// Returns ErrNotFound if the key does not exist.
	SignedGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// BuildKey returns a collision-free storage key for a stage artifact.
// Keys are namespaced by project and scene, with a timestamp plus random
// suffix so recovery attempts never collide with earlier writes.
// Format: projects/<pid>/scenes/<sid>/<stage>-<unixts>-<rand>.<ext>
func BuildKey(projectID, sceneID, stage, ext string) string {
	suffix := randomSuffix()
	return fmt.Sprintf("projects/%s/scenes/%s/%s-%d-%s.%s",
		projectID, sceneID, stage, time.Now().Unix(), suffix, ext)
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}

// ContentTypeFor maps a file extension to its MIME content type.
func ContentTypeFor(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "mp4":
		return "video/mp4"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
