package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maauso/scenereel-api/internal/artifact"
	"github.com/maauso/scenereel-api/internal/provider"
)

// relocate streams the provider's result from its temporary URL into the
// artifact store. Provider URLs expire; only the store copy is durable.
// Failures are transient: the remote job stays fetchable and the next
// attempt downloads again under a fresh key.
func (o *Orchestrator) relocate(ctx context.Context, mediaURL, key, ext string) (string, error) {
	if mediaURL == "" {
		return "", fmt.Errorf("%w: provider returned no media URL", provider.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build download request: %w", provider.ErrInvalidInput, err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", provider.Transient(fmt.Errorf("download result: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// An expired or revoked result URL is not retryable as-is; recovery
		// refetches the job to obtain a fresh one.
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			return "", fmt.Errorf("%w: result URL returned status %d", provider.ErrRejected, resp.StatusCode)
		}
		return "", provider.Transient(fmt.Errorf("download result: status %d", resp.StatusCode))
	}

	stored, err := o.store.Put(ctx, key, resp.Body, resp.ContentLength, artifact.ContentTypeFor(ext))
	if err != nil {
		return "", fmt.Errorf("%w: %w", artifact.ErrStorage, err)
	}
	return stored, nil
}
