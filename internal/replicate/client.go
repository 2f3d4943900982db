package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Static errors for Replicate client operations.
var (
	// ErrAPITokenNotSet is returned when no API token is provided.
	ErrAPITokenNotSet = errors.New("replicate: REPLICATE_API_TOKEN is not set")
	// ErrModelRequired is returned when the model version is not provided.
	ErrModelRequired = errors.New("replicate: model version is required")
	// ErrPromptRequired is returned when the prompt is not provided.
	ErrPromptRequired = errors.New("replicate: prompt is required")
	// ErrPredictionIDRequired is returned when the prediction ID is not provided.
	ErrPredictionIDRequired = errors.New("replicate: prediction ID is required")
	// ErrNoPredictionID is returned when the create response contains no ID.
	ErrNoPredictionID = errors.New("replicate: create failed: no prediction ID returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("replicate: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("replicate: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("replicate: request failed")
)

// Client defines the interface for interacting with the Replicate API.
type Client interface {
	// Submit creates a prediction and returns its ID.
	Submit(ctx context.Context, opts SubmitOptions) (predictionID string, err error)

	// Poll checks the status of a prediction and returns the result.
	Poll(ctx context.Context, predictionID string) (PollResult, error)
}

// HTTPClient is the HTTP implementation of the Replicate Client interface.
type HTTPClient struct {
	apiToken    string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIToken sets the API token for authentication.
func WithAPIToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiToken = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Replicate API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new Replicate HTTP client.
// The API token can be set via the WithAPIToken option. If not provided,
// it is read from the environment variable REPLICATE_API_TOKEN.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     "https://api.replicate.com",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiToken == "" {
		c.apiToken = os.Getenv("REPLICATE_API_TOKEN")
	}

	if c.apiToken == "" {
		return nil, ErrAPITokenNotSet
	}

	return c, nil
}

// Submit creates a prediction and returns its ID.
func (c *HTTPClient) Submit(ctx context.Context, opts SubmitOptions) (string, error) {
	if opts.Model == "" {
		return "", ErrModelRequired
	}
	if opts.Prompt == "" {
		return "", ErrPromptRequired
	}

	reqBody := predictionRequest{
		Version: opts.Model,
		Input: predictionInput{
			Prompt: opts.Prompt,
			Image:  opts.ImageURL,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("replicate: marshal request: %w", err)
	}

	url := c.baseURL + "/v1/predictions"

	var resp predictionResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.ID == "" {
		return "", ErrNoPredictionID
	}

	return resp.ID, nil
}

// Poll checks the status of a prediction and returns the result.
func (c *HTTPClient) Poll(ctx context.Context, predictionID string) (PollResult, error) {
	if predictionID == "" {
		return PollResult{}, ErrPredictionIDRequired
	}

	url := fmt.Sprintf("%s/v1/predictions/%s", c.baseURL, predictionID)

	var resp predictionResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return PollResult{}, err
	}

	result := PollResult{Status: resp.Status}
	switch resp.Status {
	case StatusSucceeded:
		if len(resp.Output) > 0 {
			result.OutputURL = resp.Output[len(resp.Output)-1]
		}
	case StatusFailed:
		result.Error = resp.Error
	}

	return result, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("replicate: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("replicate: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("replicate: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("replicate: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("replicate: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("replicate: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// IsTransient reports whether err came from a retryable condition
// (network failure, 5xx, rate limit). Used by the capability adapter.
func IsTransient(err error) bool {
	return isRetryable(err) || errors.Is(err, ErrServerError) || errors.Is(err, ErrRateLimited)
}
