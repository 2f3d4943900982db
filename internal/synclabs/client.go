package synclabs

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

// Static errors for Sync Labs client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided.
	ErrAPIKeyNotSet = errors.New("synclabs: SYNCLABS_API_KEY is not set")
	// ErrVideoURLRequired is returned when the base video URL is not provided.
	ErrVideoURLRequired = errors.New("synclabs: video URL is required")
	// ErrScriptRequired is returned when the script text is not provided.
	ErrScriptRequired = errors.New("synclabs: script is required")
	// ErrGenerationIDRequired is returned when the generation ID is not provided.
	ErrGenerationIDRequired = errors.New("synclabs: generation ID is required")
	// ErrNoGenerationID is returned when the create response contains no ID.
	ErrNoGenerationID = errors.New("synclabs: create failed: no generation ID returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("synclabs: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("synclabs: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("synclabs: request failed")
)

// Client defines the interface for interacting with the Sync Labs API.
type Client interface {
	// Submit creates a lip-sync generation and returns its ID.
	Submit(ctx context.Context, opts SubmitOptions) (generationID string, err error)

	// Poll checks the status of a generation and returns the result.
	Poll(ctx context.Context, generationID string) (PollResult, error)
}

// HTTPClient is the HTTP implementation of the Sync Labs Client interface.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Sync Labs API.
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

// NewClient creates a new Sync Labs HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable SYNCLABS_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     "https://api.sync.so",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("SYNCLABS_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Submit creates a lip-sync generation and returns its ID.
func (c *HTTPClient) Submit(ctx context.Context, opts SubmitOptions) (string, error) {
	if opts.VideoURL == "" {
		return "", ErrVideoURLRequired
	}
	if opts.Script == "" {
		return "", ErrScriptRequired
	}
	if opts.Model == "" {
		opts.Model = "lipsync-2"
	}

	textInput := generateInput{
		Type:  "text",
		Input: opts.Script,
	}
	if opts.VoiceID != "" {
		textInput.Provider = &ttsProvider{Name: "elevenlabs", VoiceID: opts.VoiceID}
	}

	reqBody := generateRequest{
		Model: opts.Model,
		Input: []generateInput{
			{Type: "video", URL: opts.VideoURL},
			textInput,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("synclabs: marshal request: %w", err)
	}

	url := c.baseURL + "/v2/generate"

	var resp generateResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.ID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
		}
		return "", ErrNoGenerationID
	}

	return resp.ID, nil
}

// Poll checks the status of a generation and returns the result.
func (c *HTTPClient) Poll(ctx context.Context, generationID string) (PollResult, error) {
	if generationID == "" {
		return PollResult{}, ErrGenerationIDRequired
	}

	url := fmt.Sprintf("%s/v2/generate/%s", c.baseURL, generationID)

	var resp generateResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return PollResult{}, err
	}

	result := PollResult{Status: resp.Status}
	switch resp.Status {
	case StatusCompleted:
		result.OutputURL = resp.OutputURL
	case StatusFailed, StatusRejected:
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
				return fmt.Errorf("synclabs: context cancelled: %w", ctx.Err())
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

	return fmt.Errorf("synclabs: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("synclabs: create request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("synclabs: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("synclabs: read response: %w", err)}
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
			return fmt.Errorf("synclabs: unmarshal response: %w", err)
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

// IsTransient reports whether err came from a retryable condition.
// Used by the capability adapter.
func IsTransient(err error) bool {
	return isRetryable(err) || errors.Is(err, ErrServerError) || errors.Is(err, ErrRateLimited)
}
