package kling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// setTestEnv sets the KLING_API_KEY env var and registers cleanup.
func setTestEnv(t *testing.T) {
	t.Helper()
	if err := os.Setenv("KLING_API_KEY", "test-key"); err != nil {
		t.Fatalf("failed to set env: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("KLING_API_KEY")
	})
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusSubmitted, false},
		{StatusProcessing, false},
		{StatusSucceed, true},
		{StatusFailed, true},
		{Status("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_ = os.Unsetenv("KLING_API_KEY")

	_, err := NewClient()
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClient_WithAPIKeyOption(t *testing.T) {
	_ = os.Unsetenv("KLING_API_KEY")

	client, err := NewClient(WithAPIKey("explicit-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.apiKey != "explicit-key" {
		t.Errorf("expected apiKey to be 'explicit-key', got '%s'", client.apiKey)
	}
}

func TestSubmit_Success(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/videos/image2video" {
			t.Errorf("expected /v1/videos/image2video, got %s", r.URL.Path)
		}

		var req createTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req.Image != "https://cdn.example.com/frame.png" {
			t.Errorf("unexpected image URL %s", req.Image)
		}
		if req.Duration != "5" {
			t.Errorf("expected default duration 5, got %s", req.Duration)
		}
		if req.ModelName != "kling-v1-6" {
			t.Errorf("expected default model kling-v1-6, got %s", req.ModelName)
		}

		_ = json.NewEncoder(w).Encode(taskEnvelope{
			Code: 0,
			Data: taskData{TaskID: "task-123", TaskStatus: StatusSubmitted},
		})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	id, err := client.Submit(context.Background(), SubmitOptions{
		ImageURL: "https://cdn.example.com/frame.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "task-123" {
		t.Errorf("expected task-123, got %s", id)
	}
}

func TestSubmit_MissingImageURL(t *testing.T) {
	setTestEnv(t)
	client, _ := NewClient()

	if _, err := client.Submit(context.Background(), SubmitOptions{}); err != ErrImageURLRequired {
		t.Errorf("expected ErrImageURLRequired, got %v", err)
	}
}

func TestSubmit_TaskRejected(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(taskEnvelope{
			Code:    1102,
			Message: "account balance not enough",
		})
	}))
	defer server.Close()

	client, _ := NewClient(WithBaseURL(server.URL))

	_, err := client.Submit(context.Background(), SubmitOptions{ImageURL: "https://x/y.png"})
	if !errors.Is(err, ErrTaskRejected) {
		t.Errorf("expected ErrTaskRejected, got %v", err)
	}
}

func TestPoll_AllStatuses(t *testing.T) {
	setTestEnv(t)

	tests := []struct {
		name          string
		response      taskEnvelope
		expectedURL   string
		expectedError string
	}{
		{
			name:     "submitted",
			response: taskEnvelope{Data: taskData{TaskID: "t1", TaskStatus: StatusSubmitted}},
		},
		{
			name:     "processing",
			response: taskEnvelope{Data: taskData{TaskID: "t1", TaskStatus: StatusProcessing}},
		},
		{
			name: "succeed",
			response: taskEnvelope{Data: taskData{
				TaskID:     "t1",
				TaskStatus: StatusSucceed,
				TaskResult: taskResult{Videos: []taskVideo{{URL: "https://kling.example.com/clip.mp4"}}},
			}},
			expectedURL: "https://kling.example.com/clip.mp4",
		},
		{
			name: "failed",
			response: taskEnvelope{Data: taskData{
				TaskID:        "t1",
				TaskStatus:    StatusFailed,
				TaskStatusMsg: "risk control check failed",
			}},
			expectedError: "risk control check failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client, _ := NewClient(WithBaseURL(server.URL))

			result, err := client.Poll(context.Background(), "t1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.response.Data.TaskStatus {
				t.Errorf("expected status %v, got %v", tt.response.Data.TaskStatus, result.Status)
			}
			if result.VideoURL != tt.expectedURL {
				t.Errorf("expected video %q, got %q", tt.expectedURL, result.VideoURL)
			}
			if result.Error != tt.expectedError {
				t.Errorf("expected error %q, got %q", tt.expectedError, result.Error)
			}
		})
	}
}

func TestPoll_EmptyTaskID(t *testing.T) {
	setTestEnv(t)
	client, _ := NewClient()

	if _, err := client.Poll(context.Background(), ""); err != ErrTaskIDRequired {
		t.Errorf("expected ErrTaskIDRequired, got %v", err)
	}
}

func TestRetry_TransientFailure(t *testing.T) {
	setTestEnv(t)

	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&attempts, 1)
		if count < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
			return
		}
		_ = json.NewEncoder(w).Encode(taskEnvelope{
			Data: taskData{TaskID: "t1", TaskStatus: StatusSucceed},
		})
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithBaseBackoff(10*time.Millisecond),
	)

	result, err := client.Poll(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSucceed {
		t.Errorf("expected succeed, got %v", result.Status)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	setTestEnv(t)

	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	}))
	defer server.Close()

	client, _ := NewClient(
		WithBaseURL(server.URL),
		WithMaxRetries(3),
		WithBaseBackoff(10*time.Millisecond),
	)

	_, err := client.Poll(context.Background(), "t1")
	if err == nil {
		t.Error("expected error")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("expected 1 attempt (no retries for 403), got %d", attempts)
	}
}
