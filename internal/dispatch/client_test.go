package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:      srv.URL,
		Token:        "test-token",
		PollInterval: 10 * time.Millisecond,
		MaxWait:      time.Second,
	})
}

func TestRun_HappyPath(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/w1/run", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "job-42"})
	})
	mux.HandleFunc("GET /jobs/w1/status/job-42", func(w http.ResponseWriter, r *http.Request) {
		// Два опроса IN_PROGRESS, затем COMPLETED
		status := JobStatusInProgress
		if polls.Add(1) > 2 {
			status = JobStatusCompleted
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":     "job-42",
			"status": status,
			"output": "s3://results/42",
		})
	})

	c := testClient(t, mux)

	output, err := c.Run(context.Background(), "w1", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "s3://results/42" {
		t.Errorf("unexpected output: %q", output)
	}
	if polls.Load() < 3 {
		t.Errorf("expected at least 3 polls, got %d", polls.Load())
	}
}

func TestStartJob_RetriesTransient(t *testing.T) {
	var attempts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/w1/run", func(w http.ResponseWriter, r *http.Request) {
		// Первые две попытки — 503, третья успешна
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})
	})

	c := testClient(t, mux)

	jobID, err := c.StartJob(context.Background(), "w1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("unexpected job id: %q", jobID)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestStartJob_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/w1/run", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	c := testClient(t, mux)

	_, err := c.StartJob(context.Background(), "w1", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 StatusError, got: %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", attempts.Load())
	}
}

func TestStartJob_InvalidResponseNotRetried(t *testing.T) {
	var attempts atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/w1/run", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		// 200, но без id
		w.Write([]byte(`{"unexpected": true}`))
	})

	c := testClient(t, mux)

	_, err := c.StartJob(context.Background(), "w1", nil)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got: %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("invalid response must not be retried, got %d attempts", attempts.Load())
	}
}

func TestStartJob_RetryExhausted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/w1/run", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:      srv.URL,
		MaxAttempts:  2,
		PollInterval: 10 * time.Millisecond,
	})

	_, err := c.StartJob(context.Background(), "w1", nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got: %v", err)
	}
}

func TestMonitorJob_Failed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/w1/status/job-9", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"id":     "job-9",
			"status": JobStatusFailed,
			"output": "CUDA out of memory",
		})
	})

	c := testClient(t, mux)

	_, err := c.MonitorJob(context.Background(), "w1", "job-9")
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got: %v", err)
	}

	var failedErr *JobFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("expected *JobFailedError, got %T", err)
	}
	if failedErr.Output != "CUDA out of memory" {
		t.Errorf("unexpected failure output: %q", failedErr.Output)
	}
}

func TestMonitorJob_InvalidStatusStopsPolling(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/w1/status/job-5", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"id": "job-5", "status": "BANANAS"})
	})

	c := testClient(t, mux)

	_, err := c.MonitorJob(context.Background(), "w1", "job-5")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got: %v", err)
	}
	if polls.Load() != 1 {
		t.Errorf("polling must stop after invalid response, got %d polls", polls.Load())
	}
}

func TestMonitorJob_TransientRetryExhausted(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/w1/status/j1", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:      srv.URL,
		PollInterval: 10 * time.Millisecond,
		MaxWait:      time.Second,
	})

	_, err := c.MonitorJob(context.Background(), "w1", "j1")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got: %v", err)
	}
	if got := polls.Load(); got != 5 {
		t.Errorf("expected 5 polls before giving up, got %d", got)
	}
}

func TestMonitorJob_TransientFailureResetsOnSuccess(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/w1/status/j2", func(w http.ResponseWriter, r *http.Request) {
		// Опросы чередуются: 500 перед каждым успешным ответом, job
		// завершается на шестом успешном опросе
		n := polls.Add(1)
		if n%2 == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		status := JobStatusInProgress
		if n >= 12 {
			status = JobStatusCompleted
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":     "j2",
			"status": status,
			"output": "s3://results/j2",
		})
	})

	c := testClient(t, mux)

	output, err := c.MonitorJob(context.Background(), "w1", "j2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "s3://results/j2" {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestMonitorJob_ClientErrorStopsPolling(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/w1/status/j3", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	c := testClient(t, mux)

	_, err := c.MonitorJob(context.Background(), "w1", "j3")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got: %v", err)
	}
	if polls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d polls", polls.Load())
	}
}

func TestMonitorJob_MaxWait(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/w1/status/job-7", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-7", "status": JobStatusInProgress})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:      srv.URL,
		PollInterval: 10 * time.Millisecond,
		MaxWait:      50 * time.Millisecond,
	})

	_, err := c.MonitorJob(context.Background(), "w1", "job-7")
	if !errors.Is(err, ErrJobTimeout) {
		t.Fatalf("expected ErrJobTimeout, got: %v", err)
	}
}

func TestMonitorJob_Cancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/w1/status/job-8", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-8", "status": JobStatusInProgress})
	})

	c := testClient(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := c.MonitorJob(ctx, "w1", "job-8")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}
