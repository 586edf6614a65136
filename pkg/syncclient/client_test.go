package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func waitForStatus(t *testing.T, c *Client, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", c.Status(), want)
}

func newJobServer(t *testing.T, progressByPoll []Progress) (*httptest.Server, *int64) {
	t.Helper()
	var polls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sync-jobs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Progress{JobID: "job-1", Status: "pending"})
	})
	mux.HandleFunc("/api/sync-jobs/job-1/progress", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&polls, 1)
		idx := int(n) - 1
		if idx >= len(progressByPoll) {
			idx = len(progressByPoll) - 1
		}
		json.NewEncoder(w).Encode(progressByPoll[idx])
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &polls
}

func TestClientCompletes(t *testing.T) {
	server, _ := newJobServer(t, []Progress{
		{JobID: "job-1", Status: "running", TotalRecords: 100, ProcessedRecords: 50, InsertedRecords: 50},
		{JobID: "job-1", Status: "completed", TotalRecords: 100, ProcessedRecords: 100, InsertedRecords: 100},
	})

	client := New(server.URL, "token", WithInterval(10*time.Millisecond))
	defer client.Close()

	if got := client.Status(); got != StatusReady {
		t.Fatalf("initial status = %s, want %s", got, StatusReady)
	}

	if err := client.Start(context.Background(), Config{FormID: "hh_survey", SyncMode: "insert"}); err != nil {
		t.Fatal(err)
	}
	if got := client.Status(); got != StatusSyncing {
		t.Fatalf("status after Start = %s, want %s", got, StatusSyncing)
	}

	waitForStatus(t, client, StatusComplete)

	progress := client.Progress()
	if progress.InsertedRecords != 100 {
		t.Errorf("InsertedRecords = %d, want 100", progress.InsertedRecords)
	}
	if !client.RetryAvailableAt().IsZero() {
		t.Error("successful run set a retry cooldown")
	}
}

func TestClientCooldownGatesStart(t *testing.T) {
	server, _ := newJobServer(t, []Progress{
		{
			JobID:  "job-1",
			Status: "failed",
			Errors: []SyncError{
				{Message: "SurveyCTO blocked the data pull (status 417): Retry after 296 seconds"},
			},
		},
	})

	var startCalls int64
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&startCalls, 1)
		http.NotFound(w, r)
	}))
	t.Cleanup(counting.Close)

	client := New(server.URL, "token", WithInterval(10*time.Millisecond))
	defer client.Close()

	if err := client.Start(context.Background(), Config{FormID: "hh_survey"}); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, client, StatusFailed)

	availableAt := client.RetryAvailableAt()
	if availableAt.IsZero() {
		t.Fatal("failed run with retry hint did not set a cooldown")
	}
	if until := time.Until(availableAt); until < 290*time.Second || until > 296*time.Second {
		t.Errorf("cooldown of %s, want about 296s", until)
	}

	// The retry must be rejected locally; swap in a counting server to prove
	// no request leaves the client
	client.baseURL = counting.URL
	err := client.Start(context.Background(), Config{FormID: "hh_survey"})
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("err = %v, want ErrCooldownActive", err)
	}
	if atomic.LoadInt64(&startCalls) != 0 {
		t.Error("cooldown-gated Start contacted the server")
	}
}

func TestClientCancelledJobFails(t *testing.T) {
	server, _ := newJobServer(t, []Progress{
		{
			JobID:  "job-1",
			Status: "cancelled",
			Errors: []SyncError{{Message: "Sync cancelled by user"}},
		},
	})

	client := New(server.URL, "token", WithInterval(10*time.Millisecond))
	defer client.Close()

	if err := client.Start(context.Background(), Config{FormID: "hh_survey"}); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, client, StatusFailed)

	// "Sync cancelled by user" carries no retry hint
	if !client.RetryAvailableAt().IsZero() {
		t.Error("cancel set a retry cooldown")
	}
}

func TestClientTransportFailureOnStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens any more

	client := New(server.URL, "token")
	defer client.Close()

	if err := client.Start(context.Background(), Config{FormID: "hh_survey"}); err == nil {
		t.Fatal("Start against a dead server succeeded")
	}
	if got := client.Status(); got != StatusFailed {
		t.Errorf("status = %s, want %s", got, StatusFailed)
	}

	progress := client.Progress()
	if len(progress.Errors) != 1 || !strings.Contains(progress.Errors[0].Message, "failed to start sync") {
		t.Errorf("Errors = %+v, want one synthesized job-level error", progress.Errors)
	}
}

func TestClientTransportFailureWhilePolling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sync-jobs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Progress{JobID: "job-1", Status: "pending"})
	})
	mux.HandleFunc("/api/sync-jobs/job-1/progress", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "registry unavailable"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := New(server.URL, "token", WithInterval(10*time.Millisecond))
	defer client.Close()

	if err := client.Start(context.Background(), Config{FormID: "hh_survey"}); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, client, StatusFailed)

	progress := client.Progress()
	if len(progress.Errors) != 1 || !strings.Contains(progress.Errors[0].Message, "registry unavailable") {
		t.Errorf("Errors = %+v", progress.Errors)
	}
}

func TestClientCloseStopsPolling(t *testing.T) {
	var polls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sync-jobs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Progress{JobID: "job-1", Status: "pending"})
	})
	mux.HandleFunc("/api/sync-jobs/job-1/progress", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&polls, 1)
		json.NewEncoder(w).Encode(Progress{JobID: "job-1", Status: "running"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := New(server.URL, "token", WithInterval(5*time.Millisecond))
	if err := client.Start(context.Background(), Config{FormID: "hh_survey"}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(30 * time.Millisecond)
	client.Close()
	settled := atomic.LoadInt64(&polls)

	time.Sleep(30 * time.Millisecond)
	if after := atomic.LoadInt64(&polls); after != settled {
		t.Errorf("polling continued after Close: %d -> %d", settled, after)
	}
}

func TestRetryAfterPattern(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{"Lowercase", "retry after 296 seconds", true},
		{"Mixed Case", "Retry After 5 Seconds", true},
		{"Embedded", "pull blocked (status 417): retry after 12 seconds", true},
		{"No Number", "retry after a while", false},
		{"Unrelated", "connection refused", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfterPattern.MatchString(tt.message); got != tt.want {
				t.Errorf("MatchString(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}
