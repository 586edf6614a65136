// Package syncclient is a Go consumer of the sync-jobs API. It starts a job,
// polls its progress at a fixed cadence until a terminal status, and honours
// server-directed cooldowns after rate-limit failures.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// Status is the externally observed state of the client:
// ready -> syncing -> {complete | failed}
type Status string

const (
	StatusReady    Status = "ready"
	StatusSyncing  Status = "syncing"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// ErrCooldownActive is returned by Start while a retry cooldown is in force
var ErrCooldownActive = errors.New("retry cooldown is active")

var retryAfterPattern = regexp.MustCompile(`(?i)retry after (\d+) seconds`)

// SyncError mirrors the server's error shape
type SyncError struct {
	RecordID string `json:"recordId"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// Progress mirrors the server's job snapshot
type Progress struct {
	JobID            string      `json:"jobId"`
	Status           string      `json:"status"`
	TotalRecords     int         `json:"totalRecords"`
	ProcessedRecords int         `json:"processedRecords"`
	InsertedRecords  int         `json:"insertedRecords"`
	UpdatedRecords   int         `json:"updatedRecords"`
	SkippedRecords   int         `json:"skippedRecords"`
	Errors           []SyncError `json:"errors"`
	StartedAt        *time.Time  `json:"startedAt"`
	CompletedAt      *time.Time  `json:"completedAt"`
}

// Config is the job configuration sent to the server
type Config struct {
	FormID          string                   `json:"formId"`
	TargetSchema    string                   `json:"targetSchema"`
	TargetTable     string                   `json:"targetTable"`
	NewTableName    string                   `json:"newTableName,omitempty"`
	SyncMode        string                   `json:"syncMode"`
	PrimaryKeyField string                   `json:"primaryKeyField,omitempty"`
	CreateNewTable  bool                     `json:"createNewTable"`
	Fields          []map[string]interface{} `json:"fields,omitempty"`
}

type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	interval time.Duration
	now      func() time.Time

	mu          sync.Mutex
	status      Status
	jobID       string
	progress    Progress
	availableAt time.Time
	stop        context.CancelFunc
	pollDone    chan struct{}
}

type Option func(*Client)

// WithInterval overrides the poll cadence (default 1.5s)
func WithInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL, sessionToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		token:    sessionToken,
		http:     &http.Client{Timeout: 30 * time.Second},
		interval: 1500 * time.Millisecond,
		now:      time.Now,
		status:   StatusReady,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the externally observed status
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Progress returns the last polled snapshot
func (c *Client) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// RetryAvailableAt returns the instant before which Start is rejected, or
// the zero time when no cooldown is in force
func (c *Client) RetryAvailableAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableAt
}

// Start creates a sync job and begins polling its progress. While a cooldown
// from a previous rate-limit failure is active the call is rejected locally,
// without contacting the server.
func (c *Client) Start(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	if now := c.now(); now.Before(c.availableAt) {
		remaining := c.availableAt.Sub(now).Round(time.Second)
		c.mu.Unlock()
		return fmt.Errorf("%w: retry available in %s", ErrCooldownActive, remaining)
	}
	if c.status == StatusSyncing {
		c.mu.Unlock()
		return errors.New("a sync is already in progress")
	}
	c.mu.Unlock()

	var progress Progress
	if err := c.post(ctx, "/api/sync-jobs", cfg, &progress); err != nil {
		c.failWith(fmt.Sprintf("failed to start sync: %v", err))
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.status = StatusSyncing
	c.jobID = progress.JobID
	c.progress = progress
	c.stop = cancel
	c.pollDone = done
	c.mu.Unlock()

	go c.pollLoop(pollCtx, progress.JobID, done)
	return nil
}

// Cancel asks the server to stop the running job
func (c *Client) Cancel(ctx context.Context) error {
	c.mu.Lock()
	jobID := c.jobID
	c.mu.Unlock()
	if jobID == "" {
		return errors.New("no job to cancel")
	}
	return c.post(ctx, "/api/sync-jobs/"+jobID+"/cancel", nil, nil)
}

// Close stops polling. No poll fires after Close returns.
func (c *Client) Close() {
	c.mu.Lock()
	stop := c.stop
	done := c.pollDone
	c.stop = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// pollLoop runs exactly one polling cycle at a time: the ticker only advances
// after the previous request has finished, so ticks never queue behind a
// slow response.
func (c *Client) pollLoop(ctx context.Context, jobID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var progress Progress
		err := c.get(ctx, "/api/sync-jobs/"+jobID+"/progress", &progress)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.failWith(fmt.Sprintf("failed to poll sync progress: %v", err))
			return
		}

		c.mu.Lock()
		c.progress = progress
		switch progress.Status {
		case "completed":
			c.status = StatusComplete
			c.mu.Unlock()
			return
		case "failed", "cancelled":
			c.status = StatusFailed
			c.applyCooldownLocked(progress.Errors)
			c.mu.Unlock()
			return
		default:
			c.mu.Unlock()
		}
	}
}

// failWith converts a transport-level failure into a synthesized job-level
// error; faults never escape the client silently
func (c *Client) failWith(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusFailed
	c.progress.Status = "failed"
	c.progress.Errors = append(c.progress.Errors, SyncError{Message: message})
}

// applyCooldownLocked derives the retry gate from the most recent job-level
// error carrying a "retry after N seconds" hint
func (c *Client) applyCooldownLocked(errs []SyncError) {
	for i := len(errs) - 1; i >= 0; i-- {
		if errs[i].RecordID != "" {
			continue
		}
		match := retryAfterPattern.FindStringSubmatch(errs[i].Message)
		if match == nil {
			continue
		}
		if seconds, err := strconv.Atoi(match[1]); err == nil && seconds > 0 {
			c.availableAt = c.now().Add(time.Duration(seconds) * time.Second)
		}
		return
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}
