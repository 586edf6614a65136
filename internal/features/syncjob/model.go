package syncjob

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"surveysync/internal/features/schema"
)

// JobStatus is the sync job state machine:
// pending -> running -> {completed | failed | cancelled}
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// SyncMode controls how records are written to the target
type SyncMode string

const (
	ModeInsert  SyncMode = "insert"
	ModeUpsert  SyncMode = "upsert"
	ModeReplace SyncMode = "replace"
)

var (
	ErrNotRunning    = errors.New("job is not running")
	ErrInvalidConfig = errors.New("invalid sync configuration")
)

// SyncError is one record-level or job-level failure. Job-level errors carry
// an empty RecordID.
type SyncError struct {
	RecordID string `json:"recordId"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// SyncConfig is the caller-supplied job configuration
type SyncConfig struct {
	FormID          string                   `json:"formId"`
	TargetSchema    string                   `json:"targetSchema"`
	TargetTable     string                   `json:"targetTable"`
	NewTableName    string                   `json:"newTableName"`
	SyncMode        SyncMode                 `json:"syncMode"`
	PrimaryKeyField string                   `json:"primaryKeyField"`
	CreateNewTable  bool                     `json:"createNewTable"`
	Fields          []schema.FieldDefinition `json:"fields"`
}

// Table returns the effective target table name
func (c SyncConfig) Table() string {
	if c.CreateNewTable && c.NewTableName != "" {
		return c.NewTableName
	}
	return c.TargetTable
}

// Source returns the source descriptor used for last-sync bookkeeping
func (c SyncConfig) Source() string {
	return "surveycto:" + c.FormID
}

// Target returns the target descriptor used for last-sync bookkeeping
func (c SyncConfig) Target() string {
	return fmt.Sprintf("postgres:%s.%s", c.TargetSchema, c.Table())
}

// Progress is the read-only snapshot polled by clients
type Progress struct {
	JobID            string      `json:"jobId"`
	Status           JobStatus   `json:"status"`
	TotalRecords     int         `json:"totalRecords"`
	ProcessedRecords int         `json:"processedRecords"`
	InsertedRecords  int         `json:"insertedRecords"`
	UpdatedRecords   int         `json:"updatedRecords"`
	SkippedRecords   int         `json:"skippedRecords"`
	Errors           []SyncError `json:"errors"`
	StartedAt        *time.Time  `json:"startedAt"`
	CompletedAt      *time.Time  `json:"completedAt"`
}

// Job is the central mutable entity. The orchestrator that created it is its
// only writer; everyone else reads snapshots. The mutex serializes the batch
// loop against concurrent Cancel and GetProgress calls so a reader never
// observes a partially applied batch.
type Job struct {
	ID     string
	Config SyncConfig

	mu          sync.Mutex
	status      JobStatus
	total       int
	processed   int
	inserted    int
	updated     int
	skipped     int
	errors      []SyncError
	errorCap    int
	errorCapHit bool
	startedAt   *time.Time
	completedAt *time.Time
}

func NewJob(id string, cfg SyncConfig, errorCap int) *Job {
	return &Job{
		ID:       id,
		Config:   cfg,
		status:   StatusPending,
		errorCap: errorCap,
	}
}

// Snapshot returns a consistent copy of the job's progress
func (j *Job) Snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()

	errs := make([]SyncError, len(j.errors))
	copy(errs, j.errors)

	return Progress{
		JobID:            j.ID,
		Status:           j.status,
		TotalRecords:     j.total,
		ProcessedRecords: j.processed,
		InsertedRecords:  j.inserted,
		UpdatedRecords:   j.updated,
		SkippedRecords:   j.skipped,
		Errors:           errs,
		StartedAt:        j.startedAt,
		CompletedAt:      j.completedAt,
	}
}

// Status returns the current status
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Begin moves pending -> running once the total record count is known
func (j *Job) Begin(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusPending {
		return
	}
	now := time.Now().UTC()
	j.status = StatusRunning
	j.total = total
	j.startedAt = &now
}

// ApplyBatch commits one batch's outcome as a single atomic update
func (j *Job) ApplyBatch(inserted, updated, skipped int, errs []SyncError) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return
	}
	j.processed += inserted + updated + skipped
	j.inserted += inserted
	j.updated += updated
	j.skipped += skipped
	for _, e := range errs {
		j.appendErrorLocked(e)
	}
}

// Complete moves running -> completed
func (j *Job) Complete() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return false
	}
	now := time.Now().UTC()
	j.status = StatusCompleted
	j.completedAt = &now
	return true
}

// Fail moves a non-terminal job to failed with one job-level error
func (j *Job) Fail(message string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	now := time.Now().UTC()
	j.status = StatusFailed
	j.completedAt = &now
	j.appendErrorLocked(SyncError{Message: message})
	return true
}

// CancelByUser moves running -> cancelled. Returns ErrNotRunning otherwise.
func (j *Job) CancelByUser() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return ErrNotRunning
	}
	now := time.Now().UTC()
	j.status = StatusCancelled
	j.completedAt = &now
	j.errors = append(j.errors, SyncError{Message: "Sync cancelled by user"})
	return nil
}

// LastError returns the most recent error message, for history bookkeeping
func (j *Job) LastError() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.errors) == 0 {
		return ""
	}
	return j.errors[len(j.errors)-1].Message
}

// appendErrorLocked enforces the record-level error cap. Job-level errors
// (empty RecordID) are always kept.
func (j *Job) appendErrorLocked(e SyncError) {
	if e.RecordID == "" || j.errorCap <= 0 {
		j.errors = append(j.errors, e)
		return
	}
	recordErrors := 0
	for _, existing := range j.errors {
		if existing.RecordID != "" {
			recordErrors++
		}
	}
	if recordErrors < j.errorCap {
		j.errors = append(j.errors, e)
		return
	}
	if !j.errorCapHit {
		j.errorCapHit = true
		j.errors = append(j.errors, SyncError{
			Message: fmt.Sprintf("record error list capped at %d entries; further record errors suppressed", j.errorCap),
		})
	}
}
