package syncjob

import (
	"fmt"
	"testing"
)

func TestJobLifecycle(t *testing.T) {
	job := NewJob("job-1", SyncConfig{FormID: "hh_survey"}, 100)

	if got := job.Status(); got != StatusPending {
		t.Fatalf("new job status = %s, want %s", got, StatusPending)
	}

	job.Begin(10)
	if got := job.Status(); got != StatusRunning {
		t.Fatalf("status after Begin = %s, want %s", got, StatusRunning)
	}
	snap := job.Snapshot()
	if snap.TotalRecords != 10 {
		t.Errorf("TotalRecords = %d, want 10", snap.TotalRecords)
	}
	if snap.StartedAt == nil {
		t.Error("StartedAt not set after Begin")
	}

	// Begin is a pending-only transition
	job.Begin(99)
	if snap := job.Snapshot(); snap.TotalRecords != 10 {
		t.Errorf("second Begin changed TotalRecords to %d", snap.TotalRecords)
	}

	if !job.Complete() {
		t.Error("Complete on a running job returned false")
	}
	if job.Complete() {
		t.Error("Complete on a completed job returned true")
	}
	if snap := job.Snapshot(); snap.CompletedAt == nil {
		t.Error("CompletedAt not set after Complete")
	}
}

func TestJobApplyBatch(t *testing.T) {
	job := NewJob("job-1", SyncConfig{}, 100)

	// Counters never move before the job is running
	job.ApplyBatch(5, 0, 0, nil)
	if snap := job.Snapshot(); snap.ProcessedRecords != 0 {
		t.Errorf("ApplyBatch on pending job moved counters: %+v", snap)
	}

	job.Begin(100)
	job.ApplyBatch(60, 0, 40, []SyncError{{RecordID: "r1", Message: "bad value"}})

	snap := job.Snapshot()
	if snap.ProcessedRecords != 100 || snap.InsertedRecords != 60 || snap.SkippedRecords != 40 {
		t.Errorf("counters = %+v", snap)
	}
	if sum := snap.InsertedRecords + snap.UpdatedRecords + snap.SkippedRecords; sum != snap.ProcessedRecords {
		t.Errorf("inserted+updated+skipped = %d, processed = %d", sum, snap.ProcessedRecords)
	}
	if len(snap.Errors) != 1 || snap.Errors[0].RecordID != "r1" {
		t.Errorf("Errors = %+v", snap.Errors)
	}

	// No further mutation after a terminal transition
	job.Complete()
	job.ApplyBatch(1, 1, 1, nil)
	if after := job.Snapshot(); after.ProcessedRecords != 100 {
		t.Errorf("ApplyBatch after Complete moved counters to %d", after.ProcessedRecords)
	}
}

func TestJobCancel(t *testing.T) {
	job := NewJob("job-1", SyncConfig{}, 100)

	if err := job.CancelByUser(); err != ErrNotRunning {
		t.Errorf("cancel of pending job: err = %v, want ErrNotRunning", err)
	}

	job.Begin(10)
	if err := job.CancelByUser(); err != nil {
		t.Fatalf("cancel of running job: %v", err)
	}

	snap := job.Snapshot()
	if snap.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", snap.Status, StatusCancelled)
	}
	if snap.CompletedAt == nil {
		t.Error("CompletedAt not set after cancel")
	}
	if job.LastError() != "Sync cancelled by user" {
		t.Errorf("LastError = %q", job.LastError())
	}

	if err := job.CancelByUser(); err != ErrNotRunning {
		t.Errorf("second cancel: err = %v, want ErrNotRunning", err)
	}
}

func TestJobFail(t *testing.T) {
	job := NewJob("job-1", SyncConfig{}, 100)

	// Failing before running is allowed: setup errors kill pending jobs
	if !job.Fail("table name conflict") {
		t.Error("Fail on pending job returned false")
	}
	if got := job.Status(); got != StatusFailed {
		t.Errorf("status = %s, want %s", got, StatusFailed)
	}
	if job.LastError() != "table name conflict" {
		t.Errorf("LastError = %q", job.LastError())
	}
	if job.Fail("again") {
		t.Error("Fail on terminal job returned true")
	}
}

func TestJobErrorCap(t *testing.T) {
	job := NewJob("job-1", SyncConfig{}, 3)
	job.Begin(100)

	var errs []SyncError
	for i := 0; i < 10; i++ {
		errs = append(errs, SyncError{RecordID: fmt.Sprintf("r%d", i), Message: "bad"})
	}
	job.ApplyBatch(0, 0, 10, errs)

	snap := job.Snapshot()
	// 3 record errors plus the one summary entry
	if len(snap.Errors) != 4 {
		t.Fatalf("len(Errors) = %d, want 4", len(snap.Errors))
	}
	if snap.Errors[3].RecordID != "" {
		t.Error("summary entry should be job-level")
	}

	// Job-level errors are exempt from the cap
	job.ApplyBatch(0, 0, 0, []SyncError{{Message: "source went away"}})
	if snap := job.Snapshot(); len(snap.Errors) != 5 {
		t.Errorf("len(Errors) after job-level append = %d, want 5", len(snap.Errors))
	}
}

func TestSnapshotIsolation(t *testing.T) {
	job := NewJob("job-1", SyncConfig{}, 100)
	job.Begin(10)
	job.ApplyBatch(1, 0, 0, []SyncError{{RecordID: "r1", Message: "bad"}})

	snap := job.Snapshot()
	snap.Errors[0].Message = "mutated"

	if job.Snapshot().Errors[0].Message != "bad" {
		t.Error("snapshot shares error storage with the job")
	}
}

func TestSyncConfigDescriptors(t *testing.T) {
	cfg := SyncConfig{
		FormID:       "hh_survey",
		TargetSchema: "public",
		TargetTable:  "households",
	}
	if cfg.Source() != "surveycto:hh_survey" {
		t.Errorf("Source() = %q", cfg.Source())
	}
	if cfg.Target() != "postgres:public.households" {
		t.Errorf("Target() = %q", cfg.Target())
	}

	cfg.CreateNewTable = true
	cfg.NewTableName = "households_v2"
	if cfg.Table() != "households_v2" {
		t.Errorf("Table() with createNewTable = %q", cfg.Table())
	}
}
