package schedule

import (
	"time"

	"surveysync/internal/features/syncjob"
)

// ScheduledSync re-runs a sync configuration on a cron schedule
type ScheduledSync struct {
	ID        string             `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Schedule  string             `json:"schedule" bson:"schedule"` // standard cron expression
	SessionID string             `json:"session_id" bson:"session_id"`
	Config    syncjob.SyncConfig `json:"config" bson:"config"`
	Enabled   bool               `json:"enabled" bson:"enabled"`
	LastRun   *time.Time         `json:"last_run,omitempty" bson:"last_run,omitempty"`
	NextRun   *time.Time         `json:"next_run,omitempty" bson:"next_run,omitempty"`
	LastJobID string             `json:"last_job_id,omitempty" bson:"last_job_id,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}
