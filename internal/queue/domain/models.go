package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// JobStatus is the task lifecycle. A job either fully completes or is marked
// failed with its diagnostic; there is no long-lived worker state.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one queued task. Payload carries only primitive, serializable
// values (identifiers as strings, ISO dates) because the consumer may run in
// a separate process.
type Job struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	JobID     string            `gorm:"type:text;not null;uniqueIndex"`
	Name      string            `gorm:"type:text;not null;index"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null"`
	Status    JobStatus         `gorm:"type:text;not null;default:'pending';index"`
	Attempts  int               `gorm:"not null;default:0"`
	RunAt     time.Time         `gorm:"not null;index"`
	LockedAt  *time.Time        `gorm:""`
	LastError string            `gorm:"type:text"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Job) TableName() string { return "queue_jobs" }
