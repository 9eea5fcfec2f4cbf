package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
)

// Action is the mutation a job applies to the external provider.
type Action string

const (
	ActionDisable Action = "disable"
	ActionEnable  Action = "enable"
	ActionDelete  Action = "delete"
	ActionUpdate  Action = "update"
)

// JobStatus is the queue lifecycle state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusClaimed   JobStatus = "claimed"
	StatusSucceeded JobStatus = "succeeded"
	StatusDead      JobStatus = "dead"
)

// Priorities. Lower runs sooner. Downgrade disables are safety-relevant and
// must beat routine drift cleanup.
const (
	PriorityDowngrade = 10
	PriorityDrift     = 100
)

// SyncJob is one pending mutation against the external provider. The partial
// unique index over non-terminal statuses is what makes the one-in-flight-job
// rule hold under concurrent enqueues, not the lookup in the service layer.
type SyncJob struct {
	ID           snowflake.ID                `json:"id" gorm:"primaryKey"`
	ResourceType resourcedomain.ResourceType `json:"resource_type" gorm:"type:text;not null;index:idx_sync_jobs_resource;uniqueIndex:idx_sync_jobs_active_resource,where:status = 'pending' OR status = 'claimed'"`
	ResourceID   snowflake.ID                `json:"resource_id" gorm:"not null;index:idx_sync_jobs_resource;uniqueIndex:idx_sync_jobs_active_resource"`
	ExternalID   string                      `json:"external_id" gorm:"type:text"`
	Action       Action                      `json:"action" gorm:"type:text;not null"`
	Reason       string                      `json:"reason" gorm:"type:text;not null"`
	Priority     int                         `json:"priority" gorm:"not null;index"`
	Status       JobStatus                   `json:"status" gorm:"type:text;not null;index"`
	RetryCount   int                         `json:"retry_count" gorm:"not null;default:0"`
	LastError    string                      `json:"last_error" gorm:"type:text"`
	CreatedAt    time.Time                   `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time                   `json:"updated_at" gorm:"not null"`
}

func (SyncJob) TableName() string { return "sync_jobs" }

// Terminal reports whether the job can no longer be claimed.
func (j SyncJob) Terminal() bool {
	return j.Status == StatusSucceeded || j.Status == StatusDead
}

// EnqueueRequest describes a new mutation intent.
type EnqueueRequest struct {
	ResourceType resourcedomain.ResourceType
	ResourceID   snowflake.ID
	ExternalID   string
	Action       Action
	Reason       string
	Priority     int
}

// FailOutcome reports what Fail decided for a job.
type FailOutcome string

const (
	FailOutcomeRetry FailOutcome = "retry"
	FailOutcomeDead  FailOutcome = "dead"
)

// QueueDepth is the operator-facing queue summary.
type QueueDepth struct {
	Pending int64 `json:"pending"`
	Claimed int64 `json:"claimed"`
	Dead    int64 `json:"dead"`
}

var (
	ErrInvalidJob   = errors.New("invalid_sync_job")
	ErrJobNotFound  = errors.New("sync_job_not_found")
	ErrNotClaimable = errors.New("sync_job_not_claimable")
)
