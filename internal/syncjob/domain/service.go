package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	"gorm.io/gorm"
)

type Service interface {
	// Enqueue inserts a mutation intent. If a non-terminal job already targets
	// the same (resource type, resource id), the new intent supersedes it in
	// place instead of creating a second in-flight job.
	Enqueue(ctx context.Context, req EnqueueRequest) (snowflake.ID, error)

	// ClaimNext atomically claims the highest-priority pending job.
	// Returns nil when the queue is empty.
	ClaimNext(ctx context.Context) (*SyncJob, error)

	// Complete marks a claimed job succeeded. claimedVersion is the job's
	// updated_at as returned by ClaimNext; if the job was superseded while
	// executing, the version no longer matches and the job goes back to
	// pending so the merged intent still runs.
	Complete(ctx context.Context, jobID snowflake.ID, claimedVersion time.Time) error

	// Fail records the error and either requeues the job (with a priority
	// demotion so other work makes progress) or moves it to dead once the
	// retry ceiling is reached.
	Fail(ctx context.Context, jobID snowflake.ID, failErr error) (FailOutcome, error)

	Depth(ctx context.Context) (QueueDepth, error)
	ListDead(ctx context.Context, limit int) ([]SyncJob, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *SyncJob) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SyncJob, error)
	FindActiveByResource(ctx context.Context, db *gorm.DB, resourceType resourcedomain.ResourceType, resourceID snowflake.ID) (*SyncJob, error)
	Supersede(ctx context.Context, db *gorm.DB, id snowflake.ID, action Action, reason string, priority int) (bool, error)
	ClaimOldestPending(ctx context.Context, db *gorm.DB) (*SyncJob, error)
	MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, seenUpdatedAt time.Time) (bool, error)
	Requeue(ctx context.Context, db *gorm.DB, id snowflake.ID, retryCount int, lastError string, priority int) (bool, error)
	MarkDead(ctx context.Context, db *gorm.DB, id snowflake.ID, retryCount int, lastError string) (bool, error)
	CountByStatus(ctx context.Context, db *gorm.DB, status JobStatus) (int64, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status JobStatus, limit int) ([]SyncJob, error)
}
