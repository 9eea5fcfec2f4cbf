package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	"github.com/soundline/vocalis/internal/syncjob/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.SyncJob) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.SyncJob, error) {
	var job domain.SyncJob
	err := db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repo) FindActiveByResource(ctx context.Context, db *gorm.DB, resourceType resourcedomain.ResourceType, resourceID snowflake.ID) (*domain.SyncJob, error) {
	var job domain.SyncJob
	err := db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND status IN ?",
			resourceType, resourceID, []domain.JobStatus{domain.StatusPending, domain.StatusClaimed}).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repo) Supersede(ctx context.Context, db *gorm.DB, id snowflake.ID, action domain.Action, reason string, priority int) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sync_jobs
		 SET action = ?, reason = ?, priority = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		action, reason, priority, time.Now().UTC(),
		id, domain.StatusPending, domain.StatusClaimed,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClaimOldestPending selects the best candidate, then claims it with a
// compare-and-set on status. A concurrent claimer losing the race sees zero
// rows affected and tries the next candidate. The claim timestamp doubles as
// the job version MarkSucceeded checks, truncated to microseconds so it
// round-trips identically through every dialect.
func (r *repo) ClaimOldestPending(ctx context.Context, db *gorm.DB) (*domain.SyncJob, error) {
	const attempts = 3

	for i := 0; i < attempts; i++ {
		var job domain.SyncJob
		err := db.WithContext(ctx).
			Where("status = ?", domain.StatusPending).
			Order("priority ASC, created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC().Truncate(time.Microsecond)
		result := db.WithContext(ctx).Exec(
			`UPDATE sync_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			domain.StatusClaimed, now, job.ID, domain.StatusPending,
		)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			// Lost the race; another claimer took this job.
			continue
		}
		job.Status = domain.StatusClaimed
		job.UpdatedAt = now
		return &job, nil
	}
	return nil, nil
}

// MarkSucceeded only succeeds when the row still carries the claim's
// updated_at; a supersession while the job executed bumps it, and the caller
// must requeue instead of burying the merged intent.
func (r *repo) MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, seenUpdatedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sync_jobs SET status = ?, last_error = '', updated_at = ? WHERE id = ? AND status = ? AND updated_at = ?`,
		domain.StatusSucceeded, time.Now().UTC(), id, domain.StatusClaimed, seenUpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Requeue(ctx context.Context, db *gorm.DB, id snowflake.ID, retryCount int, lastError string, priority int) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sync_jobs
		 SET status = ?, retry_count = ?, last_error = ?, priority = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusPending, retryCount, lastError, priority, time.Now().UTC(),
		id, domain.StatusClaimed,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkDead(ctx context.Context, db *gorm.DB, id snowflake.ID, retryCount int, lastError string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sync_jobs
		 SET status = ?, retry_count = ?, last_error = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusDead, retryCount, lastError, time.Now().UTC(),
		id, domain.StatusClaimed,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, status domain.JobStatus) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.SyncJob{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status domain.JobStatus, limit int) ([]domain.SyncJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []domain.SyncJob
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
