package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soundline/vocalis/internal/config"
	"github.com/soundline/vocalis/internal/syncjob/domain"
	"github.com/soundline/vocalis/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Cfg   config.Config
	Repo  domain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	maxRetries int
	demotion   int
}

func NewService(p Params) domain.Service {
	maxRetries := p.Cfg.Sync.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("syncjob.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		maxRetries: maxRetries,
		demotion:   p.Cfg.Sync.RetryDemotion,
	}
}

func (s *Service) Enqueue(ctx context.Context, req domain.EnqueueRequest) (snowflake.ID, error) {
	if req.ResourceID == 0 || req.Action == "" {
		return 0, domain.ErrInvalidJob
	}
	req.Reason = strings.TrimSpace(req.Reason)

	// The partial unique index on active (resource_type, resource_id) backs
	// the lookup: two racing enqueues cannot both insert. The loser's insert
	// fails as a duplicate and the retry takes the supersession path.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		jobID, err := s.enqueueOnce(ctx, req)
		if err == nil {
			return jobID, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}

func (s *Service) enqueueOnce(ctx context.Context, req domain.EnqueueRequest) (snowflake.ID, error) {
	var jobID snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindActiveByResource(ctx, tx, req.ResourceType, req.ResourceID)
		if err != nil {
			return err
		}

		if existing != nil {
			// Merge rather than queue a second in-flight mutation for the
			// same resource. The stronger priority wins.
			priority := existing.Priority
			if req.Priority < priority {
				priority = req.Priority
			}
			if _, err := s.repo.Supersede(ctx, tx, existing.ID, req.Action, req.Reason, priority); err != nil {
				return err
			}
			jobID = existing.ID
			s.log.Debug("sync job superseded",
				zap.String("job_id", existing.ID.String()),
				zap.String("action", string(req.Action)),
				zap.String("reason", req.Reason),
			)
			return nil
		}

		now := time.Now().UTC()
		job := domain.SyncJob{
			ID:           s.genID.Generate(),
			ResourceType: req.ResourceType,
			ResourceID:   req.ResourceID,
			ExternalID:   strings.TrimSpace(req.ExternalID),
			Action:       req.Action,
			Reason:       req.Reason,
			Priority:     req.Priority,
			Status:       domain.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Insert(ctx, tx, &job); err != nil {
			return err
		}
		jobID = job.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return jobID, nil
}

func (s *Service) ClaimNext(ctx context.Context) (*domain.SyncJob, error) {
	return s.repo.ClaimOldestPending(ctx, s.db)
}

func (s *Service) Complete(ctx context.Context, jobID snowflake.ID, claimedVersion time.Time) error {
	ok, err := s.repo.MarkSucceeded(ctx, s.db, jobID, claimedVersion)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.StatusClaimed {
		return domain.ErrNotClaimable
	}

	// Still claimed but the version moved: a supersession landed while the
	// job executed. What ran upstream is the stale intent, so the job goes
	// back to pending and the merged action runs on the next claim.
	if _, err := s.repo.Requeue(ctx, s.db, jobID, job.RetryCount, "", job.Priority); err != nil {
		return err
	}
	s.log.Info("sync job superseded during execution, requeued",
		zap.String("job_id", jobID.String()),
		zap.String("action", string(job.Action)),
	)
	return nil
}

func (s *Service) Fail(ctx context.Context, jobID snowflake.ID, failErr error) (domain.FailOutcome, error) {
	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != domain.StatusClaimed {
		return "", domain.ErrNotClaimable
	}

	detail := ""
	if failErr != nil {
		detail = failErr.Error()
	}
	retryCount := job.RetryCount + 1

	if retryCount >= s.maxRetries {
		if _, err := s.repo.MarkDead(ctx, s.db, jobID, retryCount, detail); err != nil {
			return "", err
		}
		s.log.Error("sync job exhausted retries",
			zap.String("job_id", jobID.String()),
			zap.String("action", string(job.Action)),
			zap.String("resource_id", job.ResourceID.String()),
			zap.Int("retry_count", retryCount),
			zap.String("last_error", detail),
		)
		return domain.FailOutcomeDead, nil
	}

	if _, err := s.repo.Requeue(ctx, s.db, jobID, retryCount, detail, job.Priority+s.demotion); err != nil {
		return "", err
	}
	s.log.Warn("sync job requeued",
		zap.String("job_id", jobID.String()),
		zap.Int("retry_count", retryCount),
		zap.String("last_error", detail),
	)
	return domain.FailOutcomeRetry, nil
}

func (s *Service) Depth(ctx context.Context) (domain.QueueDepth, error) {
	var depth domain.QueueDepth
	var err error
	if depth.Pending, err = s.repo.CountByStatus(ctx, s.db, domain.StatusPending); err != nil {
		return depth, err
	}
	if depth.Claimed, err = s.repo.CountByStatus(ctx, s.db, domain.StatusClaimed); err != nil {
		return depth, err
	}
	if depth.Dead, err = s.repo.CountByStatus(ctx, s.db, domain.StatusDead); err != nil {
		return depth, err
	}
	return depth, nil
}

func (s *Service) ListDead(ctx context.Context, limit int) ([]domain.SyncJob, error) {
	return s.repo.ListByStatus(ctx, s.db, domain.StatusDead, limit)
}
