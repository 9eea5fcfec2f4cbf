package service

import (
	"context"
	"errors"
	"time"

	"github.com/soundline/vocalis/internal/enforcement/domain"
	obsmetrics "github.com/soundline/vocalis/internal/observability/metrics"
	voicedomain "github.com/soundline/vocalis/internal/providers/voice/domain"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	SyncJobs     syncdomain.Service
	ResourceRepo resourcedomain.Repository
	Voice        voicedomain.Client
	Audit        auditdomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	syncJobs     syncdomain.Service
	resourceRepo resourcedomain.Repository
	voice        voicedomain.Client
	audit        auditdomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("enforcement.service"),
		syncJobs:     p.SyncJobs,
		resourceRepo: p.ResourceRepo,
		voice:        p.Voice,
		audit:        p.Audit,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) ProcessOne(ctx context.Context) (*domain.Result, error) {
	job, err := s.syncJobs.ClaimNext(ctx)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	vanished, execErr := s.execute(ctx, job)

	result := domain.Result{
		JobID:      job.ID,
		Action:     job.Action,
		ResourceID: job.ResourceID,
	}

	if execErr != nil {
		outcome, failErr := s.syncJobs.Fail(ctx, job.ID, execErr)
		if failErr != nil {
			return nil, failErr
		}
		result.Detail = execErr.Error()
		if outcome == syncdomain.FailOutcomeDead {
			result.Outcome = domain.OutcomeDead
			if err := s.resourceRepo.SetSyncStatus(ctx, s.db, job.ResourceID, resourcedomain.SyncStatusDrift, time.Now().UTC()); err != nil {
				s.log.Warn("failed to flag resource after dead job",
					zap.String("resource_id", job.ResourceID.String()),
					zap.Error(err),
				)
			}
		} else {
			result.Outcome = domain.OutcomeRetried
		}
		s.record(ctx, job, result.Outcome)
		return &result, nil
	}

	if err := s.syncJobs.Complete(ctx, job.ID, job.UpdatedAt); err != nil {
		return nil, err
	}
	if err := s.applyLocal(ctx, job, vanished); err != nil {
		return nil, err
	}

	result.Outcome = domain.OutcomeSucceeded
	s.record(ctx, job, result.Outcome)
	return &result, nil
}

func (s *Service) Drain(ctx context.Context, max int) (domain.Summary, error) {
	if max <= 0 {
		max = 100
	}
	var summary domain.Summary
	for summary.Processed < max {
		result, err := s.ProcessOne(ctx)
		if err != nil {
			return summary, err
		}
		if result == nil {
			break
		}
		summary.Processed++
		switch result.Outcome {
		case domain.OutcomeSucceeded:
			summary.Succeeded++
		case domain.OutcomeRetried:
			summary.Retried++
		case domain.OutcomeDead:
			summary.Dead++
		}
	}
	return summary, nil
}

// execute performs the job's mutation upstream. A resource already gone from
// the provider satisfies disable, delete, and update intents, so ErrNotFound
// reports success with vanished=true rather than an error.
func (s *Service) execute(ctx context.Context, job *syncdomain.SyncJob) (vanished bool, err error) {
	// Resources never pushed upstream have nothing to mutate there.
	if job.ExternalID == "" {
		return false, nil
	}

	switch job.Action {
	case syncdomain.ActionDisable:
		err = s.updateUpstream(ctx, job, voicedomain.UpdateRequest{Disabled: boolPtr(true)})
	case syncdomain.ActionEnable:
		err = s.updateUpstream(ctx, job, voicedomain.UpdateRequest{Disabled: boolPtr(false)})
	case syncdomain.ActionDelete:
		err = s.deleteUpstream(ctx, job)
	case syncdomain.ActionUpdate:
		err = s.pushUpdate(ctx, job)
	default:
		return false, domain.ErrUnknownAction
	}

	if errors.Is(err, voicedomain.ErrNotFound) {
		return true, nil
	}
	return false, err
}

func (s *Service) updateUpstream(ctx context.Context, job *syncdomain.SyncJob, req voicedomain.UpdateRequest) error {
	switch job.ResourceType {
	case resourcedomain.TypeAssistant:
		return s.voice.UpdateAssistant(ctx, job.ExternalID, req)
	case resourcedomain.TypePhoneNumber:
		return s.voice.UpdatePhoneNumber(ctx, job.ExternalID, req)
	default:
		return resourcedomain.ErrInvalidType
	}
}

func (s *Service) deleteUpstream(ctx context.Context, job *syncdomain.SyncJob) error {
	switch job.ResourceType {
	case resourcedomain.TypeAssistant:
		return s.voice.DeleteAssistant(ctx, job.ExternalID)
	case resourcedomain.TypePhoneNumber:
		return s.voice.DeletePhoneNumber(ctx, job.ExternalID)
	default:
		return resourcedomain.ErrInvalidType
	}
}

// pushUpdate re-sends the local record's mutable fields upstream.
func (s *Service) pushUpdate(ctx context.Context, job *syncdomain.SyncJob) error {
	res, err := s.resourceRepo.FindByID(ctx, s.db, job.ResourceID)
	if err != nil {
		return err
	}
	req := voicedomain.UpdateRequest{
		Disabled: boolPtr(!res.Active),
	}
	if res.Name != "" {
		req.Name = &res.Name
	}
	return s.updateUpstream(ctx, job, req)
}

// applyLocal brings the local mirror in line with what the job achieved.
func (s *Service) applyLocal(ctx context.Context, job *syncdomain.SyncJob, vanished bool) error {
	now := time.Now().UTC()

	if vanished {
		// The provider no longer has it; the mirror records the deletion
		// regardless of what the job originally wanted.
		return s.resourceRepo.MarkInactive(ctx, s.db, job.ResourceID, resourcedomain.SyncStatusDeleted, now)
	}

	switch job.Action {
	case syncdomain.ActionDisable:
		return s.resourceRepo.MarkInactive(ctx, s.db, job.ResourceID, resourcedomain.SyncStatusSynced, now)
	case syncdomain.ActionEnable:
		return s.resourceRepo.MarkActive(ctx, s.db, job.ResourceID, now)
	case syncdomain.ActionDelete:
		return s.resourceRepo.MarkInactive(ctx, s.db, job.ResourceID, resourcedomain.SyncStatusDeleted, now)
	case syncdomain.ActionUpdate:
		return s.resourceRepo.SetSyncStatus(ctx, s.db, job.ResourceID, resourcedomain.SyncStatusSynced, now)
	default:
		return domain.ErrUnknownAction
	}
}

func (s *Service) record(ctx context.Context, job *syncdomain.SyncJob, outcome domain.Outcome) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordSyncJob(ctx, string(job.Action), string(outcome))
	}
	tenantID := ""
	if res, err := s.resourceRepo.FindByID(ctx, s.db, job.ResourceID); err == nil {
		tenantID = res.TenantID
	}
	_ = s.audit.AuditLog(ctx, tenantID, "enforcement."+string(job.Action), string(job.ResourceType), job.ResourceID.String(), map[string]any{
		"job_id":      job.ID.String(),
		"external_id": job.ExternalID,
		"reason":      job.Reason,
		"outcome":     string(outcome),
		"retry_count": job.RetryCount,
	})
}

func boolPtr(v bool) *bool { return &v }
