package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	obsmetrics "github.com/soundline/vocalis/internal/observability/metrics"
	voicedomain "github.com/soundline/vocalis/internal/providers/voice/domain"
	"github.com/soundline/vocalis/internal/reconcile/domain"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
)

const driftReason = "not found upstream"

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	ResourceRepo resourcedomain.Repository
	SyncJobs     syncdomain.Service
	Voice        voicedomain.Client
	Audit        auditdomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	resourceRepo resourcedomain.Repository
	syncJobs     syncdomain.Service
	voice        voicedomain.Client
	audit        auditdomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("reconcile.service"),
		resourceRepo: p.ResourceRepo,
		syncJobs:     p.SyncJobs,
		voice:        p.Voice,
		audit:        p.Audit,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Sweep(ctx context.Context) (domain.Summary, error) {
	var summary domain.Summary

	tenantIDs, err := s.resourceRepo.ListTenantIDs(ctx, s.db)
	if err != nil {
		return summary, err
	}

	// The provider only bulk-lists assistants, so fetch that inventory once
	// and fall back to per-id probes for phone numbers.
	upstream, err := s.assistantInventory(ctx)
	if err != nil {
		return summary, fmt.Errorf("list provider assistants: %w", err)
	}

	var tenantErrs []error
	for _, tenantID := range tenantIDs {
		checked, drifted, scheduled, err := s.sweepTenant(ctx, tenantID, upstream)
		summary.ResourcesChecked += checked
		summary.DriftDetected += drifted
		summary.JobsScheduled += scheduled
		if err != nil {
			summary.TenantErrors++
			tenantErrs = append(tenantErrs, fmt.Errorf("tenant %s: %w", tenantID, err))
			s.log.Warn("tenant sweep failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			continue
		}
		summary.TenantsChecked++
	}

	outcome := "ok"
	if len(tenantErrs) > 0 {
		outcome = "partial"
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordSweep(ctx, outcome)
	}
	s.log.Info("reconciliation sweep finished",
		zap.Int("tenants_checked", summary.TenantsChecked),
		zap.Int("resources_checked", summary.ResourcesChecked),
		zap.Int("drift_detected", summary.DriftDetected),
		zap.Int("jobs_scheduled", summary.JobsScheduled),
		zap.Int("tenant_errors", summary.TenantErrors),
	)

	// Partial failure still returns the summary; callers decide whether the
	// joined error matters.
	return summary, errors.Join(tenantErrs...)
}

func (s *Service) assistantInventory(ctx context.Context) (map[string]struct{}, error) {
	assistants, err := s.voice.ListAssistants(ctx)
	if err != nil {
		return nil, err
	}
	inventory := make(map[string]struct{}, len(assistants))
	for _, assistant := range assistants {
		inventory[assistant.ID] = struct{}{}
	}
	return inventory, nil
}

func (s *Service) sweepTenant(ctx context.Context, tenantID string, upstream map[string]struct{}) (checked, drifted, scheduled int, err error) {
	assistants, err := s.resourceRepo.ListActiveByTenant(ctx, s.db, tenantID, resourcedomain.TypeAssistant)
	if err != nil {
		return checked, drifted, scheduled, err
	}
	for _, res := range assistants {
		if res.ExternalID == nil || *res.ExternalID == "" {
			continue
		}
		checked++
		if _, exists := upstream[*res.ExternalID]; exists {
			continue
		}
		drifted++
		ok, scheduleErr := s.scheduleCleanup(ctx, res)
		if scheduleErr != nil {
			return checked, drifted, scheduled, scheduleErr
		}
		if ok {
			scheduled++
		}
	}

	phones, err := s.resourceRepo.ListActiveByTenant(ctx, s.db, tenantID, resourcedomain.TypePhoneNumber)
	if err != nil {
		return checked, drifted, scheduled, err
	}
	for _, res := range phones {
		if res.ExternalID == nil || *res.ExternalID == "" {
			continue
		}
		checked++
		_, probeErr := s.voice.GetPhoneNumber(ctx, *res.ExternalID)
		if probeErr == nil {
			continue
		}
		if !errors.Is(probeErr, voicedomain.ErrNotFound) {
			return checked, drifted, scheduled, probeErr
		}
		drifted++
		ok, scheduleErr := s.scheduleCleanup(ctx, res)
		if scheduleErr != nil {
			return checked, drifted, scheduled, scheduleErr
		}
		if ok {
			scheduled++
		}
	}
	return checked, drifted, scheduled, nil
}

// scheduleCleanup flags the drifted mirror and queues its local cleanup at
// drift priority so downgrade enforcement always runs first.
func (s *Service) scheduleCleanup(ctx context.Context, res resourcedomain.Resource) (bool, error) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordDrift(ctx, string(res.Type))
	}
	if err := s.resourceRepo.SetSyncStatus(ctx, s.db, res.ID, resourcedomain.SyncStatusDrift, time.Now().UTC()); err != nil {
		return false, err
	}

	externalID := ""
	if res.ExternalID != nil {
		externalID = *res.ExternalID
	}
	if _, err := s.syncJobs.Enqueue(ctx, syncdomain.EnqueueRequest{
		ResourceType: res.Type,
		ResourceID:   res.ID,
		ExternalID:   externalID,
		Action:       syncdomain.ActionDelete,
		Reason:       driftReason,
		Priority:     syncdomain.PriorityDrift,
	}); err != nil {
		return false, err
	}

	_ = s.audit.AuditLog(ctx, res.TenantID, "reconcile.drift_detected", string(res.Type), res.ID.String(), map[string]any{
		"external_id": externalID,
		"reason":      driftReason,
	})
	return true, nil
}
