package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/soundline/vocalis/internal/observability/metrics"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	"github.com/soundline/vocalis/internal/usage/domain"
	"github.com/soundline/vocalis/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	ResourceRepo resourcedomain.Repository
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	resourceRepo resourcedomain.Repository
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("usage.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		resourceRepo: p.ResourceRepo,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Provision(ctx context.Context, tenantID string, tier domain.Tier, limits domain.Limits) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.ErrTenantNotProvisioned
	}

	now := time.Now().UTC()
	record := domain.TenantUsage{
		ID:               s.genID.Generate(),
		TenantID:         tenantID,
		Tier:             tier,
		Status:           domain.StatusActive,
		MinutesLimit:     limits.Minutes,
		AssistantLimit:   limits.Assistants,
		PhoneNumberLimit: limits.PhoneNumbers,
		PeriodStart:      now,
		PeriodEnd:        now.AddDate(0, 1, 0),
		UpdatedAt:        now,
	}
	err := s.repo.Insert(ctx, s.db, &record)
	if db.IsDuplicateKeyErr(err) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("tenant provisioned",
		zap.String("tenant_id", tenantID),
		zap.String("tier", string(tier)),
	)
	return nil
}

func (s *Service) CanPerform(ctx context.Context, tenantID string, kind domain.LimitKind, increment int64) (domain.CheckResult, error) {
	if increment < 0 {
		return domain.CheckResult{}, domain.ErrInvalidIncrement
	}

	record, err := s.repo.FindByTenant(ctx, s.db, tenantID)
	if err != nil {
		return domain.CheckResult{}, err
	}

	var used, limit int64
	switch kind {
	case domain.KindMinutes:
		used = record.MinutesUsed
		limit = record.MinutesLimit
	case domain.KindAssistants:
		used, err = s.resourceRepo.CountActive(ctx, s.db, tenantID, resourcedomain.TypeAssistant)
		if err != nil {
			return domain.CheckResult{}, err
		}
		limit = record.AssistantLimit
	case domain.KindPhoneNumbers:
		used, err = s.resourceRepo.CountActive(ctx, s.db, tenantID, resourcedomain.TypePhoneNumber)
		if err != nil {
			return domain.CheckResult{}, err
		}
		limit = record.PhoneNumberLimit
	default:
		return domain.CheckResult{}, domain.ErrInvalidKind
	}

	result := domain.CheckResult{
		Kind:         kind,
		CurrentUsage: used,
		Limit:        limit,
		Warning:      domain.WarnLevel(used, limit, kind),
	}

	// A zero limit means the tier grants nothing of this kind; treat it as
	// never allowed rather than dividing by it.
	if limit <= 0 {
		result.Allowed = false
	} else {
		result.Allowed = used+increment <= limit
	}

	if !result.Allowed && s.obsMetrics != nil {
		s.obsMetrics.RecordLimitDenial(ctx, string(kind))
	}
	return result, nil
}

func (s *Service) RecordMinutes(ctx context.Context, tenantID string, minutes int64) error {
	if minutes <= 0 {
		return domain.ErrInvalidIncrement
	}
	updated, err := s.repo.AddMinutes(ctx, s.db, tenantID, minutes, time.Now().UTC())
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrTenantNotProvisioned
	}
	return nil
}

func (s *Service) ApplyLimits(ctx context.Context, tenantID string, tier domain.Tier, status domain.Status, limits domain.Limits) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return domain.ErrTenantNotProvisioned
	}
	updated, err := s.repo.UpdateLimits(ctx, s.db, tenantID, tier, status, limits, time.Now().UTC())
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrTenantNotProvisioned
	}
	s.log.Info("tenant limits updated",
		zap.String("tenant_id", tenantID),
		zap.String("tier", string(tier)),
		zap.String("status", string(status)),
		zap.Int64("minutes_limit", limits.Minutes),
		zap.Int64("assistant_limit", limits.Assistants),
	)
	return nil
}

func (s *Service) RolloverDuePeriods(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDuePeriods(ctx, s.db, now, 200)
	if err != nil {
		return 0, err
	}

	rolled := 0
	for _, record := range due {
		newStart := record.PeriodEnd
		newEnd := newStart.AddDate(0, 1, 0)
		// Catch up if the tenant was idle across several periods.
		for !newEnd.After(now) {
			newStart = newEnd
			newEnd = newStart.AddDate(0, 1, 0)
		}
		ok, err := s.repo.ResetPeriod(ctx, s.db, record.TenantID, record.PeriodEnd, newStart, newEnd)
		if err != nil {
			s.log.Warn("period rollover failed",
				zap.String("tenant_id", record.TenantID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			rolled++
		}
	}
	return rolled, nil
}

func (s *Service) Get(ctx context.Context, tenantID string) (domain.TenantUsage, error) {
	record, err := s.repo.FindByTenant(ctx, s.db, tenantID)
	if err != nil {
		return domain.TenantUsage{}, err
	}
	return *record, nil
}
