package service

import (
	"context"
	"errors"
	"strings"

	"github.com/soundline/vocalis/internal/config"
	paymentdomain "github.com/soundline/vocalis/internal/payment/domain"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	"github.com/soundline/vocalis/internal/subscription/domain"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	Usage        usagedomain.Service
	ResourceRepo resourcedomain.Repository
	SyncJobs     syncdomain.Service
	Audit        auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	tiers        config.TierConfig
	usage        usagedomain.Service
	resourceRepo resourcedomain.Repository
	syncJobs     syncdomain.Service
	audit        auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("subscription.service"),
		tiers:        p.Cfg.Tiers,
		usage:        p.Usage,
		resourceRepo: p.ResourceRepo,
		syncJobs:     p.SyncJobs,
		audit:        p.Audit,
	}
}

func (s *Service) HandleEvent(ctx context.Context, event *paymentdomain.SubscriptionEvent) (domain.Transition, error) {
	if event == nil || strings.TrimSpace(event.TenantID) == "" {
		return domain.Transition{}, domain.ErrInvalidEvent
	}
	tenantID := strings.TrimSpace(event.TenantID)

	current, err := s.usage.Get(ctx, tenantID)
	provisioned := err == nil
	if err != nil && !errors.Is(err, usagedomain.ErrTenantNotProvisioned) {
		return domain.Transition{}, err
	}

	tier, status, err := s.resolve(event, current, provisioned)
	if err != nil {
		return domain.Transition{}, err
	}
	limits := s.limitsFor(tier)

	if !provisioned {
		// Only lifecycle events may create a ledger row. A payment event for
		// a tenant we never saw is a wiring fault upstream.
		switch event.Type {
		case paymentdomain.EventTypeSubscriptionCreated, paymentdomain.EventTypeSubscriptionUpdated:
			if err := s.usage.Provision(ctx, tenantID, tier, limits); err != nil {
				return domain.Transition{}, err
			}
		default:
			return domain.Transition{}, usagedomain.ErrTenantNotProvisioned
		}
	}

	if err := s.usage.ApplyLimits(ctx, tenantID, tier, status, limits); err != nil {
		return domain.Transition{}, err
	}

	reason := "tier downgrade"
	if event.Type == paymentdomain.EventTypeSubscriptionCancelled {
		reason = "subscription cancelled"
	}
	scheduled, err := s.enforceCaps(ctx, tenantID, limits, reason)
	if err != nil {
		return domain.Transition{}, err
	}

	transition := domain.Transition{
		TenantID:      tenantID,
		Tier:          tier,
		Status:        status,
		JobsScheduled: scheduled,
	}

	_ = s.audit.AuditLog(ctx, tenantID, "subscription.transition", "subscription", tenantID, map[string]any{
		"provider":          event.Provider,
		"provider_event_id": event.ProviderEventID,
		"event_type":        string(event.Type),
		"tier":              string(tier),
		"status":            string(status),
		"jobs_scheduled":    scheduled,
	})

	s.log.Info("subscription transition applied",
		zap.String("tenant_id", tenantID),
		zap.String("event_type", string(event.Type)),
		zap.String("tier", string(tier)),
		zap.String("status", string(status)),
		zap.Int("jobs_scheduled", scheduled),
	)
	return transition, nil
}

// resolve maps the event onto the tenant's next tier and status. Payment
// events never change the tier; lifecycle events may.
func (s *Service) resolve(event *paymentdomain.SubscriptionEvent, current usagedomain.TenantUsage, provisioned bool) (usagedomain.Tier, usagedomain.Status, error) {
	currentTier := current.Tier
	if !provisioned {
		currentTier = usagedomain.TierFree
	}

	switch event.Type {
	case paymentdomain.EventTypeSubscriptionCreated, paymentdomain.EventTypeSubscriptionUpdated:
		tier, err := parseTier(event.Tier, currentTier)
		if err != nil {
			return "", "", err
		}
		return tier, usagedomain.StatusActive, nil
	case paymentdomain.EventTypeSubscriptionCancelled:
		// Cancellation lands the tenant on the free tier's limits.
		return usagedomain.TierFree, usagedomain.StatusCancelled, nil
	case paymentdomain.EventTypePaymentFailed:
		return currentTier, usagedomain.StatusPastDue, nil
	case paymentdomain.EventTypePaymentSucceeded:
		return currentTier, usagedomain.StatusActive, nil
	default:
		return "", "", domain.ErrInvalidEvent
	}
}

func parseTier(raw string, fallback usagedomain.Tier) (usagedomain.Tier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback, nil
	case string(usagedomain.TierFree):
		return usagedomain.TierFree, nil
	case string(usagedomain.TierPro):
		return usagedomain.TierPro, nil
	default:
		return "", domain.ErrUnknownTier
	}
}

func (s *Service) limitsFor(tier usagedomain.Tier) usagedomain.Limits {
	if tier == usagedomain.TierPro {
		return usagedomain.Limits{
			Minutes:      s.tiers.ProMinutes,
			Assistants:   s.tiers.ProAssistants,
			PhoneNumbers: s.tiers.ProPhoneNumbers,
		}
	}
	return usagedomain.Limits{
		Minutes:      s.tiers.FreeMinutes,
		Assistants:   s.tiers.FreeAssistants,
		PhoneNumbers: s.tiers.FreePhoneNumbers,
	}
}

// enforceCaps disables resources in excess of the new limits. The oldest
// resources survive; the newest are scheduled for disablement so a tenant's
// earliest setup keeps working after a downgrade.
func (s *Service) enforceCaps(ctx context.Context, tenantID string, limits usagedomain.Limits, reason string) (int, error) {
	scheduled := 0
	caps := []struct {
		resourceType resourcedomain.ResourceType
		limit        int64
	}{
		{resourcedomain.TypeAssistant, limits.Assistants},
		{resourcedomain.TypePhoneNumber, limits.PhoneNumbers},
	}

	for _, quota := range caps {
		active, err := s.resourceRepo.ListActiveByTenant(ctx, s.db, tenantID, quota.resourceType)
		if err != nil {
			return scheduled, err
		}
		keep := quota.limit
		if keep < 0 {
			keep = 0
		}
		if int64(len(active)) <= keep {
			continue
		}
		for _, excess := range active[keep:] {
			externalID := ""
			if excess.ExternalID != nil {
				externalID = *excess.ExternalID
			}
			if _, err := s.syncJobs.Enqueue(ctx, syncdomain.EnqueueRequest{
				ResourceType: quota.resourceType,
				ResourceID:   excess.ID,
				ExternalID:   externalID,
				Action:       syncdomain.ActionDisable,
				Reason:       reason,
				Priority:     syncdomain.PriorityDowngrade,
			}); err != nil {
				return scheduled, err
			}
			scheduled++
		}
	}
	return scheduled, nil
}
