package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
	"github.com/soundline/vocalis/internal/voiceevents/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	ResourceRepo resourcedomain.Repository
	Usage        usagedomain.Service
	Audit        auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	resourceRepo resourcedomain.Repository
	usage        usagedomain.Service
	audit        auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("voiceevents.service"),
		genID:        p.GenID,
		resourceRepo: p.ResourceRepo,
		usage:        p.Usage,
		audit:        p.Audit,
	}
}

type envelope struct {
	Type        string        `json:"type"`
	TenantID    string        `json:"tenantId"`
	Assistant   *resourceBody `json:"assistant"`
	PhoneNumber *resourceBody `json:"phoneNumber"`
	Call        *callBody     `json:"call"`
}

type resourceBody struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

type callBody struct {
	ID              string `json:"id"`
	DurationSeconds int64  `json:"durationSeconds"`
}

func (s *Service) Handle(ctx context.Context, body []byte) (domain.Outcome, error) {
	var event envelope
	if err := json.Unmarshal(body, &event); err != nil {
		return "", domain.ErrInvalidEvent
	}

	eventType := strings.TrimSpace(event.Type)
	switch eventType {
	case "assistant.created", "assistant.updated":
		return s.upsert(ctx, event, resourcedomain.TypeAssistant, event.Assistant)
	case "assistant.deleted":
		return s.remove(ctx, event, resourcedomain.TypeAssistant, event.Assistant)
	case "phoneNumber.created", "phoneNumber.updated":
		return s.upsert(ctx, event, resourcedomain.TypePhoneNumber, event.PhoneNumber)
	case "phoneNumber.deleted":
		return s.remove(ctx, event, resourcedomain.TypePhoneNumber, event.PhoneNumber)
	case "call.ended":
		return s.recordCall(ctx, event)
	default:
		s.log.Debug("voice event ignored", zap.String("type", eventType))
		return domain.OutcomeIgnored, nil
	}
}

// upsert mirrors a resource the provider reports as existing. Creation events
// for resources we never pushed land here too; the mirror adopts them.
func (s *Service) upsert(ctx context.Context, event envelope, resourceType resourcedomain.ResourceType, body *resourceBody) (domain.Outcome, error) {
	if body == nil || strings.TrimSpace(body.ID) == "" {
		return "", domain.ErrInvalidEvent
	}
	externalID := strings.TrimSpace(body.ID)
	now := time.Now().UTC()

	existing, err := s.resourceRepo.FindByExternalID(ctx, s.db, resourceType, externalID)
	if err != nil && !errors.Is(err, resourcedomain.ErrNotFound) {
		return "", err
	}
	if existing != nil {
		if err := s.resourceRepo.SetSyncStatus(ctx, s.db, existing.ID, resourcedomain.SyncStatusSynced, now); err != nil {
			return "", err
		}
		return domain.OutcomeApplied, nil
	}

	tenantID := strings.TrimSpace(event.TenantID)
	if tenantID == "" {
		return "", domain.ErrMissingTenant
	}

	name := body.Name
	if resourceType == resourcedomain.TypePhoneNumber && body.Number != "" {
		name = body.Number
	}
	res := resourcedomain.Resource{
		ID:           s.genID.Generate(),
		TenantID:     tenantID,
		Type:         resourceType,
		Name:         name,
		ExternalID:   &externalID,
		Active:       true,
		SyncStatus:   resourcedomain.SyncStatusSynced,
		LastSyncedAt: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.resourceRepo.Insert(ctx, s.db, &res); err != nil {
		return "", err
	}

	_ = s.audit.AuditLog(ctx, tenantID, "voiceevents.resource_adopted", string(resourceType), res.ID.String(), map[string]any{
		"external_id": externalID,
		"event_type":  event.Type,
	})
	return domain.OutcomeApplied, nil
}

func (s *Service) remove(ctx context.Context, event envelope, resourceType resourcedomain.ResourceType, body *resourceBody) (domain.Outcome, error) {
	if body == nil || strings.TrimSpace(body.ID) == "" {
		return "", domain.ErrInvalidEvent
	}
	externalID := strings.TrimSpace(body.ID)

	existing, err := s.resourceRepo.FindByExternalID(ctx, s.db, resourceType, externalID)
	if errors.Is(err, resourcedomain.ErrNotFound) {
		// Never mirrored; nothing to converge.
		return domain.OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	if err := s.resourceRepo.MarkInactive(ctx, s.db, existing.ID, resourcedomain.SyncStatusDeleted, time.Now().UTC()); err != nil {
		return "", err
	}
	_ = s.audit.AuditLog(ctx, existing.TenantID, "voiceevents.resource_deleted", string(resourceType), existing.ID.String(), map[string]any{
		"external_id": externalID,
		"event_type":  event.Type,
	})
	return domain.OutcomeApplied, nil
}

// recordCall books completed-call minutes against the tenant's period.
// Partial minutes round up; the provider bills the same way.
func (s *Service) recordCall(ctx context.Context, event envelope) (domain.Outcome, error) {
	if event.Call == nil || event.Call.DurationSeconds <= 0 {
		return domain.OutcomeIgnored, nil
	}
	tenantID := strings.TrimSpace(event.TenantID)
	if tenantID == "" {
		return "", domain.ErrMissingTenant
	}

	minutes := (event.Call.DurationSeconds + 59) / 60
	if err := s.usage.RecordMinutes(ctx, tenantID, minutes); err != nil {
		return "", err
	}
	return domain.OutcomeApplied, nil
}
