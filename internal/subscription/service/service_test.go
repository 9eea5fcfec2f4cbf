package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
	"github.com/soundline/vocalis/internal/config"
	paymentdomain "github.com/soundline/vocalis/internal/payment/domain"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	resourcerepo "github.com/soundline/vocalis/internal/resource/repository"
	"github.com/soundline/vocalis/internal/subscription/domain"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
	syncrepo "github.com/soundline/vocalis/internal/syncjob/repository"
	syncservice "github.com/soundline/vocalis/internal/syncjob/service"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
	usagerepo "github.com/soundline/vocalis/internal/usage/repository"
	usageservice "github.com/soundline/vocalis/internal/usage/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopAudit struct{}

func (noopAudit) AuditLog(ctx context.Context, tenantID, action, targetType, targetID string, metadata map[string]any) error {
	return nil
}

func (noopAudit) List(ctx context.Context, filter auditdomain.ListFilter) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	usage usagedomain.Service
	svc   domain.Service
}

func testTiers() config.TierConfig {
	return config.TierConfig{
		FreeMinutes:      10,
		FreeAssistants:   1,
		FreePhoneNumbers: 1,
		ProMinutes:       1000,
		ProAssistants:    10,
		ProPhoneNumbers:  5,
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&usagedomain.TenantUsage{}, &resourcedomain.Resource{}, &syncdomain.SyncJob{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	resourceRepo := resourcerepo.Provide()
	usage := usageservice.NewService(usageservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Repo:         usagerepo.Provide(),
		ResourceRepo: resourceRepo,
	})
	syncJobs := syncservice.NewService(syncservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Cfg:   config.Config{Sync: config.SyncConfig{MaxRetries: 5, RetryDemotion: 10}},
		Repo:  syncrepo.Provide(),
	})

	svc := NewService(Params{
		DB:           db,
		Log:          zap.NewNop(),
		Cfg:          config.Config{Tiers: testTiers()},
		Usage:        usage,
		ResourceRepo: resourceRepo,
		SyncJobs:     syncJobs,
		Audit:        noopAudit{},
	})
	return &fixture{db: db, node: node, usage: usage, svc: svc}
}

func (f *fixture) provisionPro(t *testing.T, tenantID string) {
	t.Helper()
	tiers := testTiers()
	require.NoError(t, f.usage.Provision(context.Background(), tenantID, usagedomain.TierPro, usagedomain.Limits{
		Minutes:      tiers.ProMinutes,
		Assistants:   tiers.ProAssistants,
		PhoneNumbers: tiers.ProPhoneNumbers,
	}))
}

// seedAssistants creates active assistants with strictly increasing ages so
// the keep-oldest ordering is deterministic.
func (f *fixture) seedAssistants(t *testing.T, tenantID string, count int) []resourcedomain.Resource {
	t.Helper()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]resourcedomain.Resource, 0, count)
	for i := 0; i < count; i++ {
		ext := fmt.Sprintf("ext-%d", i)
		res := resourcedomain.Resource{
			ID:         f.node.Generate(),
			TenantID:   tenantID,
			Type:       resourcedomain.TypeAssistant,
			Name:       fmt.Sprintf("assistant %d", i),
			ExternalID: &ext,
			Active:     true,
			SyncStatus: resourcedomain.SyncStatusSynced,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, f.db.Create(&res).Error)
		out = append(out, res)
	}
	return out
}

func (f *fixture) pendingJobs(t *testing.T) []syncdomain.SyncJob {
	t.Helper()
	var jobs []syncdomain.SyncJob
	require.NoError(t, f.db.Where("status = ?", syncdomain.StatusPending).Find(&jobs).Error)
	return jobs
}

func event(eventType paymentdomain.EventType, tenantID, tier string) *paymentdomain.SubscriptionEvent {
	return &paymentdomain.SubscriptionEvent{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		Type:            eventType,
		TenantID:        tenantID,
		Tier:            tier,
		OccurredAt:      time.Now().UTC(),
	}
}

func TestHandleEvent_CreatedProvisionsTenant(t *testing.T) {
	f := setup(t)

	transition, err := f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypeSubscriptionCreated, "t1", "pro"))
	require.NoError(t, err)
	assert.Equal(t, usagedomain.TierPro, transition.Tier)
	assert.Equal(t, usagedomain.StatusActive, transition.Status)
	assert.Equal(t, 0, transition.JobsScheduled)

	record, err := f.usage.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, usagedomain.TierPro, record.Tier)
	assert.Equal(t, int64(1000), record.MinutesLimit)
	assert.Equal(t, int64(10), record.AssistantLimit)
}

func TestHandleEvent_PaymentEventForUnknownTenant(t *testing.T) {
	f := setup(t)

	_, err := f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypePaymentFailed, "ghost", ""))
	assert.ErrorIs(t, err, usagedomain.ErrTenantNotProvisioned)
}

func TestHandleEvent_DowngradeKeepsOldestResources(t *testing.T) {
	f := setup(t)
	f.provisionPro(t, "t1")
	assistants := f.seedAssistants(t, "t1", 4)

	transition, err := f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypeSubscriptionUpdated, "t1", "free"))
	require.NoError(t, err)
	assert.Equal(t, usagedomain.TierFree, transition.Tier)
	assert.Equal(t, 3, transition.JobsScheduled)

	jobs := f.pendingJobs(t)
	require.Len(t, jobs, 3)
	scheduled := make(map[snowflake.ID]bool, len(jobs))
	for _, job := range jobs {
		assert.Equal(t, syncdomain.ActionDisable, job.Action)
		assert.Equal(t, "tier downgrade", job.Reason)
		assert.Equal(t, syncdomain.PriorityDowngrade, job.Priority)
		scheduled[job.ResourceID] = true
	}

	// The free tier keeps one assistant; the oldest one survives.
	assert.False(t, scheduled[assistants[0].ID])
	for _, excess := range assistants[1:] {
		assert.True(t, scheduled[excess.ID])
	}
}

func TestHandleEvent_CancellationLandsOnFreeTier(t *testing.T) {
	f := setup(t)
	f.provisionPro(t, "t1")
	f.seedAssistants(t, "t1", 2)

	transition, err := f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypeSubscriptionCancelled, "t1", ""))
	require.NoError(t, err)
	assert.Equal(t, usagedomain.TierFree, transition.Tier)
	assert.Equal(t, usagedomain.StatusCancelled, transition.Status)
	assert.Equal(t, 1, transition.JobsScheduled)

	jobs := f.pendingJobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, "subscription cancelled", jobs[0].Reason)

	record, err := f.usage.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), record.MinutesLimit)
}

func TestHandleEvent_PaymentFailedKeepsTier(t *testing.T) {
	f := setup(t)
	f.provisionPro(t, "t1")
	f.seedAssistants(t, "t1", 3)

	transition, err := f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypePaymentFailed, "t1", ""))
	require.NoError(t, err)
	assert.Equal(t, usagedomain.TierPro, transition.Tier)
	assert.Equal(t, usagedomain.StatusPastDue, transition.Status)

	// Limits are untouched, so nothing gets disabled.
	assert.Equal(t, 0, transition.JobsScheduled)
	assert.Empty(t, f.pendingJobs(t))
}

func TestHandleEvent_PaymentSucceededRestoresActive(t *testing.T) {
	f := setup(t)
	f.provisionPro(t, "t1")

	_, err := f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypePaymentFailed, "t1", ""))
	require.NoError(t, err)

	transition, err := f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypePaymentSucceeded, "t1", ""))
	require.NoError(t, err)
	assert.Equal(t, usagedomain.TierPro, transition.Tier)
	assert.Equal(t, usagedomain.StatusActive, transition.Status)
}

func TestHandleEvent_UnknownTier(t *testing.T) {
	f := setup(t)
	f.provisionPro(t, "t1")

	_, err := f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypeSubscriptionUpdated, "t1", "enterprise"))
	assert.ErrorIs(t, err, domain.ErrUnknownTier)
}

func TestHandleEvent_InvalidEvent(t *testing.T) {
	f := setup(t)

	_, err := f.svc.HandleEvent(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, err = f.svc.HandleEvent(context.Background(), event(paymentdomain.EventTypeSubscriptionCreated, "   ", "pro"))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}
