package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	resourcerepo "github.com/soundline/vocalis/internal/resource/repository"
	"github.com/soundline/vocalis/internal/usage/domain"
	"github.com/soundline/vocalis/internal/usage/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (*gorm.DB, domain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.TenantUsage{}, &resourcedomain.Resource{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Repo:         repository.Provide(),
		ResourceRepo: resourcerepo.Provide(),
	})
	return db, svc, node
}

func seedTenant(t *testing.T, db *gorm.DB, node *snowflake.Node, tenantID string, record domain.TenantUsage) {
	t.Helper()
	record.ID = node.Generate()
	record.TenantID = tenantID
	if record.Tier == "" {
		record.Tier = domain.TierFree
	}
	if record.Status == "" {
		record.Status = domain.StatusActive
	}
	if record.PeriodStart.IsZero() {
		record.PeriodStart = time.Now().UTC().AddDate(0, 0, -1)
	}
	if record.PeriodEnd.IsZero() {
		record.PeriodEnd = record.PeriodStart.AddDate(0, 1, 0)
	}
	record.UpdatedAt = time.Now().UTC()
	require.NoError(t, db.Create(&record).Error)
}

func seedAssistants(t *testing.T, db *gorm.DB, node *snowflake.Node, tenantID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		now := time.Now().UTC()
		res := resourcedomain.Resource{
			ID:         node.Generate(),
			TenantID:   tenantID,
			Type:       resourcedomain.TypeAssistant,
			Active:     true,
			SyncStatus: resourcedomain.SyncStatusSynced,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		require.NoError(t, db.Create(&res).Error)
	}
}

func TestCanPerform_MinutesWithinLimit(t *testing.T) {
	db, svc, node := setupService(t)
	seedTenant(t, db, node, "t1", domain.TenantUsage{MinutesUsed: 9, MinutesLimit: 10})

	result, err := svc.CanPerform(context.Background(), "t1", domain.KindMinutes, 1)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(9), result.CurrentUsage)
	assert.Equal(t, int64(10), result.Limit)
	assert.Equal(t, domain.WarningCritical, result.Warning)
}

func TestCanPerform_MinutesWouldExceed(t *testing.T) {
	db, svc, node := setupService(t)
	seedTenant(t, db, node, "t1", domain.TenantUsage{MinutesUsed: 9, MinutesLimit: 10})

	result, err := svc.CanPerform(context.Background(), "t1", domain.KindMinutes, 2)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestCanPerform_ZeroLimitNeverAllowed(t *testing.T) {
	db, svc, node := setupService(t)
	seedTenant(t, db, node, "t1", domain.TenantUsage{AssistantLimit: 0})

	result, err := svc.CanPerform(context.Background(), "t1", domain.KindAssistants, 1)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, domain.WarningCritical, result.Warning)
}

func TestCanPerform_AssistantsCountedLive(t *testing.T) {
	db, svc, node := setupService(t)
	seedTenant(t, db, node, "t1", domain.TenantUsage{AssistantLimit: 3})
	seedAssistants(t, db, node, "t1", 2)

	result, err := svc.CanPerform(context.Background(), "t1", domain.KindAssistants, 1)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(2), result.CurrentUsage)

	result, err = svc.CanPerform(context.Background(), "t1", domain.KindAssistants, 2)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestCanPerform_UnprovisionedTenant(t *testing.T) {
	_, svc, _ := setupService(t)

	_, err := svc.CanPerform(context.Background(), "ghost", domain.KindMinutes, 1)
	assert.ErrorIs(t, err, domain.ErrTenantNotProvisioned)
}

func TestCanPerform_InvalidInputs(t *testing.T) {
	db, svc, node := setupService(t)
	seedTenant(t, db, node, "t1", domain.TenantUsage{MinutesLimit: 10})

	_, err := svc.CanPerform(context.Background(), "t1", domain.KindMinutes, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidIncrement)

	_, err = svc.CanPerform(context.Background(), "t1", "bogus", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidKind)
}

func TestWarnLevel_Thresholds(t *testing.T) {
	assert.Equal(t, domain.WarningNone, domain.WarnLevel(7, 10, domain.KindMinutes))
	assert.Equal(t, domain.WarningWarning, domain.WarnLevel(8, 10, domain.KindMinutes))
	assert.Equal(t, domain.WarningCritical, domain.WarnLevel(9, 10, domain.KindMinutes))

	// Counted resources only go critical at the hard cap.
	assert.Equal(t, domain.WarningWarning, domain.WarnLevel(9, 10, domain.KindAssistants))
	assert.Equal(t, domain.WarningCritical, domain.WarnLevel(10, 10, domain.KindAssistants))
}

func TestRecordMinutes(t *testing.T) {
	db, svc, node := setupService(t)
	seedTenant(t, db, node, "t1", domain.TenantUsage{MinutesUsed: 3, MinutesLimit: 10})

	require.NoError(t, svc.RecordMinutes(context.Background(), "t1", 4))

	record, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), record.MinutesUsed)

	assert.ErrorIs(t, svc.RecordMinutes(context.Background(), "t1", 0), domain.ErrInvalidIncrement)
	assert.ErrorIs(t, svc.RecordMinutes(context.Background(), "ghost", 1), domain.ErrTenantNotProvisioned)
}

func TestApplyLimits_AtomicWrite(t *testing.T) {
	db, svc, node := setupService(t)
	seedTenant(t, db, node, "t1", domain.TenantUsage{MinutesLimit: 10, AssistantLimit: 1})

	limits := domain.Limits{Minutes: 1000, Assistants: 10, PhoneNumbers: 5}
	require.NoError(t, svc.ApplyLimits(context.Background(), "t1", domain.TierPro, domain.StatusActive, limits))

	record, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, record.Tier)
	assert.Equal(t, domain.StatusActive, record.Status)
	assert.Equal(t, int64(1000), record.MinutesLimit)
	assert.Equal(t, int64(10), record.AssistantLimit)
	assert.Equal(t, int64(5), record.PhoneNumberLimit)
}

func TestProvision_Idempotent(t *testing.T) {
	_, svc, _ := setupService(t)

	limits := domain.Limits{Minutes: 10, Assistants: 1, PhoneNumbers: 1}
	require.NoError(t, svc.Provision(context.Background(), "t1", domain.TierFree, limits))
	require.NoError(t, svc.Provision(context.Background(), "t1", domain.TierFree, limits))

	record, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, record.Tier)
	assert.Equal(t, int64(10), record.MinutesLimit)
}

func TestRolloverDuePeriods(t *testing.T) {
	db, svc, node := setupService(t)

	now := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	seedTenant(t, db, node, "due", domain.TenantUsage{
		MinutesUsed: 9,
		PeriodStart: now.AddDate(0, -2, 0),
		PeriodEnd:   now.AddDate(0, -1, 0),
	})
	seedTenant(t, db, node, "current", domain.TenantUsage{
		MinutesUsed: 4,
		PeriodStart: now.AddDate(0, 0, -10),
		PeriodEnd:   now.AddDate(0, 0, 20),
	})

	rolled, err := svc.RolloverDuePeriods(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, rolled)

	due, err := svc.Get(context.Background(), "due")
	require.NoError(t, err)
	assert.Equal(t, int64(0), due.MinutesUsed)
	assert.True(t, due.PeriodEnd.After(now))

	current, err := svc.Get(context.Background(), "current")
	require.NoError(t, err)
	assert.Equal(t, int64(4), current.MinutesUsed)
}
