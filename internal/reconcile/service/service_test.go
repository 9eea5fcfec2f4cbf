package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
	"github.com/soundline/vocalis/internal/config"
	voicedomain "github.com/soundline/vocalis/internal/providers/voice/domain"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	resourcerepo "github.com/soundline/vocalis/internal/resource/repository"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
	syncrepo "github.com/soundline/vocalis/internal/syncjob/repository"
	syncservice "github.com/soundline/vocalis/internal/syncjob/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/soundline/vocalis/internal/reconcile/domain"
)

type mockVoice struct {
	mock.Mock
}

func (m *mockVoice) ListAssistants(ctx context.Context) ([]voicedomain.Assistant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]voicedomain.Assistant), args.Error(1)
}

func (m *mockVoice) GetAssistant(ctx context.Context, externalID string) (*voicedomain.Assistant, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voicedomain.Assistant), args.Error(1)
}

func (m *mockVoice) UpdateAssistant(ctx context.Context, externalID string, req voicedomain.UpdateRequest) error {
	return m.Called(ctx, externalID, req).Error(0)
}

func (m *mockVoice) DeleteAssistant(ctx context.Context, externalID string) error {
	return m.Called(ctx, externalID).Error(0)
}

func (m *mockVoice) GetPhoneNumber(ctx context.Context, externalID string) (*voicedomain.PhoneNumber, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voicedomain.PhoneNumber), args.Error(1)
}

func (m *mockVoice) UpdatePhoneNumber(ctx context.Context, externalID string, req voicedomain.UpdateRequest) error {
	return m.Called(ctx, externalID, req).Error(0)
}

func (m *mockVoice) DeletePhoneNumber(ctx context.Context, externalID string) error {
	return m.Called(ctx, externalID).Error(0)
}

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
	voice *mockVoice
	svc   domain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&resourcedomain.Resource{}, &syncdomain.SyncJob{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	syncJobs := syncservice.NewService(syncservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Cfg:   config.Config{Sync: config.SyncConfig{MaxRetries: 5, RetryDemotion: 10}},
		Repo:  syncrepo.Provide(),
	})

	voice := &mockVoice{}
	svc := NewService(Params{
		DB:           db,
		Log:          zap.NewNop(),
		ResourceRepo: resourcerepo.Provide(),
		SyncJobs:     syncJobs,
		Voice:        voice,
		Audit:        noopAudit{},
	})
	return &fixture{db: db, node: node, voice: voice, svc: svc}
}

func (f *fixture) seed(t *testing.T, tenantID string, resourceType resourcedomain.ResourceType, externalID string) resourcedomain.Resource {
	t.Helper()
	now := time.Now().UTC()
	res := resourcedomain.Resource{
		ID:         f.node.Generate(),
		TenantID:   tenantID,
		Type:       resourceType,
		Active:     true,
		SyncStatus: resourcedomain.SyncStatusSynced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if externalID != "" {
		res.ExternalID = &externalID
	}
	require.NoError(t, f.db.Create(&res).Error)
	return res
}

func (f *fixture) pendingJobs(t *testing.T) []syncdomain.SyncJob {
	t.Helper()
	var jobs []syncdomain.SyncJob
	require.NoError(t, f.db.Where("status = ?", syncdomain.StatusPending).Find(&jobs).Error)
	return jobs
}

func TestSweep_NoDrift(t *testing.T) {
	f := setup(t)
	f.seed(t, "t1", resourcedomain.TypeAssistant, "ext-1")
	f.seed(t, "t1", resourcedomain.TypePhoneNumber, "pn-1")

	f.voice.On("ListAssistants", mock.Anything).Return([]voicedomain.Assistant{{ID: "ext-1"}}, nil)
	f.voice.On("GetPhoneNumber", mock.Anything, "pn-1").Return(&voicedomain.PhoneNumber{ID: "pn-1"}, nil)

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TenantsChecked)
	assert.Equal(t, 2, summary.ResourcesChecked)
	assert.Equal(t, 0, summary.DriftDetected)
	assert.Empty(t, f.pendingJobs(t))
}

func TestSweep_AssistantMissingUpstream(t *testing.T) {
	f := setup(t)
	res := f.seed(t, "t1", resourcedomain.TypeAssistant, "ext-gone")

	f.voice.On("ListAssistants", mock.Anything).Return([]voicedomain.Assistant{}, nil)

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DriftDetected)
	assert.Equal(t, 1, summary.JobsScheduled)

	jobs := f.pendingJobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, syncdomain.ActionDelete, jobs[0].Action)
	assert.Equal(t, "not found upstream", jobs[0].Reason)
	assert.Equal(t, syncdomain.PriorityDrift, jobs[0].Priority)
	assert.Equal(t, res.ID, jobs[0].ResourceID)

	var reloaded resourcedomain.Resource
	require.NoError(t, f.db.First(&reloaded, "id = ?", res.ID).Error)
	assert.Equal(t, resourcedomain.SyncStatusDrift, reloaded.SyncStatus)
}

func TestSweep_PhoneNumberMissingUpstream(t *testing.T) {
	f := setup(t)
	res := f.seed(t, "t1", resourcedomain.TypePhoneNumber, "pn-gone")

	f.voice.On("ListAssistants", mock.Anything).Return([]voicedomain.Assistant{}, nil)
	f.voice.On("GetPhoneNumber", mock.Anything, "pn-gone").Return(nil, voicedomain.ErrNotFound)

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DriftDetected)

	jobs := f.pendingJobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, res.ID, jobs[0].ResourceID)
}

func TestSweep_SkipsLocalOnlyResources(t *testing.T) {
	f := setup(t)
	f.seed(t, "t1", resourcedomain.TypeAssistant, "")

	f.voice.On("ListAssistants", mock.Anything).Return([]voicedomain.Assistant{}, nil)

	summary, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ResourcesChecked)
	assert.Equal(t, 0, summary.DriftDetected)
}

func TestSweep_InventoryFailureAborts(t *testing.T) {
	f := setup(t)
	f.seed(t, "t1", resourcedomain.TypeAssistant, "ext-1")

	f.voice.On("ListAssistants", mock.Anything).Return(nil, voicedomain.ErrUnavailable)

	_, err := f.svc.Sweep(context.Background())
	assert.ErrorIs(t, err, voicedomain.ErrUnavailable)
}

func TestSweep_TenantErrorsAreIsolated(t *testing.T) {
	f := setup(t)
	f.seed(t, "t-bad", resourcedomain.TypePhoneNumber, "pn-err")
	f.seed(t, "t-good", resourcedomain.TypeAssistant, "ext-gone")

	f.voice.On("ListAssistants", mock.Anything).Return([]voicedomain.Assistant{}, nil)
	f.voice.On("GetPhoneNumber", mock.Anything, "pn-err").Return(nil, voicedomain.ErrUnavailable)

	summary, err := f.svc.Sweep(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, voicedomain.ErrUnavailable)

	// The failing tenant does not stop the other tenant's drift cleanup.
	assert.Equal(t, 1, summary.TenantErrors)
	assert.Equal(t, 1, summary.TenantsChecked)
	assert.Equal(t, 1, summary.DriftDetected)
	require.Len(t, f.pendingJobs(t), 1)
}
