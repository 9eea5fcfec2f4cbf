package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/soundline/vocalis/internal/config"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	"github.com/soundline/vocalis/internal/syncjob/domain"
	"github.com/soundline/vocalis/internal/syncjob/repository"
	pkgdb "github.com/soundline/vocalis/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (*gorm.DB, domain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.SyncJob{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Cfg: config.Config{Sync: config.SyncConfig{
			MaxRetries:    5,
			RetryDemotion: 10,
		}},
		Repo: repository.Provide(),
	})
	return db, svc, node
}

func enqueue(t *testing.T, svc domain.Service, resourceID snowflake.ID, action domain.Action, priority int) snowflake.ID {
	t.Helper()
	id, err := svc.Enqueue(context.Background(), domain.EnqueueRequest{
		ResourceType: resourcedomain.TypeAssistant,
		ResourceID:   resourceID,
		ExternalID:   "ext-" + resourceID.String(),
		Action:       action,
		Reason:       "test",
		Priority:     priority,
	})
	require.NoError(t, err)
	return id
}

func TestEnqueue_RejectsInvalidRequest(t *testing.T) {
	_, svc, _ := setupService(t)

	_, err := svc.Enqueue(context.Background(), domain.EnqueueRequest{Action: domain.ActionDisable})
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
}

func TestEnqueue_SupersedesInFlightJob(t *testing.T) {
	db, svc, node := setupService(t)
	resourceID := node.Generate()

	first := enqueue(t, svc, resourceID, domain.ActionUpdate, domain.PriorityDrift)
	second, err := svc.Enqueue(context.Background(), domain.EnqueueRequest{
		ResourceType: resourcedomain.TypeAssistant,
		ResourceID:   resourceID,
		Action:       domain.ActionDisable,
		Reason:       "tier downgrade",
		Priority:     domain.PriorityDowngrade,
	})
	require.NoError(t, err)

	// Same job, rewritten in place with the stronger intent.
	assert.Equal(t, first, second)

	var jobs []domain.SyncJob
	require.NoError(t, db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.ActionDisable, jobs[0].Action)
	assert.Equal(t, "tier downgrade", jobs[0].Reason)
	assert.Equal(t, domain.PriorityDowngrade, jobs[0].Priority)
}

func TestEnqueue_SupersessionKeepsStrongerPriority(t *testing.T) {
	db, svc, node := setupService(t)
	resourceID := node.Generate()

	enqueue(t, svc, resourceID, domain.ActionDisable, domain.PriorityDowngrade)
	enqueue(t, svc, resourceID, domain.ActionDelete, domain.PriorityDrift)

	var jobs []domain.SyncJob
	require.NoError(t, db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.ActionDelete, jobs[0].Action)
	assert.Equal(t, domain.PriorityDowngrade, jobs[0].Priority)
}

func TestEnqueue_TerminalJobDoesNotBlockNewOne(t *testing.T) {
	db, svc, node := setupService(t)
	resourceID := node.Generate()

	first := enqueue(t, svc, resourceID, domain.ActionDisable, domain.PriorityDowngrade)
	claimed, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), claimed.ID, claimed.UpdatedAt))

	second := enqueue(t, svc, resourceID, domain.ActionDelete, domain.PriorityDrift)
	assert.NotEqual(t, first, second)

	var count int64
	require.NoError(t, db.Model(&domain.SyncJob{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

// The unique index over non-terminal jobs is what holds the one-in-flight
// rule when two enqueues race past each other's lookup: the second insert for
// the same resource must fail at the database.
func TestEnqueue_ActiveJobUniquePerResource(t *testing.T) {
	db, _, node := setupService(t)
	resourceID := node.Generate()

	mk := func(status domain.JobStatus) *domain.SyncJob {
		now := time.Now().UTC()
		return &domain.SyncJob{
			ID:           node.Generate(),
			ResourceType: resourcedomain.TypeAssistant,
			ResourceID:   resourceID,
			Action:       domain.ActionDisable,
			Reason:       "test",
			Priority:     domain.PriorityDowngrade,
			Status:       status,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	require.NoError(t, db.Create(mk(domain.StatusPending)).Error)

	err := db.Create(mk(domain.StatusPending)).Error
	require.Error(t, err)
	assert.True(t, pkgdb.IsDuplicateKeyErr(err))

	err = db.Create(mk(domain.StatusClaimed)).Error
	require.Error(t, err)
	assert.True(t, pkgdb.IsDuplicateKeyErr(err))

	// Terminal jobs sit outside the index; history accumulates freely.
	require.NoError(t, db.Create(mk(domain.StatusSucceeded)).Error)
	require.NoError(t, db.Create(mk(domain.StatusDead)).Error)
}

func TestClaim_AtMostOneInFlightPerResource(t *testing.T) {
	db, svc, node := setupService(t)
	resourceID := node.Generate()

	enqueue(t, svc, resourceID, domain.ActionDisable, domain.PriorityDowngrade)
	enqueue(t, svc, resourceID, domain.ActionDelete, domain.PriorityDrift)

	first, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, second)

	var claimed int64
	require.NoError(t, db.Model(&domain.SyncJob{}).
		Where("resource_id = ? AND status = ?", resourceID, domain.StatusClaimed).
		Count(&claimed).Error)
	assert.Equal(t, int64(1), claimed)
}

func TestClaimNext_PriorityThenAge(t *testing.T) {
	db, svc, node := setupService(t)

	// Insert directly so created_at is deterministic.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mk := func(priority int, age time.Duration) snowflake.ID {
		job := domain.SyncJob{
			ID:           node.Generate(),
			ResourceType: resourcedomain.TypeAssistant,
			ResourceID:   node.Generate(),
			Action:       domain.ActionDisable,
			Reason:       "test",
			Priority:     priority,
			Status:       domain.StatusPending,
			CreatedAt:    base.Add(-age),
			UpdatedAt:    base,
		}
		require.NoError(t, db.Create(&job).Error)
		return job.ID
	}

	drift := mk(domain.PriorityDrift, 2*time.Hour)
	downgradeOld := mk(domain.PriorityDowngrade, time.Hour)
	downgradeNew := mk(domain.PriorityDowngrade, 0)

	for _, want := range []snowflake.ID{downgradeOld, downgradeNew, drift} {
		claimed, err := svc.ClaimNext(context.Background())
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, want, claimed.ID)
		assert.Equal(t, domain.StatusClaimed, claimed.Status)
	}

	claimed, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestComplete_RequiresClaimedStatus(t *testing.T) {
	_, svc, node := setupService(t)
	jobID := enqueue(t, svc, node.Generate(), domain.ActionDisable, domain.PriorityDowngrade)

	// Still pending, nobody claimed it.
	assert.ErrorIs(t, svc.Complete(context.Background(), jobID, time.Now().UTC()), domain.ErrNotClaimable)

	claimed, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), claimed.ID, claimed.UpdatedAt))

	// Completing twice must not succeed.
	assert.ErrorIs(t, svc.Complete(context.Background(), claimed.ID, claimed.UpdatedAt), domain.ErrNotClaimable)
}

// A supersession that lands while the job is executing must not be buried by
// the completion of the stale intent: the job goes back to pending and the
// merged action runs on the next claim.
func TestComplete_SupersededWhileExecutingRequeues(t *testing.T) {
	db, svc, node := setupService(t)
	resourceID := node.Generate()

	enqueue(t, svc, resourceID, domain.ActionDisable, domain.PriorityDowngrade)
	claimed, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ActionDisable, claimed.Action)

	_, err = svc.Enqueue(context.Background(), domain.EnqueueRequest{
		ResourceType: resourcedomain.TypeAssistant,
		ResourceID:   resourceID,
		Action:       domain.ActionEnable,
		Reason:       "re-enable",
		Priority:     domain.PriorityDowngrade,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Complete(context.Background(), claimed.ID, claimed.UpdatedAt))

	var job domain.SyncJob
	require.NoError(t, db.First(&job, "id = ?", claimed.ID).Error)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, domain.ActionEnable, job.Action)

	next, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, claimed.ID, next.ID)
	assert.Equal(t, domain.ActionEnable, next.Action)

	require.NoError(t, svc.Complete(context.Background(), next.ID, next.UpdatedAt))
}

func TestFail_RequeuesWithDemotion(t *testing.T) {
	db, svc, node := setupService(t)
	enqueue(t, svc, node.Generate(), domain.ActionDisable, domain.PriorityDowngrade)

	claimed, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)

	outcome, err := svc.Fail(context.Background(), claimed.ID, errors.New("provider 500"))
	require.NoError(t, err)
	assert.Equal(t, domain.FailOutcomeRetry, outcome)

	var job domain.SyncJob
	require.NoError(t, db.First(&job, "id = ?", claimed.ID).Error)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, domain.PriorityDowngrade+10, job.Priority)
	assert.Equal(t, "provider 500", job.LastError)
}

func TestFail_DeadAfterRetryCeiling(t *testing.T) {
	db, svc, node := setupService(t)
	enqueue(t, svc, node.Generate(), domain.ActionDisable, domain.PriorityDowngrade)

	var outcome domain.FailOutcome
	for i := 0; i < 5; i++ {
		claimed, err := svc.ClaimNext(context.Background())
		require.NoError(t, err)
		require.NotNil(t, claimed, "attempt %d", i+1)

		outcome, err = svc.Fail(context.Background(), claimed.ID, errors.New("still broken"))
		require.NoError(t, err)
	}
	assert.Equal(t, domain.FailOutcomeDead, outcome)

	var job domain.SyncJob
	require.NoError(t, db.First(&job).Error)
	assert.Equal(t, domain.StatusDead, job.Status)
	assert.Equal(t, 5, job.RetryCount)

	claimed, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestFail_RejectsUnclaimedJob(t *testing.T) {
	_, svc, node := setupService(t)
	jobID := enqueue(t, svc, node.Generate(), domain.ActionDisable, domain.PriorityDowngrade)

	_, err := svc.Fail(context.Background(), jobID, errors.New("boom"))
	assert.ErrorIs(t, err, domain.ErrNotClaimable)
}

func TestDepthAndListDead(t *testing.T) {
	_, svc, node := setupService(t)

	enqueue(t, svc, node.Generate(), domain.ActionDisable, domain.PriorityDowngrade)
	enqueue(t, svc, node.Generate(), domain.ActionDelete, domain.PriorityDrift)

	claimed, err := svc.ClaimNext(context.Background())
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = svc.Fail(context.Background(), claimed.ID, errors.New("x"))
		require.NoError(t, err)
		claimed, err = svc.ClaimNext(context.Background())
		require.NoError(t, err)
	}
	outcome, err := svc.Fail(context.Background(), claimed.ID, errors.New("x"))
	require.NoError(t, err)
	require.Equal(t, domain.FailOutcomeDead, outcome)

	depth, err := svc.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Pending)
	assert.Equal(t, int64(0), depth.Claimed)
	assert.Equal(t, int64(1), depth.Dead)

	dead, err := svc.ListDead(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, domain.StatusDead, dead[0].Status)
}
