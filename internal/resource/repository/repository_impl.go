package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/soundline/vocalis/internal/resource/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, res *domain.Resource) error {
	return db.WithContext(ctx).Create(res).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Resource, error) {
	var res domain.Resource
	err := db.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, resourceType domain.ResourceType, externalID string) (*domain.Resource, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrNotFound
	}
	var res domain.Resource
	err := db.WithContext(ctx).
		First(&res, "type = ? AND external_id = ?", resourceType, externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repo) ListActiveByTenant(ctx context.Context, db *gorm.DB, tenantID string, resourceType domain.ResourceType) ([]domain.Resource, error) {
	var out []domain.Resource
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND active = ?", tenantID, resourceType, true).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB, tenantID string, resourceType domain.ResourceType) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Resource{}).
		Where("tenant_id = ? AND type = ? AND active = ?", tenantID, resourceType, true).
		Count(&count).Error
	return count, err
}

func (r *repo) ListTenantIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).Model(&domain.Resource{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &out).Error
	return out, err
}

func (r *repo) SetExternalID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string, at time.Time) error {
	return db.WithContext(ctx).Model(&domain.Resource{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"external_id":    externalID,
			"sync_status":    domain.SyncStatusSynced,
			"last_synced_at": at,
			"updated_at":     at,
		}).Error
}

func (r *repo) SetSyncStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.SyncStatus, at time.Time) error {
	return db.WithContext(ctx).Model(&domain.Resource{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sync_status":    status,
			"last_synced_at": at,
			"updated_at":     at,
		}).Error
}

func (r *repo) MarkInactive(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.SyncStatus, at time.Time) error {
	return db.WithContext(ctx).Model(&domain.Resource{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"active":         false,
			"sync_status":    status,
			"last_synced_at": at,
			"updated_at":     at,
		}).Error
}

func (r *repo) MarkActive(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Model(&domain.Resource{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"active":         true,
			"sync_status":    domain.SyncStatusSynced,
			"last_synced_at": at,
			"updated_at":     at,
		}).Error
}
