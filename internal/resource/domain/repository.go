package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, res *Resource) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Resource, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, resourceType ResourceType, externalID string) (*Resource, error)
	ListActiveByTenant(ctx context.Context, db *gorm.DB, tenantID string, resourceType ResourceType) ([]Resource, error)
	CountActive(ctx context.Context, db *gorm.DB, tenantID string, resourceType ResourceType) (int64, error)
	ListTenantIDs(ctx context.Context, db *gorm.DB) ([]string, error)
	SetExternalID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string, at time.Time) error
	SetSyncStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status SyncStatus, at time.Time) error
	MarkInactive(ctx context.Context, db *gorm.DB, id snowflake.ID, status SyncStatus, at time.Time) error
	MarkActive(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
