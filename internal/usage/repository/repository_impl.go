package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soundline/vocalis/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.TenantUsage) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByTenant(ctx context.Context, db *gorm.DB, tenantID string) (*domain.TenantUsage, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, domain.ErrTenantNotProvisioned
	}
	var record domain.TenantUsage
	err := db.WithContext(ctx).First(&record, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTenantNotProvisioned
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AddMinutes is a single relative UPDATE so a concurrent limit change cannot
// lose the consumption write.
func (r *repo) AddMinutes(ctx context.Context, db *gorm.DB, tenantID string, minutes int64, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenant_usage
		 SET minutes_used = minutes_used + ?, updated_at = ?
		 WHERE tenant_id = ?`,
		minutes, at, tenantID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateLimits writes tier, status, and every limit in one statement. Readers
// load the row with a single SELECT, so they observe tier and status moving
// together.
func (r *repo) UpdateLimits(ctx context.Context, db *gorm.DB, tenantID string, tier domain.Tier, status domain.Status, limits domain.Limits, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenant_usage
		 SET tier = ?, status = ?, minutes_limit = ?, assistant_limit = ?, phone_number_limit = ?, updated_at = ?
		 WHERE tenant_id = ?`,
		tier, status, limits.Minutes, limits.Assistants, limits.PhoneNumbers, at, tenantID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListDuePeriods(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.TenantUsage, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.TenantUsage
	err := db.WithContext(ctx).
		Where("period_end <= ?", now).
		Order("period_end ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ResetPeriod guards on the previous period end so two workers rolling over
// the same tenant reset it once.
func (r *repo) ResetPeriod(ctx context.Context, db *gorm.DB, tenantID string, oldPeriodEnd, newStart, newEnd time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tenant_usage
		 SET minutes_used = 0, period_start = ?, period_end = ?, updated_at = ?
		 WHERE tenant_id = ? AND period_end = ?`,
		newStart, newEnd, newStart, tenantID, oldPeriodEnd,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
