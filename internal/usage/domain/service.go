package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	// Provision creates the tenant's usage record with the given tier and
	// limits. Creating an already-provisioned tenant is a no-op.
	Provision(ctx context.Context, tenantID string, tier Tier, limits Limits) error

	// CanPerform answers whether tenantID may consume increment more units of
	// kind. It is a pure read; it never mutates consumption.
	CanPerform(ctx context.Context, tenantID string, kind LimitKind, increment int64) (CheckResult, error)

	// RecordMinutes applies completed-call minutes to the current period.
	// Invoked by the call-accounting collaborator after the call has occurred.
	RecordMinutes(ctx context.Context, tenantID string, minutes int64) error

	// ApplyLimits writes tier, status, and all limits in a single atomic
	// update so readers never observe a torn tier/status pair.
	ApplyLimits(ctx context.Context, tenantID string, tier Tier, status Status, limits Limits) error

	// RolloverDuePeriods resets minutes and advances the billing window for
	// every tenant whose period has ended. Returns the number rolled over.
	RolloverDuePeriods(ctx context.Context, now time.Time) (int, error)

	Get(ctx context.Context, tenantID string) (TenantUsage, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *TenantUsage) error
	FindByTenant(ctx context.Context, db *gorm.DB, tenantID string) (*TenantUsage, error)
	AddMinutes(ctx context.Context, db *gorm.DB, tenantID string, minutes int64, at time.Time) (bool, error)
	UpdateLimits(ctx context.Context, db *gorm.DB, tenantID string, tier Tier, status Status, limits Limits, at time.Time) (bool, error)
	ListDuePeriods(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]TenantUsage, error)
	ResetPeriod(ctx context.Context, db *gorm.DB, tenantID string, oldPeriodEnd, newStart, newEnd time.Time) (bool, error)
}

// WarnLevel classifies used against limit. Minutes warn at 80% and turn
// critical at 90%; assistants warn at 80% and only turn critical at the hard
// cap itself.
func WarnLevel(used, limit int64, kind LimitKind) WarningLevel {
	if limit <= 0 {
		return WarningCritical
	}
	ratio := float64(used) / float64(limit)
	critical := 0.9
	if kind == KindAssistants || kind == KindPhoneNumbers {
		critical = 1.0
	}
	switch {
	case ratio >= critical:
		return WarningCritical
	case ratio >= 0.8:
		return WarningWarning
	default:
		return WarningNone
	}
}
