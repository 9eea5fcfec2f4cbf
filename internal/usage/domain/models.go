package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier is the subscription tier feeding limits into the ledger.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Status is the subscription status mirrored from the payment processor.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusPastDue   Status = "past_due"
	StatusInactive  Status = "inactive"
)

// LimitKind names the metered dimension a check applies to.
type LimitKind string

const (
	KindMinutes      LimitKind = "minutes"
	KindAssistants   LimitKind = "assistants"
	KindPhoneNumbers LimitKind = "phone_numbers"
)

// WarningLevel classifies how close usage is to its limit.
type WarningLevel string

const (
	WarningNone     WarningLevel = "none"
	WarningWarning  WarningLevel = "warning"
	WarningCritical WarningLevel = "critical"
)

// TenantUsage is the per-tenant usage record. Minutes and the assistant count
// are derived from authoritative child records and never independently
// decremented outside of period rollover.
type TenantUsage struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	TenantID         string       `json:"tenant_id" gorm:"type:text;not null;uniqueIndex"`
	Tier             Tier         `json:"tier" gorm:"type:text;not null;default:'free'"`
	Status           Status       `json:"status" gorm:"type:text;not null;default:'active'"`
	MinutesUsed      int64        `json:"minutes_used" gorm:"not null;default:0"`
	MinutesLimit     int64        `json:"minutes_limit" gorm:"not null;default:0"`
	AssistantLimit   int64        `json:"assistant_limit" gorm:"not null;default:0"`
	PhoneNumberLimit int64        `json:"phone_number_limit" gorm:"not null;default:0"`
	PeriodStart      time.Time    `json:"period_start" gorm:"not null"`
	PeriodEnd        time.Time    `json:"period_end" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`
}

func (TenantUsage) TableName() string { return "tenant_usage" }

// Limits is the full set of tier limits applied together with tier and status.
type Limits struct {
	Minutes      int64
	Assistants   int64
	PhoneNumbers int64
}

// CheckResult is the structured answer to a canPerform query.
type CheckResult struct {
	Allowed      bool         `json:"allowed"`
	Kind         LimitKind    `json:"kind"`
	CurrentUsage int64        `json:"current_usage"`
	Limit        int64        `json:"limit"`
	Warning      WarningLevel `json:"warning"`
}

var (
	// ErrTenantNotProvisioned means the tenant usage record was never created.
	// This is a configuration fault, not a limit refusal.
	ErrTenantNotProvisioned = errors.New("tenant_not_provisioned")
	ErrInvalidKind          = errors.New("invalid_limit_kind")
	ErrInvalidIncrement     = errors.New("invalid_increment")
)
