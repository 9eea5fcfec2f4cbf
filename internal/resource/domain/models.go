package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ResourceType identifies which kind of provider-backed entity a record mirrors.
type ResourceType string

const (
	TypeAssistant   ResourceType = "assistant"
	TypePhoneNumber ResourceType = "phone_number"
)

// SyncStatus tracks how a local record relates to the provider's state.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusDeleted SyncStatus = "deleted"
	SyncStatusDrift   SyncStatus = "drift"
)

// Resource is the local mirror of an assistant or phone number that also
// exists in the voice-provisioning provider. active=true implies the external
// id, if set, is expected to still exist upstream.
type Resource struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	TenantID     string       `json:"tenant_id" gorm:"type:text;not null;index"`
	Type         ResourceType `json:"type" gorm:"type:text;not null;index"`
	Name         string       `json:"name" gorm:"type:text"`
	ExternalID   *string      `json:"external_id" gorm:"type:text;index"`
	Active       bool         `json:"active" gorm:"not null;default:true"`
	SyncStatus   SyncStatus   `json:"sync_status" gorm:"type:text;not null;default:'pending'"`
	LastSyncedAt *time.Time   `json:"last_synced_at"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (Resource) TableName() string { return "resources" }

var (
	ErrNotFound    = errors.New("resource_not_found")
	ErrInvalidType = errors.New("invalid_resource_type")
)

// ParseType validates a wire-level resource type string.
func ParseType(raw string) (ResourceType, error) {
	switch ResourceType(raw) {
	case TypeAssistant:
		return TypeAssistant, nil
	case TypePhoneNumber:
		return TypePhoneNumber, nil
	default:
		return "", ErrInvalidType
	}
}
