package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	TenantID   string         `json:"tenant_id" gorm:"type:text;not null;index"`
	ActorType  string         `json:"actor_type" gorm:"type:text;not null"`
	ActorID    string         `json:"actor_id" gorm:"type:text"`
	Action     string         `json:"action" gorm:"type:text;not null;index"`
	TargetType string         `json:"target_type" gorm:"type:text;not null"`
	TargetID   string         `json:"target_id" gorm:"type:text;index"`
	Metadata   datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	IPAddress  string         `json:"ip_address" gorm:"type:text"`
	UserAgent  string         `json:"user_agent" gorm:"type:text"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	TenantID   string
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}
