package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	AuditLog(ctx context.Context, tenantID, action, targetType, targetID string, metadata map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]AuditLog, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, error)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidAction = errors.New("invalid_action")
)
