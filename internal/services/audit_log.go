package services

import (
	"context"
	"order_engine/internal/models"
	"order_engine/internal/repository"
	"time"

	"github.com/google/uuid"
)

// AuditLog appends order history entries inside the caller's unit of work.
type AuditLog struct {
	history repository.OrderHistoryRepository
	now     func() time.Time
}

func NewAuditLog(history repository.OrderHistoryRepository, now func() time.Time) *AuditLog {
	return &AuditLog{history: history, now: now}
}

func (a *AuditLog) Write(ctx context.Context, tenantID string, orderID uint, changedBy string, details models.AuditDetails) error {
	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		TenantID:  tenantID,
		Action:    details.AuditAction(),
		Details:   details,
		ChangedBy: changedBy,
		Timestamp: a.now().UTC(),
	}
	if err := a.history.Append(ctx, entry); err != nil {
		return internalError("failed to write order history", err)
	}
	return nil
}
