package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

// Adjustment is a manual, possibly approval-gated, correction to a batch's
// quantity. Previous/new quantities are captured at apply time; a pending
// adjustment has not touched the ledger yet.
type Adjustment struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	BatchID          uuid.UUID              `gorm:"column:batch_id;type:uuid;not null;index:idx_adjustments_batch"`
	Delta            int                    `gorm:"column:delta;not null"`
	PreviousQuantity *int                   `gorm:"column:previous_quantity"`
	NewQuantity      *int                   `gorm:"column:new_quantity"`
	Reason           string                 `gorm:"column:reason;not null"`
	Notes            string                 `gorm:"column:notes"`
	Kind             enums.AuditChangeKind  `gorm:"column:change_kind;type:audit_change_kind_enum;not null;default:'adjustment'"`
	Status           enums.AdjustmentStatus `gorm:"column:status;type:adjustment_status_enum;not null;default:'pending'"`
	CreatedByUserID  uuid.UUID              `gorm:"column:created_by_user_id;type:uuid;not null"`
	ApprovedByUserID *uuid.UUID             `gorm:"column:approved_by_user_id;type:uuid"`
	AppliedAt        *time.Time             `gorm:"column:applied_at"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
