package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

// AuditRecord is an immutable append-only fact describing one quantity
// mutation. Rows are never updated or deleted; corrections are always new
// records.
type AuditRecord struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	BatchID          uuid.UUID             `gorm:"column:batch_id;type:uuid;not null;index:idx_audit_records_batch"`
	PreviousQuantity int                   `gorm:"column:previous_quantity;not null"`
	NewQuantity      int                   `gorm:"column:new_quantity;not null"`
	ChangeKind       enums.AuditChangeKind `gorm:"column:change_kind;type:audit_change_kind_enum;not null"`
	ReferenceID      *uuid.UUID            `gorm:"column:reference_id;type:uuid"`
	ActorUserID      uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	Note             string                `gorm:"column:note"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
}
