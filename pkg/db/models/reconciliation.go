package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationRecord is one physical-count session for a store.
type ReconciliationRecord struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	StoreID         uuid.UUID            `gorm:"column:store_id;type:uuid;not null;index:idx_reconciliations_store"`
	CountedByUserID uuid.UUID            `gorm:"column:counted_by_user_id;type:uuid;not null"`
	Notes           string               `gorm:"column:notes"`
	TotalVariance   int                  `gorm:"column:total_variance;not null;default:0"`
	Items           []ReconciliationItem `gorm:"foreignKey:ReconciliationID"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// ReconciliationItem is one counted line inside a session. A line with a
// non-empty Error was skipped without aborting the session.
type ReconciliationItem struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ReconciliationID uuid.UUID  `gorm:"column:reconciliation_id;type:uuid;not null;index:idx_reconciliation_items_record"`
	BatchID          uuid.UUID  `gorm:"column:batch_id;type:uuid;not null"`
	SystemQuantity   int        `gorm:"column:system_quantity;not null"`
	CountedQuantity  int        `gorm:"column:counted_quantity;not null"`
	Variance         int        `gorm:"column:variance;not null"`
	AdjustmentID     *uuid.UUID `gorm:"column:adjustment_id;type:uuid"`
	Error            string     `gorm:"column:error"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}
