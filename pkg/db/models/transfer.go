package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

// Transfer is an inter-store stock movement. Initiation debits the source
// batch; receipt credits the destination; cancellation reverses the debit.
type Transfer struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	BatchNumber       string               `gorm:"column:batch_number;not null"`
	Quantity          int                  `gorm:"column:quantity;not null"`
	FromStoreID       uuid.UUID            `gorm:"column:from_store_id;type:uuid;not null"`
	ToStoreID         uuid.UUID            `gorm:"column:to_store_id;type:uuid;not null;index:idx_transfers_to_store"`
	Status            enums.TransferStatus `gorm:"column:status;type:transfer_status_enum;not null;default:'pending'"`
	InitiatedByUserID uuid.UUID            `gorm:"column:initiated_by_user_id;type:uuid;not null"`
	ReceivedByUserID  *uuid.UUID           `gorm:"column:received_by_user_id;type:uuid"`
	ReceivedQuantity  *int                 `gorm:"column:received_quantity"`
	ReceivedAt        *time.Time           `gorm:"column:received_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
