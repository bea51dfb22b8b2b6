package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is a physical stock lot with its own expiry date and quantity. Rows
// are never deleted; quantity reaches zero instead. Only the batches
// repository is allowed to mutate Quantity, and every mutation bumps Version.
type Batch struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uniq_batches_product_store_number,priority:1"`
	StoreID     uuid.UUID       `gorm:"column:store_id;type:uuid;not null;uniqueIndex:uniq_batches_product_store_number,priority:2;index:idx_batches_store"`
	BatchNumber string          `gorm:"column:batch_number;not null;uniqueIndex:uniq_batches_product_store_number,priority:3"`
	ExpiryDate  time.Time       `gorm:"column:expiry_date;type:date;not null;index:idx_batches_expiry"`
	Quantity    int             `gorm:"column:quantity;not null;default:0"`
	UnitCost    decimal.Decimal `gorm:"column:unit_cost;type:numeric(10,2)"`
	ReceivedAt  time.Time       `gorm:"column:received_at;not null"`
	Version     int64           `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the batch is past its expiry date relative to now.
func (b Batch) Expired(now time.Time) bool {
	return b.ExpiryDate.Before(startOfDay(now))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
