package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is catalog identity, owned by the catalog collaborator and
// read-only to the ledger once a batch references it.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name         string          `gorm:"column:name;not null"`
	GenericName  string          `gorm:"column:generic_name"`
	SKU          string          `gorm:"column:sku;not null;uniqueIndex"`
	Barcode      *string         `gorm:"column:barcode;uniqueIndex"`
	NafdacNumber string          `gorm:"column:nafdac_number;not null"`
	CostPrice    decimal.Decimal `gorm:"column:cost_price;type:numeric(10,2);not null"`
	SellingPrice decimal.Decimal `gorm:"column:selling_price;type:numeric(10,2);not null"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
