package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is a physical pharmacy location holding stock.
type Store struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	Address   string    `gorm:"column:address"`
	IsPrimary bool      `gorm:"column:is_primary;not null;default:false"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
