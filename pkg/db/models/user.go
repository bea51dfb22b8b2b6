package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

// User is an operator referenced by audit records. Authentication lives
// outside the ledger; the ledger only needs a stable actor identity.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Username  string         `gorm:"column:username;not null;uniqueIndex"`
	Role      enums.UserRole `gorm:"column:role;type:user_role_enum;not null"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
