package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

// Reservation is a soft hold on batch quantity. It never moves stock by
// itself; confirming it turns the hold into a real deduction.
type Reservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	BatchID     uuid.UUID               `gorm:"column:batch_id;type:uuid;not null;index:idx_reservations_batch"`
	Quantity    int                     `gorm:"column:quantity;not null"`
	Reason      enums.ReservationReason `gorm:"column:reason;type:reservation_reason_enum;not null"`
	Status      enums.ReservationStatus `gorm:"column:status;type:reservation_status_enum;not null;default:'active'"`
	OwnerUserID uuid.UUID               `gorm:"column:owner_user_id;type:uuid;not null"`
	ExpiresAt   *time.Time              `gorm:"column:expires_at"`
	ReleasedAt  *time.Time              `gorm:"column:released_at"`
	ConfirmedAt *time.Time              `gorm:"column:confirmed_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// ExpiredAt reports whether the hold's TTL has lapsed at the given instant.
// Reads treat an expired-but-unswept reservation as already released.
func (r Reservation) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// EffectiveStatus folds lazy TTL expiry into the stored status.
func (r Reservation) EffectiveStatus(now time.Time) enums.ReservationStatus {
	if r.Status == enums.ReservationStatusActive && r.ExpiredAt(now) {
		return enums.ReservationStatusReleased
	}
	return r.Status
}
