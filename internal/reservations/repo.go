package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

// Repository manages persistence for reservation rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindActiveByBatchReason(ctx context.Context, batchID uuid.UUID, reason enums.ReservationReason, now time.Time) (*models.Reservation, error)
	SumActiveQuantity(ctx context.Context, batchID uuid.UUID, now time.Time) (int, error)
	Update(ctx context.Context, reservation *models.Reservation) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Reservation, error)
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reservation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindActiveByBatchReason ignores TTL-lapsed holds: an expired-but-unswept
// reservation must not block a new one for the same reason.
func (r *repository) FindActiveByBatchReason(ctx context.Context, batchID uuid.UUID, reason enums.ReservationReason, now time.Time) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND reason = ? AND status = ?", batchID, reason, enums.ReservationStatusActive).
		Where("expires_at IS NULL OR expires_at > ?", now).
		First(&reservation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) SumActiveQuantity(ctx context.Context, batchID uuid.UUID, now time.Time) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Select("SUM(quantity)").
		Where("batch_id = ? AND status = ?", batchID, enums.ReservationStatusActive).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) Update(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Reservation, error) {
	var reservations []models.Reservation
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", enums.ReservationStatusActive, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var reservations []models.Reservation
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}
