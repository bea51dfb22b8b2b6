package adjustments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

// Repository manages persistence for adjustment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, adjustment *models.Adjustment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Adjustment, error)
	Update(ctx context.Context, adjustment *models.Adjustment) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Adjustment, error)
	ListPending(ctx context.Context) ([]models.Adjustment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an adjustment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, adjustment *models.Adjustment) error {
	return r.db.WithContext(ctx).Create(adjustment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Adjustment, error) {
	var adjustment models.Adjustment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&adjustment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &adjustment, nil
}

func (r *repository) Update(ctx context.Context, adjustment *models.Adjustment) error {
	return r.db.WithContext(ctx).Save(adjustment).Error
}

func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Adjustment, error) {
	var adjustments []models.Adjustment
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&adjustments).Error; err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (r *repository) ListPending(ctx context.Context) ([]models.Adjustment, error) {
	var adjustments []models.Adjustment
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.AdjustmentStatusPending).
		Order("created_at ASC").
		Find(&adjustments).Error; err != nil {
		return nil, err
	}
	return adjustments, nil
}
