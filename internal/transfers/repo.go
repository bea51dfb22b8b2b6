package transfers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

// Repository manages persistence for transfer rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transfer *models.Transfer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transfer, error)
	Update(ctx context.Context, transfer *models.Transfer) error
	ListPendingForStore(ctx context.Context, toStoreID uuid.UUID) ([]models.Transfer, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Transfer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transfer repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transfer *models.Transfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	var transfer models.Transfer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&transfer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *repository) Update(ctx context.Context, transfer *models.Transfer) error {
	return r.db.WithContext(ctx).Save(transfer).Error
}

func (r *repository) ListPendingForStore(ctx context.Context, toStoreID uuid.UUID) ([]models.Transfer, error) {
	var transfers []models.Transfer
	if err := r.db.WithContext(ctx).
		Where("to_store_id = ? AND status = ?", toStoreID, enums.TransferStatusPending).
		Order("created_at ASC").
		Find(&transfers).Error; err != nil {
		return nil, err
	}
	return transfers, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Transfer, error) {
	var transfers []models.Transfer
	if err := r.db.WithContext(ctx).
		Where("from_store_id = ? OR to_store_id = ?", storeID, storeID).
		Order("created_at DESC").
		Find(&transfers).Error; err != nil {
		return nil, err
	}
	return transfers, nil
}
