package reconciliation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
)

// Repository manages persistence for reconciliation sessions and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRecord(ctx context.Context, record *models.ReconciliationRecord) error
	UpdateRecord(ctx context.Context, record *models.ReconciliationRecord) error
	CreateItem(ctx context.Context, item *models.ReconciliationItem) error
	FindRecord(ctx context.Context, id uuid.UUID) (*models.ReconciliationRecord, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.ReconciliationRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciliation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRecord(ctx context.Context, record *models.ReconciliationRecord) error {
	return r.db.WithContext(ctx).Omit("Items").Create(record).Error
}

func (r *repository) UpdateRecord(ctx context.Context, record *models.ReconciliationRecord) error {
	return r.db.WithContext(ctx).Omit("Items").Save(record).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.ReconciliationItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindRecord(ctx context.Context, id uuid.UUID) (*models.ReconciliationRecord, error) {
	var record models.ReconciliationRecord
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.ReconciliationRecord, error) {
	var records []models.ReconciliationRecord
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
