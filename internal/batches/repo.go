package batches

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
)

// Repository is the only code path allowed to touch batch rows. Quantity
// writes go through UpdateQuantityVersioned exclusively so the version check
// can never be bypassed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, batch *models.Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	FindByNumber(ctx context.Context, productID, storeID uuid.UUID, batchNumber string) (*models.Batch, error)
	FindAllocatable(ctx context.Context, productID, storeID uuid.UUID, today time.Time) ([]models.Batch, error)
	UpdateQuantityVersioned(ctx context.Context, id uuid.UUID, version int64, newQuantity int) (bool, error)

	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Batch, error)
	ListExpiring(ctx context.Context, storeID uuid.UUID, from, until time.Time) ([]models.Batch, error)
	ListExpired(ctx context.Context, storeID uuid.UUID, before time.Time) ([]models.Batch, error)
	ListLowStock(ctx context.Context, storeID uuid.UUID, threshold int) ([]models.Batch, error)
	SumProductQuantity(ctx context.Context, productID, storeID uuid.UUID) (int, error)

	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	StoreExists(ctx context.Context, id uuid.UUID) (bool, error)
	ListActiveStores(ctx context.Context) ([]models.Store, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a batch repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, batch *models.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	var batch models.Batch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) FindByNumber(ctx context.Context, productID, storeID uuid.UUID, batchNumber string) (*models.Batch, error) {
	var batch models.Batch
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND store_id = ? AND batch_number = ?", productID, storeID, batchNumber).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindAllocatable returns batches eligible for allocation in consumption
// order: soonest expiry first, then oldest receipt, then id as the final
// tie-break so the ordering is total.
func (r *repository) FindAllocatable(ctx context.Context, productID, storeID uuid.UUID, today time.Time) ([]models.Batch, error) {
	var batches []models.Batch
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND store_id = ? AND quantity > 0 AND expiry_date >= ?", productID, storeID, today).
		Order("expiry_date ASC").
		Order("received_at ASC").
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// UpdateQuantityVersioned performs the compare-and-swap write. It returns
// false when the row moved under us (version mismatch) so callers can
// re-read and retry.
func (r *repository) UpdateQuantityVersioned(ctx context.Context, id uuid.UUID, version int64, newQuantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"quantity": newQuantity,
			"version":  gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Batch, error) {
	var batches []models.Batch
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("expiry_date ASC").
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) ListExpiring(ctx context.Context, storeID uuid.UUID, from, until time.Time) ([]models.Batch, error) {
	var batches []models.Batch
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND quantity > 0 AND expiry_date >= ? AND expiry_date <= ?", storeID, from, until).
		Order("expiry_date ASC").
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) ListExpired(ctx context.Context, storeID uuid.UUID, before time.Time) ([]models.Batch, error) {
	var batches []models.Batch
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND quantity > 0 AND expiry_date < ?", storeID, before).
		Order("expiry_date ASC").
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) ListLowStock(ctx context.Context, storeID uuid.UUID, threshold int) ([]models.Batch, error) {
	var batches []models.Batch
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND quantity > 0 AND quantity < ?", storeID, threshold).
		Order("quantity ASC").
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) SumProductQuantity(ctx context.Context, productID, storeID uuid.UUID) (int, error) {
	var total *int
	query := r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Select("SUM(quantity)").
		Where("product_id = ?", productID)
	if storeID != uuid.Nil {
		query = query.Where("store_id = ?", storeID)
	}
	if err := query.Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) StoreExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListActiveStores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}
