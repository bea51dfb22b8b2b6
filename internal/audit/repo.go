package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	"github.com/obinnaeze/pharmapos-backend/pkg/pagination"
)

// Repository manages persistence for audit records. Records are append-only:
// there is deliberately no update or delete surface here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, record *models.AuditRecord) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.AuditRecord, error)
	ListByBatchPage(ctx context.Context, batchID uuid.UUID, limit int, before *pagination.Cursor) ([]models.AuditRecord, error)
	ListByKind(ctx context.Context, batchID uuid.UUID, kind enums.AuditChangeKind) ([]models.AuditRecord, error)
	FindByReference(ctx context.Context, referenceID uuid.UUID) ([]models.AuditRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, record *models.AuditRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListByBatchPage(ctx context.Context, batchID uuid.UUID, limit int, before *pagination.Cursor) ([]models.AuditRecord, error) {
	query := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if before != nil {
		// Records appended in the same transaction share a timestamp, so the
		// id breaks the tie instead of dropping rows at page boundaries.
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", before.CreatedAt, before.CreatedAt, before.ID)
	}
	var records []models.AuditRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListByKind(ctx context.Context, batchID uuid.UUID, kind enums.AuditChangeKind) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	if err := r.db.WithContext(ctx).
		Where("batch_id = ? AND change_kind = ?", batchID, kind).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) FindByReference(ctx context.Context, referenceID uuid.UUID) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	if err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
