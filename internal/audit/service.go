package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/pagination"
)

// Service exposes read access to the audit trail for reporting callers.
// Writes happen exclusively through the batches package, which appends in the
// same transaction as the quantity mutation.
type Service interface {
	BatchTrail(ctx context.Context, batchID uuid.UUID, params pagination.Params) (*TrailPage, error)
	ReferenceTrail(ctx context.Context, referenceID uuid.UUID) ([]models.AuditRecord, error)
}

// TrailPage is one page of a batch's audit trail, newest first.
type TrailPage struct {
	Records    []models.AuditRecord `json:"records"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type service struct {
	repo Repository
}

// NewService wires an audit read service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) BatchTrail(ctx context.Context, batchID uuid.UUID, params pagination.Params) (*TrailPage, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)

	records, err := s.repo.ListByBatchPage(ctx, batchID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit trail")
	}

	page := &TrailPage{}
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	page.Records = records
	return page, nil
}

func (s *service) ReferenceTrail(ctx context.Context, referenceID uuid.UUID) ([]models.AuditRecord, error) {
	if referenceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference id required")
	}
	records, err := s.repo.FindByReference(ctx, referenceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit trail by reference")
	}
	return records, nil
}
