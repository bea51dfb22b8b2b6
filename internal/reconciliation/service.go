package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/adjustments"
	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

// Count is one physical-count line submitted by the stock-count screen.
type Count struct {
	BatchID         uuid.UUID `json:"batch_id"`
	CountedQuantity int       `json:"counted_quantity"`
}

// Input is a full count session for one store.
type Input struct {
	StoreID     uuid.UUID
	Counts      []Count
	ActorUserID uuid.UUID
	Notes       string
}

// Service compares physical counts against ledger quantities and emits one
// adjustment per non-zero variance.
type Service interface {
	Reconcile(ctx context.Context, input Input) (*models.ReconciliationRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ReconciliationRecord, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.ReconciliationRecord, error)
}

type service struct {
	runner    db.TxRunner
	repo      Repository
	batchRepo batches.Repository
	adjustSvc adjustments.Service
	logger    *logger.Logger
	now       func() time.Time
}

// NewService wires the reconciliation engine over the adjustment service.
func NewService(runner db.TxRunner, repo Repository, batchRepo batches.Repository, adjustSvc adjustments.Service, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	if batchRepo == nil {
		return nil, fmt.Errorf("batch repository required")
	}
	if adjustSvc == nil {
		return nil, fmt.Errorf("adjustment service required")
	}
	return &service{
		runner:    runner,
		repo:      repo,
		batchRepo: batchRepo,
		adjustSvc: adjustSvc,
		logger:    logg,
		now:       time.Now,
	}, nil
}

// Reconcile processes each counted line in its own transaction: a bad line is
// recorded with its error and the session carries on. The session record
// itself always persists.
func (s *service) Reconcile(ctx context.Context, input Input) (*models.ReconciliationRecord, error) {
	switch {
	case input.StoreID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	case input.ActorUserID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	case len(input.Counts) == 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one count required")
	}

	if ok, err := s.batchRepo.StoreExists(ctx, input.StoreID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking store")
	} else if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}

	record := &models.ReconciliationRecord{
		ID:              uuid.New(),
		StoreID:         input.StoreID,
		CountedByUserID: input.ActorUserID,
		Notes:           input.Notes,
	}
	if err := s.repo.CreateRecord(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating reconciliation record")
	}

	totalVariance := 0
	for _, count := range input.Counts {
		item := s.reconcileLine(ctx, record.ID, input, count)
		if item.Error == "" {
			totalVariance += item.Variance
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving reconciliation item")
		}
		record.Items = append(record.Items, *item)
	}

	record.TotalVariance = totalVariance
	if err := s.repo.UpdateRecord(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalizing reconciliation record")
	}

	if s.logger != nil {
		lctx := s.logger.WithFields(ctx, map[string]any{
			"store_id":       input.StoreID.String(),
			"total_variance": totalVariance,
			"lines":          len(input.Counts),
		})
		s.logger.Info(lctx, "reconciliation completed")
	}
	return record, nil
}

// reconcileLine handles one count. Errors never propagate; they land on the
// item so the rest of the session is unaffected.
func (s *service) reconcileLine(ctx context.Context, recordID uuid.UUID, input Input, count Count) *models.ReconciliationItem {
	item := &models.ReconciliationItem{
		ID:               uuid.New(),
		ReconciliationID: recordID,
		BatchID:          count.BatchID,
		CountedQuantity:  count.CountedQuantity,
	}

	if count.BatchID == uuid.Nil {
		item.Error = "batch id required"
		return item
	}
	if count.CountedQuantity < 0 {
		item.Error = "counted quantity must not be negative"
		return item
	}

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.batchRepo.WithTx(tx).FindByID(ctx, count.BatchID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
		}
		if batch == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
		}
		if batch.StoreID != input.StoreID {
			return pkgerrors.New(pkgerrors.CodeValidation, "batch belongs to another store")
		}

		item.SystemQuantity = batch.Quantity
		item.Variance = count.CountedQuantity - batch.Quantity
		if item.Variance == 0 {
			return nil
		}

		adjustment, err := s.adjustSvc.AdjustTx(ctx, tx, adjustments.Input{
			BatchID:     batch.ID,
			Delta:       item.Variance,
			Reason:      "reconciliation",
			Notes:       input.Notes,
			ActorUserID: input.ActorUserID,
			Kind:        enums.AuditChangeKindReconciliation,
		})
		if err != nil {
			return err
		}
		item.AdjustmentID = &adjustment.ID
		return nil
	})
	if err != nil {
		item.AdjustmentID = nil
		item.Error = err.Error()
	}
	return item
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ReconciliationRecord, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reconciliation id required")
	}
	record, err := s.repo.FindRecord(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reconciliation record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reconciliation record not found")
	}
	return record, nil
}

func (s *service) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.ReconciliationRecord, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	records, err := s.repo.ListByStore(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing reconciliation records")
	}
	return records, nil
}
