package adjustments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

// Input is one manual correction request against a batch.
type Input struct {
	BatchID     uuid.UUID
	Delta       int
	Reason      string
	Notes       string
	ActorUserID uuid.UUID
	// Kind tags the audit record; defaults to a plain adjustment. Write-offs
	// and reconciliation variances route through here with their own kinds.
	Kind enums.AuditChangeKind
	// RequireImmediate makes the call fail instead of queueing a pending
	// adjustment when the delta exceeds the approval threshold.
	RequireImmediate bool
}

// Service manages manual corrections with magnitude-based approval gating.
type Service interface {
	Adjust(ctx context.Context, input Input) (*models.Adjustment, error)
	AdjustTx(ctx context.Context, tx *gorm.DB, input Input) (*models.Adjustment, error)
	Writeoff(ctx context.Context, batchID uuid.UUID, reason string, actorUserID uuid.UUID) (*models.Adjustment, error)
	Approve(ctx context.Context, id, approverUserID uuid.UUID) (*models.Adjustment, error)
	Reject(ctx context.Context, id, approverUserID uuid.UUID) (*models.Adjustment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Adjustment, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Adjustment, error)
	ListPending(ctx context.Context) ([]models.Adjustment, error)
}

type service struct {
	runner    db.TxRunner
	repo      Repository
	batchRepo batches.Repository
	batchSvc  batches.Service
	cfg       config.LedgerConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewService wires the adjustment service over the batch ledger.
func NewService(runner db.TxRunner, repo Repository, batchRepo batches.Repository, batchSvc batches.Service, cfg config.LedgerConfig, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("adjustment repository required")
	}
	if batchRepo == nil {
		return nil, fmt.Errorf("batch repository required")
	}
	if batchSvc == nil {
		return nil, fmt.Errorf("batch service required")
	}
	return &service{
		runner:    runner,
		repo:      repo,
		batchRepo: batchRepo,
		batchSvc:  batchSvc,
		cfg:       cfg,
		logger:    logg,
		now:       time.Now,
	}, nil
}

func (s *service) Adjust(ctx context.Context, input Input) (*models.Adjustment, error) {
	var adjustment *models.Adjustment
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		a, err := s.AdjustTx(ctx, tx, input)
		if err != nil {
			return err
		}
		adjustment = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adjustment, nil
}

// AdjustTx records the correction and, when its magnitude sits below the
// approval threshold, applies it immediately. Above threshold the row stays
// pending and no stock moves until approval.
func (s *service) AdjustTx(ctx context.Context, tx *gorm.DB, input Input) (*models.Adjustment, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	kind := input.Kind
	if kind == "" {
		kind = enums.AuditChangeKindAdjustment
	}
	switch kind {
	case enums.AuditChangeKindAdjustment, enums.AuditChangeKindWriteoff, enums.AuditChangeKindReconciliation, enums.AuditChangeKindExpired:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change kind not allowed for adjustments")
	}

	batch, err := s.batchRepo.WithTx(tx).FindByID(ctx, input.BatchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
	}
	if batch == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
	}

	adjustment := &models.Adjustment{
		ID:              uuid.New(),
		BatchID:         batch.ID,
		Delta:           input.Delta,
		Reason:          input.Reason,
		Notes:           input.Notes,
		Kind:            kind,
		Status:          enums.AdjustmentStatusPending,
		CreatedByUserID: input.ActorUserID,
	}

	if abs(input.Delta) > s.cfg.ApprovalThreshold {
		if input.RequireImmediate {
			return nil, pkgerrors.New(pkgerrors.CodeApprovalRequired, "delta exceeds approval threshold").
				WithDetails(map[string]any{"threshold": s.cfg.ApprovalThreshold, "delta": input.Delta})
		}
		if err := s.repo.WithTx(tx).Create(ctx, adjustment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating pending adjustment")
		}
		if s.logger != nil {
			s.logger.Info(s.logger.WithBatchID(ctx, batch.ID.String()), "adjustment queued for approval")
		}
		return adjustment, nil
	}

	if err := s.repo.WithTx(tx).Create(ctx, adjustment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating adjustment")
	}
	if err := s.applyTx(ctx, tx, adjustment, input.ActorUserID, nil); err != nil {
		return nil, err
	}
	return adjustment, nil
}

// applyTx moves the stock for an adjustment and stamps the before/after
// quantities on the row. The audit kind comes from the row itself so a
// write-off or reconciliation variance keeps its kind when applied later.
func (s *service) applyTx(ctx context.Context, tx *gorm.DB, adjustment *models.Adjustment, actorUserID uuid.UUID, approvedBy *uuid.UUID) error {
	kind := adjustment.Kind
	if kind == "" {
		kind = enums.AuditChangeKindAdjustment
	}
	updated, err := s.batchSvc.ApplyDeltaTx(ctx, tx, batches.DeltaInput{
		BatchID:     adjustment.BatchID,
		Delta:       adjustment.Delta,
		Kind:        kind,
		ReferenceID: &adjustment.ID,
		ActorUserID: actorUserID,
		Note:        adjustment.Reason,
	})
	if err != nil {
		return err
	}

	now := s.now().UTC()
	previous := updated.Quantity - adjustment.Delta
	adjustment.PreviousQuantity = &previous
	adjustment.NewQuantity = &updated.Quantity
	adjustment.Status = enums.AdjustmentStatusApproved
	adjustment.ApprovedByUserID = approvedBy
	adjustment.AppliedAt = &now
	if err := s.repo.WithTx(tx).Update(ctx, adjustment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "applying adjustment")
	}
	return nil
}

// Writeoff zeroes the batch's remaining quantity under a writeoff audit kind.
func (s *service) Writeoff(ctx context.Context, batchID uuid.UUID, reason string, actorUserID uuid.UUID) (*models.Adjustment, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
	}
	if batch == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
	}
	if batch.Quantity == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "batch already empty")
	}
	return s.Adjust(ctx, Input{
		BatchID:     batchID,
		Delta:       -batch.Quantity,
		Reason:      reason,
		ActorUserID: actorUserID,
		Kind:        enums.AuditChangeKindWriteoff,
	})
}

func (s *service) Approve(ctx context.Context, id, approverUserID uuid.UUID) (*models.Adjustment, error) {
	if id == uuid.Nil || approverUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment id and approver required")
	}

	var approved *models.Adjustment
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		adjustment, err := s.repo.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading adjustment")
		}
		if adjustment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "adjustment not found")
		}
		if adjustment.Status != enums.AdjustmentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment is not pending").
				WithDetails(map[string]any{"status": adjustment.Status})
		}
		if adjustment.CreatedByUserID == approverUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "adjustments cannot be self-approved")
		}

		if err := s.applyTx(ctx, tx, adjustment, approverUserID, &approverUserID); err != nil {
			return err
		}
		approved = adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (s *service) Reject(ctx context.Context, id, approverUserID uuid.UUID) (*models.Adjustment, error) {
	if id == uuid.Nil || approverUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment id and approver required")
	}

	var rejected *models.Adjustment
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		adjustment, err := s.repo.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading adjustment")
		}
		if adjustment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "adjustment not found")
		}
		if adjustment.Status != enums.AdjustmentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment is not pending").
				WithDetails(map[string]any{"status": adjustment.Status})
		}

		adjustment.Status = enums.AdjustmentStatusRejected
		adjustment.ApprovedByUserID = &approverUserID
		if err := s.repo.WithTx(tx).Update(ctx, adjustment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rejecting adjustment")
		}
		rejected = adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Adjustment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment id required")
	}
	adjustment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading adjustment")
	}
	if adjustment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "adjustment not found")
	}
	return adjustment, nil
}

func (s *service) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Adjustment, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	adjustments, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing adjustments")
	}
	return adjustments, nil
}

func (s *service) ListPending(ctx context.Context) ([]models.Adjustment, error) {
	adjustments, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing pending adjustments")
	}
	return adjustments, nil
}

func validate(input Input) error {
	switch {
	case input.BatchID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	case input.ActorUserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	case input.Delta == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	case input.Reason == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
