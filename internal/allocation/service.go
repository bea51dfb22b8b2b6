package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

// Input is one FEFO allocation request, usually issued by a sale checkout.
type Input struct {
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	Quantity    int
	ActorUserID uuid.UUID
	ReferenceID *uuid.UUID
	Note        string
}

// Line records the quantity taken from a single batch.
type Line struct {
	BatchID     uuid.UUID `json:"batch_id"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Quantity    int       `json:"quantity"`
}

// Result describes the allocation outcome. Partial results stand as written:
// already-deducted lines are not rolled back on shortage, so a caller can
// record a partial fulfilment and raise a backorder for the rest.
type Result struct {
	ProductID uuid.UUID `json:"product_id"`
	StoreID   uuid.UUID `json:"store_id"`
	Requested int       `json:"requested"`
	Allocated int       `json:"allocated"`
	Shortage  int       `json:"shortage"`
	Partial   bool      `json:"partial"`
	Lines     []Line    `json:"lines"`
}

// Service picks stock in first-expire-first-out order.
type Service interface {
	Allocate(ctx context.Context, input Input) (*Result, error)
	AllocateTx(ctx context.Context, tx *gorm.DB, input Input) (*Result, error)
}

type service struct {
	runner    db.TxRunner
	batchRepo batches.Repository
	batchSvc  batches.Service
	logger    *logger.Logger
	now       func() time.Time
}

// NewService wires the allocation engine on top of the batch ledger.
func NewService(runner db.TxRunner, batchRepo batches.Repository, batchSvc batches.Service, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if batchRepo == nil {
		return nil, fmt.Errorf("batch repository required")
	}
	if batchSvc == nil {
		return nil, fmt.Errorf("batch service required")
	}
	return &service{
		runner:    runner,
		batchRepo: batchRepo,
		batchSvc:  batchSvc,
		logger:    logg,
		now:       time.Now,
	}, nil
}

// Allocate runs the FEFO loop inside its own transaction so all picked lines
// for one request become visible together.
func (s *service) Allocate(ctx context.Context, input Input) (*Result, error) {
	var result *Result
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		r, err := s.AllocateTx(ctx, tx, input)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AllocateTx walks eligible batches in expiry order, deducting from each until
// the request is filled or batches run out. Shortage is reported on the
// result, never raised as an error.
func (s *service) AllocateTx(ctx context.Context, tx *gorm.DB, input Input) (*Result, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	today := dateOnly(s.now())
	eligible, err := s.batchRepo.WithTx(tx).FindAllocatable(ctx, input.ProductID, input.StoreID, today)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing allocatable batches")
	}

	result := &Result{
		ProductID: input.ProductID,
		StoreID:   input.StoreID,
		Requested: input.Quantity,
		Lines:     []Line{},
	}
	remaining := input.Quantity

	for _, candidate := range eligible {
		if remaining == 0 {
			break
		}
		take := min(remaining, candidate.Quantity)
		if take == 0 {
			continue
		}

		updated, err := s.batchSvc.ApplyDeltaTx(ctx, tx, batches.DeltaInput{
			BatchID:     candidate.ID,
			Delta:       -take,
			Kind:        enums.AuditChangeKindAllocation,
			ReferenceID: input.ReferenceID,
			ActorUserID: input.ActorUserID,
			Note:        input.Note,
		})
		if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			// A concurrent caller drained this batch between the listing and
			// the deduction. Take whatever is left, or move on.
			if err := s.retryDrained(ctx, tx, candidate.ID, &remaining, input, result); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		result.Lines = append(result.Lines, Line{
			BatchID:     updated.ID,
			BatchNumber: updated.BatchNumber,
			ExpiryDate:  updated.ExpiryDate,
			Quantity:    take,
		})
		result.Allocated += take
		remaining -= take
	}

	result.Shortage = remaining
	result.Partial = remaining > 0

	if s.logger != nil && result.Partial {
		lctx := s.logger.WithFields(ctx, map[string]any{
			"product_id": input.ProductID.String(),
			"store_id":   input.StoreID.String(),
			"shortage":   result.Shortage,
		})
		s.logger.Warn(lctx, "allocation filled partially")
	}
	return result, nil
}

// retryDrained re-reads a batch that failed its deduction and takes whatever
// quantity it still holds. An empty batch is simply skipped.
func (s *service) retryDrained(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, remaining *int, input Input, result *Result) error {
	fresh, err := s.batchRepo.WithTx(tx).FindByID(ctx, batchID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-reading drained batch")
	}
	if fresh == nil || fresh.Quantity <= 0 {
		return nil
	}

	take := min(*remaining, fresh.Quantity)
	updated, err := s.batchSvc.ApplyDeltaTx(ctx, tx, batches.DeltaInput{
		BatchID:     fresh.ID,
		Delta:       -take,
		Kind:        enums.AuditChangeKindAllocation,
		ReferenceID: input.ReferenceID,
		ActorUserID: input.ActorUserID,
		Note:        input.Note,
	})
	if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		// Drained again; give up on this batch and let the loop continue.
		return nil
	}
	if err != nil {
		return err
	}

	result.Lines = append(result.Lines, Line{
		BatchID:     updated.ID,
		BatchNumber: updated.BatchNumber,
		ExpiryDate:  updated.ExpiryDate,
		Quantity:    take,
	})
	result.Allocated += take
	*remaining -= take
	return nil
}

func validate(input Input) error {
	switch {
	case input.ProductID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	case input.StoreID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	case input.ActorUserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	case input.Quantity <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
