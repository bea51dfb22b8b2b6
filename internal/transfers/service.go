package transfers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

// InitiateInput starts an inter-store movement.
type InitiateInput struct {
	ProductID   uuid.UUID
	BatchNumber string
	Quantity    int
	FromStoreID uuid.UUID
	ToStoreID   uuid.UUID
	ActorUserID uuid.UUID
	Note        string
}

// Service coordinates the two-phase transfer flow: debit at initiation,
// credit at receipt, compensating credit on cancellation.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*models.Transfer, error)
	Receive(ctx context.Context, id uuid.UUID, receivedQuantity int, actorUserID uuid.UUID) (*models.Transfer, error)
	Cancel(ctx context.Context, id, actorUserID uuid.UUID) (*models.Transfer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Transfer, error)
	PendingForStore(ctx context.Context, toStoreID uuid.UUID) ([]models.Transfer, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Transfer, error)
}

type service struct {
	runner    db.TxRunner
	repo      Repository
	batchRepo batches.Repository
	batchSvc  batches.Service
	logger    *logger.Logger
	now       func() time.Time
}

// NewService wires the transfer coordinator over the batch ledger.
func NewService(runner db.TxRunner, repo Repository, batchRepo batches.Repository, batchSvc batches.Service, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("transfer repository required")
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
		logger:    logg,
		now:       time.Now,
	}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*models.Transfer, error) {
	switch {
	case input.ProductID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	case input.BatchNumber == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch number required")
	case input.Quantity <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	case input.FromStoreID == uuid.Nil || input.ToStoreID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "both store ids required")
	case input.FromStoreID == input.ToStoreID:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination stores must differ")
	case input.ActorUserID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	}

	var created *models.Transfer
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)

		if ok, err := batchRepo.StoreExists(ctx, input.ToStoreID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking destination store")
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "destination store not found")
		}

		source, err := batchRepo.FindByNumber(ctx, input.ProductID, input.FromStoreID, input.BatchNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading source batch")
		}
		if source == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "source batch not found")
		}

		transfer := &models.Transfer{
			ID:                uuid.New(),
			ProductID:         input.ProductID,
			BatchNumber:       input.BatchNumber,
			Quantity:          input.Quantity,
			FromStoreID:       input.FromStoreID,
			ToStoreID:         input.ToStoreID,
			Status:            enums.TransferStatusPending,
			InitiatedByUserID: input.ActorUserID,
		}
		if err := s.repo.WithTx(tx).Create(ctx, transfer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating transfer")
		}

		if _, err := s.batchSvc.ApplyDeltaTx(ctx, tx, batches.DeltaInput{
			BatchID:     source.ID,
			Delta:       -input.Quantity,
			Kind:        enums.AuditChangeKindTransferOut,
			ReferenceID: &transfer.ID,
			ActorUserID: input.ActorUserID,
			Note:        input.Note,
		}); err != nil {
			return err
		}

		created = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info(s.logger.WithField(ctx, "transfer_id", created.ID.String()), "transfer initiated")
	}
	return created, nil
}

// Receive credits the destination store. The destination batch is created on
// first sight of the batch number, inheriting expiry and cost from the source.
func (s *service) Receive(ctx context.Context, id uuid.UUID, receivedQuantity int, actorUserID uuid.UUID) (*models.Transfer, error) {
	if id == uuid.Nil || actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id and actor required")
	}

	var received *models.Transfer
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		transfer, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading transfer")
		}
		if transfer == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		if transfer.Status != enums.TransferStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transfer is not pending").
				WithDetails(map[string]any{"status": transfer.Status})
		}

		if receivedQuantity <= 0 {
			receivedQuantity = transfer.Quantity
		}
		if receivedQuantity > transfer.Quantity {
			return pkgerrors.New(pkgerrors.CodeValidation, "received quantity exceeds transferred quantity")
		}

		batchRepo := s.batchRepo.WithTx(tx)
		source, err := batchRepo.FindByNumber(ctx, transfer.ProductID, transfer.FromStoreID, transfer.BatchNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading source batch")
		}
		ensure := batches.EnsureInput{
			ProductID:   transfer.ProductID,
			StoreID:     transfer.ToStoreID,
			BatchNumber: transfer.BatchNumber,
		}
		if source != nil {
			ensure.ExpiryDate = source.ExpiryDate
			ensure.UnitCost = source.UnitCost
		}
		destination, err := s.batchSvc.EnsureBatchTx(ctx, tx, ensure)
		if err != nil {
			return err
		}

		if _, err := s.batchSvc.ApplyDeltaTx(ctx, tx, batches.DeltaInput{
			BatchID:     destination.ID,
			Delta:       receivedQuantity,
			Kind:        enums.AuditChangeKindTransferIn,
			ReferenceID: &transfer.ID,
			ActorUserID: actorUserID,
		}); err != nil {
			return err
		}

		now := s.now().UTC()
		transfer.Status = enums.TransferStatusReceived
		transfer.ReceivedByUserID = &actorUserID
		transfer.ReceivedQuantity = &receivedQuantity
		transfer.ReceivedAt = &now
		if err := repo.Update(ctx, transfer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking transfer received")
		}

		received = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return received, nil
}

// Cancel reverses the initiation debit with a compensating credit. Only
// pending transfers can be cancelled.
func (s *service) Cancel(ctx context.Context, id, actorUserID uuid.UUID) (*models.Transfer, error) {
	if id == uuid.Nil || actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id and actor required")
	}

	var cancelled *models.Transfer
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		transfer, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading transfer")
		}
		if transfer == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
		}
		if transfer.Status != enums.TransferStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending transfers can be cancelled").
				WithDetails(map[string]any{"status": transfer.Status})
		}

		source, err := s.batchRepo.WithTx(tx).FindByNumber(ctx, transfer.ProductID, transfer.FromStoreID, transfer.BatchNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading source batch")
		}
		if source == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "source batch not found")
		}

		if _, err := s.batchSvc.ApplyDeltaTx(ctx, tx, batches.DeltaInput{
			BatchID:     source.ID,
			Delta:       transfer.Quantity,
			Kind:        enums.AuditChangeKindTransferOutReversed,
			ReferenceID: &transfer.ID,
			ActorUserID: actorUserID,
		}); err != nil {
			return err
		}

		transfer.Status = enums.TransferStatusCancelled
		if err := repo.Update(ctx, transfer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marking transfer cancelled")
		}

		cancelled = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Transfer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id required")
	}
	transfer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading transfer")
	}
	if transfer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
	}
	return transfer, nil
}

func (s *service) PendingForStore(ctx context.Context, toStoreID uuid.UUID) ([]models.Transfer, error) {
	if toStoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	transfers, err := s.repo.ListPendingForStore(ctx, toStoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing pending transfers")
	}
	return transfers, nil
}

func (s *service) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Transfer, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	transfers, err := s.repo.ListByStore(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing transfers")
	}
	return transfers, nil
}
