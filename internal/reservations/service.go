package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

// ReserveInput places a soft hold on a batch.
type ReserveInput struct {
	BatchID     uuid.UUID
	Quantity    int
	Reason      enums.ReservationReason
	ActorUserID uuid.UUID
	TTL         time.Duration
}

// Service manages the reservation lifecycle. Holds never move stock; only
// confirmation converts a hold into a real deduction. The allocation engine
// does not consult holds, so a hold protects quantity against other holds,
// not against direct sales.
type Service interface {
	Reserve(ctx context.Context, input ReserveInput) (*models.Reservation, error)
	Release(ctx context.Context, id, actorUserID uuid.UUID) (*models.Reservation, error)
	Confirm(ctx context.Context, id, actorUserID uuid.UUID) (*models.Reservation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Reservation, error)
	SweepExpired(ctx context.Context, actorUserID uuid.UUID) (int, error)
}

type service struct {
	runner    db.TxRunner
	repo      Repository
	batchRepo batches.Repository
	batchSvc  batches.Service
	audit     audit.Repository
	cfg       config.LedgerConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewService wires the reservation manager over the batch ledger.
func NewService(runner db.TxRunner, repo Repository, batchRepo batches.Repository, batchSvc batches.Service, auditRepo audit.Repository, cfg config.LedgerConfig, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if batchRepo == nil {
		return nil, fmt.Errorf("batch repository required")
	}
	if batchSvc == nil {
		return nil, fmt.Errorf("batch service required")
	}
	if auditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{
		runner:    runner,
		repo:      repo,
		batchRepo: batchRepo,
		batchSvc:  batchSvc,
		audit:     auditRepo,
		cfg:       cfg,
		logger:    logg,
		now:       time.Now,
	}, nil
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*models.Reservation, error) {
	switch {
	case input.BatchID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	case input.ActorUserID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	case input.Quantity <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	case !input.Reason.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown reservation reason")
	}

	now := s.now().UTC()
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.ReservationTTL
	}

	var created *models.Reservation
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.batchRepo.WithTx(tx).FindByID(ctx, input.BatchID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
		}
		if batch == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindActiveByBatchReason(ctx, batch.ID, input.Reason, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking duplicate hold")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "an active reservation already exists for this batch and reason").
				WithDetails(map[string]any{"reservation_id": existing.ID})
		}

		held, err := repo.SumActiveQuantity(ctx, batch.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summing active holds")
		}
		available := batch.Quantity - held
		if input.Quantity > available {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "reservation exceeds unreserved quantity").
				WithDetails(map[string]any{
					"batch_id":  batch.ID,
					"available": available,
					"requested": input.Quantity,
				})
		}

		expiresAt := now.Add(ttl)
		reservation := &models.Reservation{
			ID:          uuid.New(),
			BatchID:     batch.ID,
			Quantity:    input.Quantity,
			Reason:      input.Reason,
			Status:      enums.ReservationStatusActive,
			OwnerUserID: input.ActorUserID,
			ExpiresAt:   &expiresAt,
		}
		if err := repo.Create(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating reservation")
		}

		// A hold does not change quantity; the audit record keeps the trail
		// complete with previous == new.
		record := &models.AuditRecord{
			ID:               uuid.New(),
			BatchID:          batch.ID,
			PreviousQuantity: batch.Quantity,
			NewQuantity:      batch.Quantity,
			ChangeKind:       enums.AuditChangeKindReservation,
			ReferenceID:      &reservation.ID,
			ActorUserID:      input.ActorUserID,
		}
		if err := s.audit.WithTx(tx).Append(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending reservation audit")
		}

		created = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Release(ctx context.Context, id, actorUserID uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil || actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id and actor required")
	}

	now := s.now().UTC()
	var released *models.Reservation
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation")
		}
		if reservation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}

		switch reservation.Status {
		case enums.ReservationStatusReleased:
			released = reservation
			return nil
		case enums.ReservationStatusConfirmed:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already confirmed")
		}

		note := ""
		if reservation.ExpiredAt(now) {
			note = "ttl expired"
		}

		reservation.Status = enums.ReservationStatusReleased
		reservation.ReleasedAt = &now
		if err := repo.Update(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "releasing reservation")
		}

		batch, err := s.batchRepo.WithTx(tx).FindByID(ctx, reservation.BatchID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
		}
		quantity := 0
		if batch != nil {
			quantity = batch.Quantity
		}
		record := &models.AuditRecord{
			ID:               uuid.New(),
			BatchID:          reservation.BatchID,
			PreviousQuantity: quantity,
			NewQuantity:      quantity,
			ChangeKind:       enums.AuditChangeKindRelease,
			ReferenceID:      &reservation.ID,
			ActorUserID:      actorUserID,
			Note:             note,
		}
		if err := s.audit.WithTx(tx).Append(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending release audit")
		}

		released = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (s *service) Confirm(ctx context.Context, id, actorUserID uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil || actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id and actor required")
	}

	now := s.now().UTC()
	var confirmed *models.Reservation
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation")
		}
		if reservation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		if reservation.EffectiveStatus(now) != enums.ReservationStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is not active").
				WithDetails(map[string]any{"status": reservation.EffectiveStatus(now)})
		}

		if _, err := s.batchSvc.ApplyDeltaTx(ctx, tx, batches.DeltaInput{
			BatchID:     reservation.BatchID,
			Delta:       -reservation.Quantity,
			Kind:        enums.AuditChangeKindConfirmReserve,
			ReferenceID: &reservation.ID,
			ActorUserID: actorUserID,
		}); err != nil {
			return err
		}

		reservation.Status = enums.ReservationStatusConfirmed
		reservation.ConfirmedAt = &now
		if err := repo.Update(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirming reservation")
		}

		confirmed = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation")
	}
	if reservation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	// Lazy TTL: readers see an expired hold as released even before the sweep
	// writes it back.
	reservation.Status = reservation.EffectiveStatus(s.now())
	return reservation, nil
}

func (s *service) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Reservation, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	reservations, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing reservations")
	}
	now := s.now()
	for i := range reservations {
		reservations[i].Status = reservations[i].EffectiveStatus(now)
	}
	return reservations, nil
}

// SweepExpired transitions lapsed holds to released, one transaction per
// reservation so a single bad row cannot wedge the whole sweep.
func (s *service) SweepExpired(ctx context.Context, actorUserID uuid.UUID) (int, error) {
	if actorUserID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	}

	now := s.now().UTC()
	expired, err := s.repo.ListExpiredActive(ctx, now, 0)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing expired reservations")
	}

	swept := 0
	var sweepErr error
	for _, reservation := range expired {
		if _, err := s.Release(ctx, reservation.ID, actorUserID); err != nil {
			sweepErr = multierr.Append(sweepErr, fmt.Errorf("reservation %s: %w", reservation.ID, err))
			continue
		}
		swept++
	}

	if s.logger != nil && swept > 0 {
		s.logger.Info(s.logger.WithField(ctx, "swept", swept), "expired reservations released")
	}
	return swept, sweepErr
}
