package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

type expiredBatchReader interface {
	ListActiveStores(ctx context.Context) ([]models.Store, error)
	ListExpired(ctx context.Context, storeID uuid.UUID, before time.Time) ([]models.Batch, error)
}

type deltaApplier interface {
	ApplyDelta(ctx context.Context, input batches.DeltaInput) (*models.Batch, error)
}

// BatchExpiryJobParams configure the auto write-off of expired stock.
type BatchExpiryJobParams struct {
	Logger      *logger.Logger
	Batches     expiredBatchReader
	Ledger      deltaApplier
	SystemActor uuid.UUID
	// HorizonDays widens the window: stock expiring within the horizon is
	// written off early. Zero keeps the job to already-expired batches.
	HorizonDays int
}

// NewBatchExpiryJob builds the job that zeroes expired batches so they can
// never be sold, while the rows stay visible for audit.
func NewBatchExpiryJob(params BatchExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Batches == nil {
		return nil, fmt.Errorf("batch reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.SystemActor == uuid.Nil {
		return nil, fmt.Errorf("system actor required")
	}
	if params.HorizonDays < 0 {
		params.HorizonDays = 0
	}
	return &batchExpiryJob{
		logg:        params.Logger,
		batches:     params.Batches,
		ledger:      params.Ledger,
		systemActor: params.SystemActor,
		horizonDays: params.HorizonDays,
		now:         time.Now,
	}, nil
}

type batchExpiryJob struct {
	logg        *logger.Logger
	batches     expiredBatchReader
	ledger      deltaApplier
	systemActor uuid.UUID
	horizonDays int
	now         func() time.Time
}

func (j *batchExpiryJob) Name() string { return "batch-expiry" }

func (j *batchExpiryJob) Run(ctx context.Context) error {
	stores, err := j.batches.ListActiveStores(ctx)
	if err != nil {
		return fmt.Errorf("list active stores: %w", err)
	}

	cutoff := startOfDay(j.now()).AddDate(0, 0, j.horizonDays)
	written := 0
	var errs error
	for _, store := range stores {
		count, err := j.expireStore(ctx, store.ID, cutoff)
		written += count
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", store.ID, err))
		}
	}

	logCtx := j.logg.WithField(ctx, "written_off", written)
	j.logg.Info(logCtx, "batch expiry loop complete")
	return errs
}

// expireStore writes off each batch independently so one conflicted row does
// not block the rest of the store.
func (j *batchExpiryJob) expireStore(ctx context.Context, storeID uuid.UUID, cutoff time.Time) (int, error) {
	expired, err := j.batches.ListExpired(ctx, storeID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired batches: %w", err)
	}

	count := 0
	var errs error
	for _, batch := range expired {
		_, err := j.ledger.ApplyDelta(ctx, batches.DeltaInput{
			BatchID:     batch.ID,
			Delta:       -batch.Quantity,
			Kind:        enums.AuditChangeKindExpired,
			ActorUserID: j.systemActor,
			Note:        fmt.Sprintf("expired %s", batch.ExpiryDate.Format("2006-01-02")),
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("batch %s: %w", batch.ID, err))
			continue
		}
		count++
	}
	return count, errs
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
