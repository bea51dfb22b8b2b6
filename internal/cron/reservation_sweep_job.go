package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

type reservationSweeper interface {
	SweepExpired(ctx context.Context, actorUserID uuid.UUID) (int, error)
}

// ReservationSweepJobParams configure the TTL sweep.
type ReservationSweepJobParams struct {
	Logger       *logger.Logger
	Reservations reservationSweeper
	SystemActor  uuid.UUID
}

// NewReservationSweepJob builds the job that releases lapsed holds. Readers
// already treat them as released; the sweep just writes that fact down.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation service required")
	}
	if params.SystemActor == uuid.Nil {
		return nil, fmt.Errorf("system actor required")
	}
	return &reservationSweepJob{
		logg:         params.Logger,
		reservations: params.Reservations,
		systemActor:  params.SystemActor,
	}, nil
}

type reservationSweepJob struct {
	logg         *logger.Logger
	reservations reservationSweeper
	systemActor  uuid.UUID
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	swept, err := j.reservations.SweepExpired(ctx, j.systemActor)
	logCtx := j.logg.WithField(ctx, "swept", swept)
	if err != nil {
		return fmt.Errorf("sweep expired reservations: %w", err)
	}
	j.logg.Info(logCtx, "reservation sweep complete")
	return nil
}
