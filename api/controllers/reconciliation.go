package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/api/responses"
	"github.com/obinnaeze/pharmapos-backend/api/validators"
	recsvc "github.com/obinnaeze/pharmapos-backend/internal/reconciliation"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

type reconcileCountRequest struct {
	BatchID         string `json:"batch_id" validate:"required,uuid"`
	CountedQuantity int    `json:"counted_quantity" validate:"min=0"`
}

type reconcileRequest struct {
	StoreID string                  `json:"store_id" validate:"required,uuid"`
	Counts  []reconcileCountRequest `json:"counts" validate:"required,min=1,dive"`
	Notes   string                  `json:"notes,omitempty"`
}

// Reconcile submits a physical count session and adjusts every variance.
func Reconcile(svc recsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reconcileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		storeID, err := uuid.Parse(payload.StoreID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id"))
			return
		}

		counts := make([]recsvc.Count, 0, len(payload.Counts))
		for _, count := range payload.Counts {
			batchID, err := uuid.Parse(count.BatchID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid batch id"))
				return
			}
			counts = append(counts, recsvc.Count{
				BatchID:         batchID,
				CountedQuantity: count.CountedQuantity,
			})
		}

		record, err := svc.Reconcile(r.Context(), recsvc.Input{
			StoreID:     storeID,
			Counts:      counts,
			ActorUserID: actor,
			Notes:       payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// ReconciliationDetail returns a count session with its per-line outcomes.
func ReconciliationDetail(svc recsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "reconciliationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// StoreReconciliations lists a store's count sessions, newest first.
func StoreReconciliations(svc recsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.ListByStore(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, records)
	}
}
