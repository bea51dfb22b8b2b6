package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/api/responses"
	"github.com/obinnaeze/pharmapos-backend/api/validators"
	adjsvc "github.com/obinnaeze/pharmapos-backend/internal/adjustments"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

type adjustRequest struct {
	BatchID          string `json:"batch_id" validate:"required,uuid"`
	Delta            int    `json:"delta" validate:"required"`
	Reason           string `json:"reason" validate:"required"`
	Notes            string `json:"notes,omitempty"`
	RequireImmediate bool   `json:"require_immediate,omitempty"`
}

// CreateAdjustment requests a manual correction. Large deltas queue for
// approval instead of moving stock.
func CreateAdjustment(svc adjsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batchID, err := uuid.Parse(payload.BatchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid batch id"))
			return
		}

		adjustment, err := svc.Adjust(r.Context(), adjsvc.Input{
			BatchID:          batchID,
			Delta:            payload.Delta,
			Reason:           payload.Reason,
			Notes:            payload.Notes,
			ActorUserID:      actor,
			RequireImmediate: payload.RequireImmediate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, adjustment)
	}
}

type writeoffRequest struct {
	BatchID string `json:"batch_id" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"required"`
}

// WriteoffBatch zeroes a batch's remaining quantity, e.g. damaged goods.
func WriteoffBatch(svc adjsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload writeoffRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batchID, err := uuid.Parse(payload.BatchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid batch id"))
			return
		}

		adjustment, err := svc.Writeoff(r.Context(), batchID, payload.Reason, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, adjustment)
	}
}

// ApproveAdjustment applies a pending adjustment. The approver must be a
// different user than the one who requested it.
func ApproveAdjustment(svc adjsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approver, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "adjustmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adjustment, err := svc.Approve(r.Context(), id, approver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, adjustment)
	}
}

// RejectAdjustment discards a pending adjustment without touching stock.
func RejectAdjustment(svc adjsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		approver, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "adjustmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adjustment, err := svc.Reject(r.Context(), id, approver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, adjustment)
	}
}

// AdjustmentDetail returns one adjustment by id.
func AdjustmentDetail(svc adjsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "adjustmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adjustment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, adjustment)
	}
}

// PendingAdjustments lists the approval queue, oldest first.
func PendingAdjustments(svc adjsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adjustments, err := svc.ListPending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, adjustments)
	}
}

// BatchAdjustments lists every adjustment recorded against a batch.
func BatchAdjustments(svc adjsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adjustments, err := svc.ListByBatch(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, adjustments)
	}
}
