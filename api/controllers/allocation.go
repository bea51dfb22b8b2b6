package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/api/responses"
	"github.com/obinnaeze/pharmapos-backend/api/validators"
	allocsvc "github.com/obinnaeze/pharmapos-backend/internal/allocation"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

type allocateRequest struct {
	ProductID   string  `json:"product_id" validate:"required,uuid"`
	StoreID     string  `json:"store_id" validate:"required,uuid"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	ReferenceID *string `json:"reference_id,omitempty" validate:"omitempty,uuid"`
	Note        string  `json:"note,omitempty"`
}

// Allocate deducts stock for a sale in first-expire-first-out order.
func Allocate(svc allocsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload allocateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}
		storeID, err := uuid.Parse(payload.StoreID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id"))
			return
		}

		input := allocsvc.Input{
			ProductID:   productID,
			StoreID:     storeID,
			Quantity:    payload.Quantity,
			ActorUserID: actor,
			Note:        payload.Note,
		}
		if payload.ReferenceID != nil {
			refID, err := uuid.Parse(*payload.ReferenceID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reference id"))
				return
			}
			input.ReferenceID = &refID
		}

		result, err := svc.Allocate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
