package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/obinnaeze/pharmapos-backend/api/responses"
	"github.com/obinnaeze/pharmapos-backend/api/validators"
	trfsvc "github.com/obinnaeze/pharmapos-backend/internal/transfers"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

type initiateTransferRequest struct {
	ProductID   string `json:"product_id" validate:"required,uuid"`
	BatchNumber string `json:"batch_number" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	FromStoreID string `json:"from_store_id" validate:"required,uuid"`
	ToStoreID   string `json:"to_store_id" validate:"required,uuid"`
	Note        string `json:"note,omitempty"`
}

// InitiateTransfer debits the source store and opens a pending transfer.
func InitiateTransfer(svc trfsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload initiateTransferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}
		fromStoreID, err := uuid.Parse(payload.FromStoreID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from_store_id"))
			return
		}
		toStoreID, err := uuid.Parse(payload.ToStoreID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to_store_id"))
			return
		}

		transfer, err := svc.Initiate(r.Context(), trfsvc.InitiateInput{
			ProductID:   productID,
			BatchNumber: payload.BatchNumber,
			Quantity:    payload.Quantity,
			FromStoreID: fromStoreID,
			ToStoreID:   toStoreID,
			ActorUserID: actor,
			Note:        payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, transfer)
	}
}

type receiveTransferRequest struct {
	// ReceivedQuantity below the shipped amount records a short receipt.
	// Zero means the full shipped quantity arrived.
	ReceivedQuantity int `json:"received_quantity,omitempty" validate:"omitempty,gt=0"`
}

// ReceiveTransfer credits the destination store and closes the transfer.
func ReceiveTransfer(svc trfsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// An empty body means the full shipped quantity arrived.
		var payload receiveTransferRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		transfer, err := svc.Receive(r.Context(), id, payload.ReceivedQuantity, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, transfer)
	}
}

// CancelTransfer returns in-flight quantity to the source store.
func CancelTransfer(svc trfsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := pathUUID(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfer, err := svc.Cancel(r.Context(), id, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, transfer)
	}
}

// TransferDetail returns one transfer by id.
func TransferDetail(svc trfsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfer, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, transfer)
	}
}

// PendingTransfers lists inbound transfers awaiting receipt at a store.
func PendingTransfers(svc trfsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfers, err := svc.PendingForStore(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, transfers)
	}
}

// StoreTransfers lists transfers where the store is sender or receiver.
func StoreTransfers(svc trfsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfers, err := svc.ListByStore(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, transfers)
	}
}
