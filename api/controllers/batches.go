package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obinnaeze/pharmapos-backend/api/responses"
	"github.com/obinnaeze/pharmapos-backend/api/validators"
	batchsvc "github.com/obinnaeze/pharmapos-backend/internal/batches"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

type receiveBatchRequest struct {
	ProductID   string  `json:"product_id" validate:"required,uuid"`
	StoreID     string  `json:"store_id" validate:"required,uuid"`
	BatchNumber string  `json:"batch_number" validate:"required"`
	ExpiryDate  string  `json:"expiry_date" validate:"required"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	UnitCost    string  `json:"unit_cost" validate:"required"`
	ReceivedAt  *string `json:"received_at,omitempty"`
	Note        string  `json:"note,omitempty"`
}

func (req receiveBatchRequest) toInput(actor uuid.UUID) (batchsvc.ReceiveInput, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return batchsvc.ReceiveInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		return batchsvc.ReceiveInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return batchsvc.ReceiveInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "expiry_date must be YYYY-MM-DD")
	}
	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		return batchsvc.ReceiveInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit cost")
	}

	input := batchsvc.ReceiveInput{
		ProductID:   productID,
		StoreID:     storeID,
		BatchNumber: req.BatchNumber,
		ExpiryDate:  expiry,
		Quantity:    req.Quantity,
		UnitCost:    unitCost,
		ActorUserID: actor,
		Note:        req.Note,
	}
	if req.ReceivedAt != nil {
		receivedAt, err := time.Parse(time.RFC3339, *req.ReceivedAt)
		if err != nil {
			return batchsvc.ReceiveInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "received_at must be RFC3339")
		}
		input.ReceivedAt = receivedAt
	}
	return input, nil
}

// ReceiveBatch books a new delivery into a store's stock.
func ReceiveBatch(svc batchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload receiveBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.Receive(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, batch)
	}
}

// BatchDetail returns a single batch by id.
func BatchDetail(svc batchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, batch)
	}
}

// StoreInventory lists a store's batches decorated with stock status.
func StoreInventory(svc batchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.StoreInventory(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, views)
	}
}

// ProductStock sums a product's on-hand quantity; store_id narrows the scope.
func ProductStock(svc batchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := validators.ParseQueryUUID(r, "store_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stock, err := svc.Stock(r.Context(), productID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stock)
	}
}

// AllocatableBatches previews the FEFO ordering for a product at a store.
func AllocatableBatches(svc batchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := validators.ParseQueryUUID(r, "store_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if storeID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "store_id is required"))
			return
		}

		batches, err := svc.Allocatable(r.Context(), productID, storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, batches)
	}
}

// ExpiringBatches lists batches expiring within the requested window.
func ExpiringBatches(svc batchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		days, err := validators.ParseQueryInt(r, "days", batchsvc.DefaultExpiryWindowDays, 1, 365)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batches, err := svc.Expiring(r.Context(), storeID, days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, batches)
	}
}

// ExpiredBatches lists batches already past their expiry date.
func ExpiredBatches(svc batchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batches, err := svc.Expired(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, batches)
	}
}

// LowStockBatches lists batches under the configured low-stock threshold.
func LowStockBatches(svc batchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := pathUUID(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batches, err := svc.LowStock(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, batches)
	}
}
