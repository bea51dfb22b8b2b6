package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/obinnaeze/pharmapos-backend/api/controllers"
	"github.com/obinnaeze/pharmapos-backend/api/middleware"
	"github.com/obinnaeze/pharmapos-backend/internal/adjustments"
	"github.com/obinnaeze/pharmapos-backend/internal/allocation"
	"github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/internal/reconciliation"
	"github.com/obinnaeze/pharmapos-backend/internal/reservations"
	"github.com/obinnaeze/pharmapos-backend/internal/transfers"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

// Services bundles everything the router hands to its controllers.
type Services struct {
	Batches        batches.Service
	Allocation     allocation.Service
	Reservations   reservations.Service
	Adjustments    adjustments.Service
	Transfers      transfers.Service
	Reconciliation reconciliation.Service
	Audit          audit.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", controllers.ReceiveBatch(svcs.Batches, logg))
			r.Get("/{batchId}", controllers.BatchDetail(svcs.Batches, logg))
			r.Get("/{batchId}/reservations", controllers.BatchReservations(svcs.Reservations, logg))
			r.Get("/{batchId}/adjustments", controllers.BatchAdjustments(svcs.Adjustments, logg))
			r.Get("/{batchId}/audit", controllers.BatchAuditTrail(svcs.Audit, logg))
		})

		r.Route("/products/{productId}", func(r chi.Router) {
			r.Get("/stock", controllers.ProductStock(svcs.Batches, logg))
			r.Get("/allocatable", controllers.AllocatableBatches(svcs.Batches, logg))
		})

		r.Route("/stores/{storeId}", func(r chi.Router) {
			r.Get("/inventory", controllers.StoreInventory(svcs.Batches, logg))
			r.Get("/expiring", controllers.ExpiringBatches(svcs.Batches, logg))
			r.Get("/expired", controllers.ExpiredBatches(svcs.Batches, logg))
			r.Get("/low-stock", controllers.LowStockBatches(svcs.Batches, logg))
			r.Get("/transfers", controllers.StoreTransfers(svcs.Transfers, logg))
			r.Get("/transfers/pending", controllers.PendingTransfers(svcs.Transfers, logg))
			r.Get("/reconciliations", controllers.StoreReconciliations(svcs.Reconciliation, logg))
		})

		r.Post("/allocations", controllers.Allocate(svcs.Allocation, logg))

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", controllers.Reserve(svcs.Reservations, logg))
			r.Get("/{reservationId}", controllers.ReservationDetail(svcs.Reservations, logg))
			r.Post("/{reservationId}/release", controllers.ReleaseReservation(svcs.Reservations, logg))
			r.Post("/{reservationId}/confirm", controllers.ConfirmReservation(svcs.Reservations, logg))
		})

		r.Route("/adjustments", func(r chi.Router) {
			r.Post("/", controllers.CreateAdjustment(svcs.Adjustments, logg))
			r.Post("/writeoff", controllers.WriteoffBatch(svcs.Adjustments, logg))
			r.Get("/{adjustmentId}", controllers.AdjustmentDetail(svcs.Adjustments, logg))

			// Approval decisions are a supervisory action.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, string(enums.UserRoleAdmin), string(enums.UserRoleManager)))
				r.Get("/pending", controllers.PendingAdjustments(svcs.Adjustments, logg))
				r.Post("/{adjustmentId}/approve", controllers.ApproveAdjustment(svcs.Adjustments, logg))
				r.Post("/{adjustmentId}/reject", controllers.RejectAdjustment(svcs.Adjustments, logg))
			})
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", controllers.InitiateTransfer(svcs.Transfers, logg))
			r.Get("/{transferId}", controllers.TransferDetail(svcs.Transfers, logg))
			r.Post("/{transferId}/receive", controllers.ReceiveTransfer(svcs.Transfers, logg))
			r.Post("/{transferId}/cancel", controllers.CancelTransfer(svcs.Transfers, logg))
		})

		r.Post("/reconciliations", controllers.Reconcile(svcs.Reconciliation, logg))
		r.Get("/reconciliations/{reconciliationId}", controllers.ReconciliationDetail(svcs.Reconciliation, logg))

		r.Get("/audit/references/{referenceId}", controllers.ReferenceAuditTrail(svcs.Audit, logg))
	})

	return r
}
