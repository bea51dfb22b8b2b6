package batches

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/logger"
)

// StockStatus classifies a batch for inventory views.
type StockStatus string

const (
	StockStatusOK       StockStatus = "ok"
	StockStatusLow      StockStatus = "low_stock"
	StockStatusExpiring StockStatus = "expiring_soon"
	StockStatusExpired  StockStatus = "expired"
)

// DefaultExpiryWindowDays is the lookahead used by expiring-soon views when
// the caller does not pass one.
const DefaultExpiryWindowDays = 30

// ReceiveInput carries everything needed to book new stock into a store.
type ReceiveInput struct {
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	BatchNumber string
	ExpiryDate  time.Time
	Quantity    int
	UnitCost    decimal.Decimal
	ReceivedAt  time.Time
	ActorUserID uuid.UUID
	Note        string
}

// DeltaInput is one signed quantity mutation against a batch. Every write in
// the system, whatever its business meaning, reduces to one of these.
type DeltaInput struct {
	BatchID     uuid.UUID
	Delta       int
	Kind        enums.AuditChangeKind
	ReferenceID *uuid.UUID
	ActorUserID uuid.UUID
	Note        string
}

// EnsureInput locates or creates the destination batch for an inbound
// transfer without moving any quantity.
type EnsureInput struct {
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	BatchNumber string
	ExpiryDate  time.Time
	UnitCost    decimal.Decimal
}

// BatchView is a batch decorated with its derived stock status.
type BatchView struct {
	models.Batch
	Status StockStatus `json:"status"`
}

// ProductStock summarizes a product's on-hand quantity across batches.
type ProductStock struct {
	ProductID     uuid.UUID `json:"product_id"`
	StoreID       uuid.UUID `json:"store_id,omitempty"`
	TotalQuantity int       `json:"total_quantity"`
}

// Service owns every quantity mutation in the ledger.
type Service interface {
	Receive(ctx context.Context, input ReceiveInput) (*models.Batch, error)
	ApplyDelta(ctx context.Context, input DeltaInput) (*models.Batch, error)
	ApplyDeltaTx(ctx context.Context, tx *gorm.DB, input DeltaInput) (*models.Batch, error)
	EnsureBatchTx(ctx context.Context, tx *gorm.DB, input EnsureInput) (*models.Batch, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	Allocatable(ctx context.Context, productID, storeID uuid.UUID) ([]models.Batch, error)
	StoreInventory(ctx context.Context, storeID uuid.UUID) ([]BatchView, error)
	Stock(ctx context.Context, productID, storeID uuid.UUID) (*ProductStock, error)
	Expiring(ctx context.Context, storeID uuid.UUID, days int) ([]models.Batch, error)
	Expired(ctx context.Context, storeID uuid.UUID) ([]models.Batch, error)
	LowStock(ctx context.Context, storeID uuid.UUID) ([]models.Batch, error)
	ActiveStores(ctx context.Context) ([]models.Store, error)
}

type service struct {
	runner db.TxRunner
	repo   Repository
	audit  audit.Repository
	cfg    config.LedgerConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewService wires the batch service with its repositories and policy config.
func NewService(runner db.TxRunner, repo Repository, auditRepo audit.Repository, cfg config.LedgerConfig, logg *logger.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("batch repository required")
	}
	if auditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{
		runner: runner,
		repo:   repo,
		audit:  auditRepo,
		cfg:    cfg,
		logger: logg,
		now:    time.Now,
	}, nil
}

func (s *service) Receive(ctx context.Context, input ReceiveInput) (*models.Batch, error) {
	if err := s.validateReceive(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	var created *models.Batch
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if ok, err := repo.ProductExists(ctx, input.ProductID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking product")
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if ok, err := repo.StoreExists(ctx, input.StoreID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking store")
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}

		existing, err := repo.FindByNumber(ctx, input.ProductID, input.StoreID, input.BatchNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking batch number")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "batch number already received for this product and store").
				WithDetails(map[string]any{"batch_id": existing.ID})
		}

		batch := &models.Batch{
			ID:          uuid.New(),
			ProductID:   input.ProductID,
			StoreID:     input.StoreID,
			BatchNumber: input.BatchNumber,
			ExpiryDate:  dateOnly(input.ExpiryDate),
			Quantity:    input.Quantity,
			UnitCost:    input.UnitCost,
			ReceivedAt:  receivedAt,
			Version:     1,
		}
		if err := repo.Create(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating batch")
		}

		record := &models.AuditRecord{
			ID:               uuid.New(),
			BatchID:          batch.ID,
			PreviousQuantity: 0,
			NewQuantity:      batch.Quantity,
			ChangeKind:       enums.AuditChangeKindReceipt,
			ActorUserID:      input.ActorUserID,
			Note:             input.Note,
		}
		if err := s.audit.WithTx(tx).Append(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending receipt audit")
		}

		created = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithBatchID(ctx, created.ID.String())
		s.logger.Info(lctx, "batch received")
	}
	return created, nil
}

func (s *service) validateReceive(input ReceiveInput) error {
	switch {
	case input.ProductID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	case input.StoreID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	case input.ActorUserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	case input.BatchNumber == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "batch number required")
	case input.Quantity <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	case input.ExpiryDate.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "expiry date required")
	}
	if dateOnly(input.ExpiryDate).Before(dateOnly(s.now())) {
		return pkgerrors.New(pkgerrors.CodeValidation, "expiry date is already past")
	}
	return nil
}

// ApplyDelta runs one mutation in its own transaction.
func (s *service) ApplyDelta(ctx context.Context, input DeltaInput) (*models.Batch, error) {
	var updated *models.Batch
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.ApplyDeltaTx(ctx, tx, input)
		if err != nil {
			return err
		}
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyDeltaTx applies one signed delta inside the caller's transaction. The
// quantity write and its audit record always land (or fail) together. A
// version mismatch re-reads and retries up to the configured bound before
// surfacing a concurrency conflict.
func (s *service) ApplyDeltaTx(ctx context.Context, tx *gorm.DB, input DeltaInput) (*models.Batch, error) {
	if input.BatchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown change kind")
	}

	repo := s.repo.WithTx(tx)
	retries := s.cfg.DeltaRetries
	if retries < 0 {
		retries = 0
	}

	for attempt := 0; attempt <= retries; attempt++ {
		batch, err := repo.FindByID(ctx, input.BatchID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
		}
		if batch == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
		}

		newQuantity := batch.Quantity + input.Delta
		if newQuantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "delta would drive quantity negative").
				WithDetails(map[string]any{
					"batch_id":  batch.ID,
					"available": batch.Quantity,
					"requested": -input.Delta,
				})
		}

		ok, err := repo.UpdateQuantityVersioned(ctx, batch.ID, batch.Version, newQuantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating batch quantity")
		}
		if !ok {
			// Lost the race; loop re-reads the fresh row.
			continue
		}

		record := &models.AuditRecord{
			ID:               uuid.New(),
			BatchID:          batch.ID,
			PreviousQuantity: batch.Quantity,
			NewQuantity:      newQuantity,
			ChangeKind:       input.Kind,
			ReferenceID:      input.ReferenceID,
			ActorUserID:      input.ActorUserID,
			Note:             input.Note,
		}
		if err := s.audit.WithTx(tx).Append(ctx, record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending audit record")
		}

		batch.Quantity = newQuantity
		batch.Version++
		return batch, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "batch changed concurrently, retries exhausted").
		WithDetails(map[string]any{"batch_id": input.BatchID})
}

// EnsureBatchTx finds the destination batch for an inbound movement, creating
// an empty one when the batch number has never been seen at the store. The
// caller credits quantity with a follow-up delta in the same transaction.
func (s *service) EnsureBatchTx(ctx context.Context, tx *gorm.DB, input EnsureInput) (*models.Batch, error) {
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByNumber(ctx, input.ProductID, input.StoreID, input.BatchNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up destination batch")
	}
	if existing != nil {
		return existing, nil
	}

	batch := &models.Batch{
		ID:          uuid.New(),
		ProductID:   input.ProductID,
		StoreID:     input.StoreID,
		BatchNumber: input.BatchNumber,
		ExpiryDate:  dateOnly(input.ExpiryDate),
		Quantity:    0,
		UnitCost:    input.UnitCost,
		ReceivedAt:  s.now().UTC(),
		Version:     1,
	}
	if err := repo.Create(ctx, batch); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating destination batch")
	}
	return batch, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading batch")
	}
	if batch == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
	}
	return batch, nil
}

func (s *service) Allocatable(ctx context.Context, productID, storeID uuid.UUID) ([]models.Batch, error) {
	if productID == uuid.Nil || storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id and store id required")
	}
	batches, err := s.repo.FindAllocatable(ctx, productID, storeID, dateOnly(s.now()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing allocatable batches")
	}
	return batches, nil
}

func (s *service) StoreInventory(ctx context.Context, storeID uuid.UUID) ([]BatchView, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	batches, err := s.repo.ListByStore(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing store inventory")
	}
	now := s.now()
	views := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, BatchView{Batch: b, Status: s.statusOf(b, now)})
	}
	return views, nil
}

func (s *service) Stock(ctx context.Context, productID, storeID uuid.UUID) (*ProductStock, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	total, err := s.repo.SumProductQuantity(ctx, productID, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summing product stock")
	}
	return &ProductStock{ProductID: productID, StoreID: storeID, TotalQuantity: total}, nil
}

func (s *service) Expiring(ctx context.Context, storeID uuid.UUID, days int) ([]models.Batch, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if days <= 0 {
		days = DefaultExpiryWindowDays
	}
	from := dateOnly(s.now())
	until := from.AddDate(0, 0, days)
	batches, err := s.repo.ListExpiring(ctx, storeID, from, until)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing expiring batches")
	}
	return batches, nil
}

func (s *service) Expired(ctx context.Context, storeID uuid.UUID) ([]models.Batch, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	batches, err := s.repo.ListExpired(ctx, storeID, dateOnly(s.now()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing expired batches")
	}
	return batches, nil
}

func (s *service) LowStock(ctx context.Context, storeID uuid.UUID) ([]models.Batch, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	batches, err := s.repo.ListLowStock(ctx, storeID, s.cfg.LowStockThreshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing low stock batches")
	}
	return batches, nil
}

func (s *service) ActiveStores(ctx context.Context) ([]models.Store, error) {
	stores, err := s.repo.ListActiveStores(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing active stores")
	}
	return stores, nil
}

func (s *service) statusOf(batch models.Batch, now time.Time) StockStatus {
	if batch.Expired(now) {
		return StockStatusExpired
	}
	window := dateOnly(now).AddDate(0, 0, DefaultExpiryWindowDays)
	if !batch.ExpiryDate.After(window) {
		return StockStatusExpiring
	}
	if batch.Quantity > 0 && batch.Quantity < s.cfg.LowStockThreshold {
		return StockStatusLow
	}
	return StockStatusOK
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
