package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/adjustments"
	"github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
)

var testClock = time.Date(2026, 7, 8, 16, 0, 0, 0, time.UTC)

type fixture struct {
	conn    *gorm.DB
	svc     Service
	storeID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:reconciliation_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Store{},
		&models.Product{},
		&models.Batch{},
		&models.Adjustment{},
		&models.AuditRecord{},
		&models.ReconciliationRecord{},
		&models.ReconciliationItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runner := db.FromGorm(conn)
	batchRepo := batches.NewRepository(conn)
	cfg := config.LedgerConfig{ApprovalThreshold: 50, DeltaRetries: 3, LowStockThreshold: 10}
	batchSvc, err := batches.NewService(runner, batchRepo, audit.NewRepository(conn), cfg, nil)
	if err != nil {
		t.Fatalf("batch service: %v", err)
	}
	adjustSvc, err := adjustments.NewService(runner, adjustments.NewRepository(conn), batchRepo, batchSvc, cfg, nil)
	if err != nil {
		t.Fatalf("adjustment service: %v", err)
	}
	svc, err := NewService(runner, NewRepository(conn), batchRepo, adjustSvc, nil)
	if err != nil {
		t.Fatalf("reconciliation service: %v", err)
	}
	svc.(*service).now = func() time.Time { return testClock }

	store := models.Store{ID: uuid.New(), Name: "store-" + uuid.NewString()[:8], IsActive: true}
	if err := conn.Create(&store).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return &fixture{conn: conn, svc: svc, storeID: store.ID}
}

func (f *fixture) seedBatch(t *testing.T, number string, qty int) models.Batch {
	t.Helper()
	batch := models.Batch{
		ID:          uuid.New(),
		ProductID:   uuid.New(),
		StoreID:     f.storeID,
		BatchNumber: number,
		ExpiryDate:  testClock.AddDate(1, 0, 0),
		Quantity:    qty,
		UnitCost:    decimal.NewFromInt(60),
		ReceivedAt:  testClock.AddDate(0, -1, 0),
		Version:     1,
	}
	if err := f.conn.Create(&batch).Error; err != nil {
		t.Fatalf("seed batch %s: %v", number, err)
	}
	return batch
}

func TestReconcileAdjustsVariances(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	counted := f.seedBatch(t, "BN-C1", 100)
	exact := f.seedBatch(t, "BN-C2", 40)

	record, err := f.svc.Reconcile(ctx, Input{
		StoreID:     f.storeID,
		ActorUserID: uuid.New(),
		Notes:       "monthly count",
		Counts: []Count{
			{BatchID: counted.ID, CountedQuantity: 80},
			{BatchID: exact.ID, CountedQuantity: 40},
		},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if record.TotalVariance != -20 {
		t.Fatalf("expected total variance -20, got %d", record.TotalVariance)
	}
	if len(record.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(record.Items))
	}

	first := record.Items[0]
	if first.Variance != -20 || first.SystemQuantity != 100 || first.AdjustmentID == nil {
		t.Fatalf("unexpected first item: %+v", first)
	}
	second := record.Items[1]
	if second.Variance != 0 || second.AdjustmentID != nil {
		t.Fatalf("zero variance must not create an adjustment: %+v", second)
	}

	var batch models.Batch
	if err := f.conn.First(&batch, "id = ?", counted.ID).Error; err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	if batch.Quantity != 80 {
		t.Fatalf("expected batch adjusted to 80, got %d", batch.Quantity)
	}

	var rec models.AuditRecord
	if err := f.conn.First(&rec, "reference_id = ?", *first.AdjustmentID).Error; err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if rec.ChangeKind != enums.AuditChangeKindReconciliation || rec.NewQuantity != 80 {
		t.Fatalf("unexpected audit record: %+v", rec)
	}
}

func TestReconcileBadLineDoesNotAbortSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	good := f.seedBatch(t, "BN-G", 30)

	record, err := f.svc.Reconcile(ctx, Input{
		StoreID:     f.storeID,
		ActorUserID: uuid.New(),
		Counts: []Count{
			{BatchID: uuid.New(), CountedQuantity: 10}, // unknown batch
			{BatchID: good.ID, CountedQuantity: 25},
		},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(record.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(record.Items))
	}
	if record.Items[0].Error == "" {
		t.Fatalf("expected error recorded on bad line")
	}
	if record.Items[1].Error != "" || record.Items[1].AdjustmentID == nil {
		t.Fatalf("good line must still adjust: %+v", record.Items[1])
	}
	if record.TotalVariance != -5 {
		t.Fatalf("bad line must not count toward variance, got %d", record.TotalVariance)
	}

	var batch models.Batch
	if err := f.conn.First(&batch, "id = ?", good.ID).Error; err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	if batch.Quantity != 25 {
		t.Fatalf("expected batch at 25, got %d", batch.Quantity)
	}
}

func TestReconcileLargeVarianceQueuesApproval(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	batch := f.seedBatch(t, "BN-BIG", 200)

	record, err := f.svc.Reconcile(ctx, Input{
		StoreID:     f.storeID,
		ActorUserID: uuid.New(),
		Counts:      []Count{{BatchID: batch.ID, CountedQuantity: 100}},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	item := record.Items[0]
	if item.AdjustmentID == nil {
		t.Fatalf("expected adjustment reference: %+v", item)
	}

	var adjustment models.Adjustment
	if err := f.conn.First(&adjustment, "id = ?", *item.AdjustmentID).Error; err != nil {
		t.Fatalf("load adjustment: %v", err)
	}
	if adjustment.Status != enums.AdjustmentStatusPending {
		t.Fatalf("variance of 100 must gate on approval, got %s", adjustment.Status)
	}

	// Stock untouched until a second user approves.
	var reloaded models.Batch
	if err := f.conn.First(&reloaded, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	if reloaded.Quantity != 200 {
		t.Fatalf("pending variance must not move stock, got %d", reloaded.Quantity)
	}
}

func TestReconcileRejectsForeignStoreBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	otherStore := models.Store{ID: uuid.New(), Name: "other-" + uuid.NewString()[:8], IsActive: true}
	if err := f.conn.Create(&otherStore).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}
	foreign := models.Batch{
		ID:          uuid.New(),
		ProductID:   uuid.New(),
		StoreID:     otherStore.ID,
		BatchNumber: "BN-F",
		ExpiryDate:  testClock.AddDate(1, 0, 0),
		Quantity:    10,
		UnitCost:    decimal.NewFromInt(60),
		ReceivedAt:  testClock,
		Version:     1,
	}
	if err := f.conn.Create(&foreign).Error; err != nil {
		t.Fatalf("seed foreign batch: %v", err)
	}

	record, err := f.svc.Reconcile(ctx, Input{
		StoreID:     f.storeID,
		ActorUserID: uuid.New(),
		Counts:      []Count{{BatchID: foreign.ID, CountedQuantity: 5}},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if record.Items[0].Error == "" {
		t.Fatalf("expected error for foreign-store batch")
	}

	var reloaded models.Batch
	if err := f.conn.First(&reloaded, "id = ?", foreign.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Quantity != 10 {
		t.Fatalf("foreign batch must be untouched, got %d", reloaded.Quantity)
	}
}
