package adjustments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
)

var testClock = time.Date(2026, 5, 20, 14, 0, 0, 0, time.UTC)

type fixture struct {
	conn  *gorm.DB
	svc   Service
	batch models.Batch
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:adjustments_" + uuid.NewString() + "?mode=memory&cache=shared"
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
	svc, err := NewService(runner, NewRepository(conn), batchRepo, batchSvc, cfg, nil)
	if err != nil {
		t.Fatalf("adjustment service: %v", err)
	}
	svc.(*service).now = func() time.Time { return testClock }

	batch := models.Batch{
		ID:          uuid.New(),
		ProductID:   uuid.New(),
		StoreID:     uuid.New(),
		BatchNumber: "BN-ADJ",
		ExpiryDate:  testClock.AddDate(1, 0, 0),
		Quantity:    100,
		UnitCost:    decimal.NewFromInt(75),
		ReceivedAt:  testClock.AddDate(0, -2, 0),
		Version:     1,
	}
	if err := conn.Create(&batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return &fixture{conn: conn, svc: svc, batch: batch}
}

func (f *fixture) batchState(t *testing.T) models.Batch {
	t.Helper()
	var batch models.Batch
	if err := f.conn.First(&batch, "id = ?", f.batch.ID).Error; err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	return batch
}

func TestAdjustBelowThresholdAppliesImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	adjustment, err := f.svc.Adjust(ctx, Input{
		BatchID:     f.batch.ID,
		Delta:       -30,
		Reason:      "damaged blister packs",
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if adjustment.Status != enums.AdjustmentStatusApproved {
		t.Fatalf("expected auto-approval, got %s", adjustment.Status)
	}
	if adjustment.PreviousQuantity == nil || *adjustment.PreviousQuantity != 100 {
		t.Fatalf("unexpected previous quantity: %+v", adjustment.PreviousQuantity)
	}
	if adjustment.NewQuantity == nil || *adjustment.NewQuantity != 70 {
		t.Fatalf("unexpected new quantity: %+v", adjustment.NewQuantity)
	}
	if adjustment.AppliedAt == nil {
		t.Fatalf("expected applied timestamp")
	}

	if got := f.batchState(t); got.Quantity != 70 {
		t.Fatalf("expected batch at 70, got %d", got.Quantity)
	}

	var rec models.AuditRecord
	if err := f.conn.First(&rec, "reference_id = ?", adjustment.ID).Error; err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if rec.ChangeKind != enums.AuditChangeKindAdjustment || rec.NewQuantity != 70 {
		t.Fatalf("unexpected audit record: %+v", rec)
	}
}

func TestAdjustAboveThresholdStaysPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	adjustment, err := f.svc.Adjust(ctx, Input{
		BatchID:     f.batch.ID,
		Delta:       -60,
		Reason:      "stocktake variance",
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if adjustment.Status != enums.AdjustmentStatusPending {
		t.Fatalf("expected pending, got %s", adjustment.Status)
	}
	if adjustment.AppliedAt != nil || adjustment.PreviousQuantity != nil {
		t.Fatalf("pending adjustment must not capture quantities: %+v", adjustment)
	}

	if got := f.batchState(t); got.Quantity != 100 {
		t.Fatalf("pending adjustment must not move stock, got %d", got.Quantity)
	}

	var count int64
	if err := f.conn.Model(&models.AuditRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	if count != 0 {
		t.Fatalf("pending adjustment must not audit yet, got %d records", count)
	}
}

func TestAdjustRequireImmediateFailsAboveThreshold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Adjust(context.Background(), Input{
		BatchID:          f.batch.ID,
		Delta:            -60,
		Reason:           "stocktake variance",
		ActorUserID:      uuid.New(),
		RequireImmediate: true,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeApprovalRequired) {
		t.Fatalf("expected approval required, got %v", err)
	}

	var count int64
	if err := f.conn.Model(&models.Adjustment{}).Count(&count).Error; err != nil {
		t.Fatalf("count adjustments: %v", err)
	}
	if count != 0 {
		t.Fatalf("nothing should be recorded, got %d rows", count)
	}
}

func TestApproveAppliesPendingAdjustment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	creator := uuid.New()
	approver := uuid.New()

	adjustment, err := f.svc.Adjust(ctx, Input{
		BatchID:     f.batch.ID,
		Delta:       -60,
		Reason:      "stocktake variance",
		ActorUserID: creator,
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	approved, err := f.svc.Approve(ctx, adjustment.ID, approver)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != enums.AdjustmentStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.ApprovedByUserID == nil || *approved.ApprovedByUserID != approver {
		t.Fatalf("unexpected approver: %+v", approved.ApprovedByUserID)
	}
	if got := f.batchState(t); got.Quantity != 40 {
		t.Fatalf("expected batch at 40 after approval, got %d", got.Quantity)
	}

	_, err = f.svc.Approve(ctx, adjustment.ID, approver)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("double approval must fail, got %v", err)
	}
}

func TestApproveRejectsSelfApproval(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	creator := uuid.New()

	adjustment, err := f.svc.Adjust(ctx, Input{
		BatchID:     f.batch.ID,
		Delta:       70,
		Reason:      "found misplaced carton",
		ActorUserID: creator,
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	_, err = f.svc.Approve(ctx, adjustment.ID, creator)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden on self-approval, got %v", err)
	}
}

func TestRejectLeavesLedgerUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	adjustment, err := f.svc.Adjust(ctx, Input{
		BatchID:     f.batch.ID,
		Delta:       -80,
		Reason:      "suspected theft",
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	rejected, err := f.svc.Reject(ctx, adjustment.ID, uuid.New())
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != enums.AdjustmentStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if got := f.batchState(t); got.Quantity != 100 {
		t.Fatalf("rejection must not move stock, got %d", got.Quantity)
	}

	_, err = f.svc.Approve(ctx, adjustment.ID, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("approving a rejected adjustment must fail, got %v", err)
	}
}

func TestWriteoffZeroesBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	// Quantity 100 exceeds the threshold of 50, so the write-off queues.
	adjustment, err := f.svc.Writeoff(ctx, f.batch.ID, "expired on shelf", uuid.New())
	if err != nil {
		t.Fatalf("writeoff: %v", err)
	}
	if adjustment.Status != enums.AdjustmentStatusPending || adjustment.Delta != -100 {
		t.Fatalf("unexpected writeoff: %+v", adjustment)
	}

	approved, err := f.svc.Approve(ctx, adjustment.ID, uuid.New())
	if err != nil {
		t.Fatalf("approve writeoff: %v", err)
	}
	if got := f.batchState(t); got.Quantity != 0 {
		t.Fatalf("expected empty batch, got %d", got.Quantity)
	}
	if approved.NewQuantity == nil || *approved.NewQuantity != 0 {
		t.Fatalf("unexpected new quantity: %+v", approved.NewQuantity)
	}
}

func TestApprovePreservesAuditKind(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	adjustment, err := f.svc.Writeoff(ctx, f.batch.ID, "flood damage", uuid.New())
	if err != nil {
		t.Fatalf("writeoff: %v", err)
	}
	if adjustment.Status != enums.AdjustmentStatusPending {
		t.Fatalf("expected pending writeoff, got %s", adjustment.Status)
	}
	if adjustment.Kind != enums.AuditChangeKindWriteoff {
		t.Fatalf("expected writeoff kind on the row, got %s", adjustment.Kind)
	}

	if _, err := f.svc.Approve(ctx, adjustment.ID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	var rec models.AuditRecord
	if err := f.conn.First(&rec, "reference_id = ?", adjustment.ID).Error; err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if rec.ChangeKind != enums.AuditChangeKindWriteoff {
		t.Fatalf("expected writeoff audit kind after approval, got %s", rec.ChangeKind)
	}
}

func TestAdjustCannotDriveQuantityNegative(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Adjust(context.Background(), Input{
		BatchID:     f.batch.ID,
		Delta:       -45,
		Reason:      "correction",
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	_, err = f.svc.Adjust(context.Background(), Input{
		BatchID:     f.batch.ID,
		Delta:       -50,
		Reason:      "correction",
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	_, err = f.svc.Adjust(context.Background(), Input{
		BatchID:     f.batch.ID,
		Delta:       -10,
		Reason:      "correction",
		ActorUserID: uuid.New(),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}
