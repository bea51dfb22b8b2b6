package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/internal/adjustments"
	"github.com/obinnaeze/pharmapos-backend/internal/allocation"
	"github.com/obinnaeze/pharmapos-backend/internal/audit"
	"github.com/obinnaeze/pharmapos-backend/internal/batches"
	"github.com/obinnaeze/pharmapos-backend/internal/reconciliation"
	"github.com/obinnaeze/pharmapos-backend/internal/reservations"
	"github.com/obinnaeze/pharmapos-backend/internal/transfers"
	pkgAuth "github.com/obinnaeze/pharmapos-backend/pkg/auth"
	"github.com/obinnaeze/pharmapos-backend/pkg/config"
	"github.com/obinnaeze/pharmapos-backend/pkg/db"
	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	"github.com/obinnaeze/pharmapos-backend/pkg/types"
)

type routerFixture struct {
	conn      *gorm.DB
	handler   http.Handler
	cfg       *config.Config
	productID uuid.UUID
	storeID   uuid.UUID
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Store{},
		&models.Product{},
		&models.Batch{},
		&models.AuditRecord{},
		&models.Reservation{},
		&models.Adjustment{},
		&models.Transfer{},
		&models.ReconciliationRecord{},
		&models.ReconciliationItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runner := db.FromGorm(conn)
	ledgerCfg := config.LedgerConfig{
		ApprovalThreshold: 50,
		DeltaRetries:      3,
		ReservationTTL:    30 * time.Minute,
		LowStockThreshold: 10,
	}

	batchRepo := batches.NewRepository(conn)
	auditRepo := audit.NewRepository(conn)
	batchSvc, err := batches.NewService(runner, batchRepo, auditRepo, ledgerCfg, nil)
	if err != nil {
		t.Fatalf("batch service: %v", err)
	}
	allocSvc, err := allocation.NewService(runner, batchRepo, batchSvc, nil)
	if err != nil {
		t.Fatalf("allocation service: %v", err)
	}
	resSvc, err := reservations.NewService(runner, reservations.NewRepository(conn), batchRepo, batchSvc, auditRepo, ledgerCfg, nil)
	if err != nil {
		t.Fatalf("reservation service: %v", err)
	}
	adjSvc, err := adjustments.NewService(runner, adjustments.NewRepository(conn), batchRepo, batchSvc, ledgerCfg, nil)
	if err != nil {
		t.Fatalf("adjustment service: %v", err)
	}
	trfSvc, err := transfers.NewService(runner, transfers.NewRepository(conn), batchRepo, batchSvc, nil)
	if err != nil {
		t.Fatalf("transfer service: %v", err)
	}
	recSvc, err := reconciliation.NewService(runner, reconciliation.NewRepository(conn), batchRepo, adjSvc, nil)
	if err != nil {
		t.Fatalf("reconciliation service: %v", err)
	}
	auditSvc, err := audit.NewService(auditRepo)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}

	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "pharmapos-test",
			ExpirationMinutes: 30,
		},
	}

	handler := NewRouter(cfg, nil, nil, nil, Services{
		Batches:        batchSvc,
		Allocation:     allocSvc,
		Reservations:   resSvc,
		Adjustments:    adjSvc,
		Transfers:      trfSvc,
		Reconciliation: recSvc,
		Audit:          auditSvc,
	})

	product := models.Product{
		ID:           uuid.New(),
		Name:         "Amoxicillin 250mg",
		SKU:          "AMX-" + uuid.NewString()[:8],
		NafdacNumber: "A4-9876",
		CostPrice:    decimal.NewFromInt(300),
		SellingPrice: decimal.NewFromInt(400),
		IsActive:     true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	store := models.Store{
		ID:       uuid.New(),
		Name:     "store-" + uuid.NewString()[:8],
		IsActive: true,
	}
	if err := conn.Create(&store).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}

	return &routerFixture{
		conn:      conn,
		handler:   handler,
		cfg:       cfg,
		productID: product.ID,
		storeID:   store.ID,
	}
}

func (f *routerFixture) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	signed, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return signed
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func TestHealthLiveNeedsNoAuth(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	w := f.do(t, http.MethodGet, "/health/live", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-PharmaPOS-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestAPIRoutesRejectMissingToken(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/adjustments/pending", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestReceiveThenAllocateFlow(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	token := f.token(t, enums.UserRoleManager)
	expiry := time.Now().AddDate(0, 6, 0).Format("2006-01-02")

	w := f.do(t, http.MethodPost, "/api/v1/batches", token, map[string]any{
		"product_id":   f.productID.String(),
		"store_id":     f.storeID.String(),
		"batch_number": "BN-ROUTER-1",
		"expiry_date":  expiry,
		"quantity":     40,
		"unit_cost":    "300.00",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("receive: expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/v1/allocations", token, map[string]any{
		"product_id": f.productID.String(),
		"store_id":   f.storeID.String(),
		"quantity":   15,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("allocate: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode allocation: %v", err)
	}
	result := envelope.Data.(map[string]any)
	if result["allocated"].(float64) != 15 {
		t.Fatalf("expected 15 allocated, got %v", result["allocated"])
	}
	if result["partial"].(bool) {
		t.Fatalf("expected full fill, got partial: %v", result)
	}

	var batch models.Batch
	if err := f.conn.Where("batch_number = ?", "BN-ROUTER-1").First(&batch).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if batch.Quantity != 25 {
		t.Fatalf("expected 25 left on hand, got %d", batch.Quantity)
	}

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/batches/%s/audit?limit=10", batch.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var auditEnvelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&auditEnvelope); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	records := auditEnvelope.Data.(map[string]any)["records"].([]any)
	if len(records) != 2 {
		t.Fatalf("expected receipt + allocation records, got %d", len(records))
	}
}

func TestInsufficientStockSurfacesTypedCode(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	token := f.token(t, enums.UserRoleCashier)

	w := f.do(t, http.MethodPost, "/api/v1/allocations", token, map[string]any{
		"product_id": f.productID.String(),
		"store_id":   f.storeID.String(),
		"quantity":   5,
	})
	// No batches on hand: the engine reports the shortage in the result
	// instead of failing the request.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	result := envelope.Data.(map[string]any)
	if result["shortage"].(float64) != 5 || !result["partial"].(bool) {
		t.Fatalf("expected full shortage, got %v", result)
	}
}

func TestApprovalRoutesRequireSupervisorRole(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/adjustments/pending", f.token(t, enums.UserRoleCashier), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/adjustments/pending", f.token(t, enums.UserRoleManager), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestValidationErrorsReturn400(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	token := f.token(t, enums.UserRoleManager)

	w := f.do(t, http.MethodPost, "/api/v1/batches", token, map[string]any{
		"product_id": "not-a-uuid",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
}
