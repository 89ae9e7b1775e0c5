package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vendapos/internal/config"
	"vendapos/internal/dto"
	"vendapos/internal/handler"
	"vendapos/internal/model"
	"vendapos/internal/realtime"
	"vendapos/internal/repository/localstore"
	"vendapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

type testEnv struct {
	engine *gin.Engine
	bus    *realtime.Bus
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	set := localstore.NewSet(localstore.NewMemory())
	bus := realtime.NewBus(nil, 0)
	pub := realtime.NewBusPublisher(bus)
	guard := service.NewGuard(time.Second)

	products := service.NewProductService(set.Products, guard)
	cashback := service.NewCashbackService(set.Cashback, guard)
	caja := service.NewCajaService(set.Caja, set.Orders, set.Tables, guard, pub, 1)
	orders := service.NewOrderService(set.Orders, products, cashback, caja, guard, pub, nil, decimal.NewFromInt(5))
	tables := service.NewTableService(set.Tables, products, cashback, caja, guard, pub, nil)
	caja.OnOpen(func(ctx context.Context, reg *model.CashRegisterSession) {
		_, _ = orders.ReconcileOrphans(ctx, reg.ID)
	})

	cfg := &config.Config{Env: "test", Station: 1, StorageBackend: config.BackendLocal}
	engine := New(ctx, cfg, Deps{
		Products: products,
		Orders:   orders,
		Tables:   tables,
		Caja:     caja,
		Cashback: cashback,
		Bus:      bus,
		Health:   handler.HealthDeps{Backend: cfg.StorageBackend, Guard: guard},
	})
	return &testEnv{engine: engine, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func (e *testEnv) createProduct(t *testing.T, req dto.CreateProductRequest) model.Product {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/products", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p model.Product
	decodeJSON(t, w, &p)
	return p
}

func (e *testEnv) openRegister(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/caja/abrir", map[string]any{
		"operator_name":  "Ana",
		"opening_amount": "100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got.StringFixed(2))
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestHealth_LocalBackend(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	decodeJSON(t, w, &body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "local", body["backend"])
	assert.Equal(t, "disabled", body["db"])
	assert.Equal(t, "closed", body["breaker"])
	assert.EqualValues(t, 0, body["receipts_dlq"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestReceiptDLQ_WithoutRedis(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/receipts/dlq", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/v1/receipts/dlq/requeue", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	// the limit is checked before the queue is touched
	w = env.do(t, http.MethodPost, "/v1/receipts/dlq/requeue?limit=0", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestRequestID_Echoed(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestQuote_NeedsNoCatalog(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/settlement/quote", map[string]any{
		"lines": []map[string]any{
			{"pricing_mode": "unit", "quantity": 2, "price": "15.90"},
			{"pricing_mode": "weight", "weight_grams": "300", "price": "0.045"},
		},
		"payments": []map[string]any{{"method": "cash", "amount": "50"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var b struct {
		Subtotal decimal.Decimal `json:"subtotal"`
		Total    decimal.Decimal `json:"total"`
		Change   decimal.Decimal `json:"change"`
	}
	decodeJSON(t, w, &b)
	assertMoney(t, "45.30", b.Subtotal)
	assertMoney(t, "45.30", b.Total)
	assertMoney(t, "4.70", b.Change)
}

func TestValidationAndErrorMapping(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("malformed json is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing items is 422 with fields", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/orders", map[string]any{
			"channel":  "delivery",
			"payments": []map[string]any{{"method": "pix"}},
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var body map[string]any
		decodeJSON(t, w, &body)
		assert.Contains(t, body["fields"], "Items")
	})

	t.Run("bad uuid is 400", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/orders/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown order is 404", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/orders/6f1c1e8e-8a36-4c55-9b6f-0f5d7a1c2b3d", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("reconcile without register is 409", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/v1/orders/reconcile", nil)
		require.Equal(t, http.StatusConflict, w.Code)
		var body map[string]any
		decodeJSON(t, w, &body)
		assert.Equal(t, "register_closed", body["code"])
	})

	t.Run("no open register is 404", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/v1/caja/atual", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestOrderLifecycle_OverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	acai := env.createProduct(t, dto.CreateProductRequest{Name: "Açaí 300ml", PricingMode: "unit", UnitPrice: decimal.RequireFromString("15.90")})

	w := env.do(t, http.MethodPost, "/v1/orders", map[string]any{
		"channel":       "manual",
		"customer_name": "João",
		"items":         []map[string]any{{"product_id": acai.ID.String(), "quantity": 1}},
		"payments":      []map[string]any{{"method": "pix"}},
		"delivery_fee":  "5",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var o model.Order
	decodeJSON(t, w, &o)
	assert.Equal(t, model.OrderPending, o.Status)
	assertMoney(t, "20.90", o.TotalPrice)
	assert.Nil(t, o.CashRegisterID)

	env.openRegister(t)

	w = env.do(t, http.MethodGet, "/v1/orders/"+o.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeJSON(t, w, &o)
	assert.NotNil(t, o.CashRegisterID, "opening a register links orphan orders")

	w = env.do(t, http.MethodPatch, "/v1/orders/"+o.ID.String()+"/status", map[string]any{"status": "delivered"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPatch, "/v1/orders/"+o.ID.String()+"/status", map[string]any{"status": "pending"})
	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]any
	decodeJSON(t, w, &body)
	assert.Equal(t, "terminal_status", body["code"])

	w = env.do(t, http.MethodGet, "/v1/orders?status=delivered", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Order
	decodeJSON(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, o.ID, list[0].ID)
}

func TestTableLifecycle_OverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	acai := env.createProduct(t, dto.CreateProductRequest{Name: "Açaí 300ml", PricingMode: "unit", UnitPrice: decimal.RequireFromString("15.90")})
	peso := env.createProduct(t, dto.CreateProductRequest{Name: "Açaí no peso", PricingMode: "weight", PricePerGram: decimal.RequireFromString("0.045")})
	env.openRegister(t)

	w := env.do(t, http.MethodPost, "/v1/tables", map[string]any{"number": 7})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var table model.Table
	decodeJSON(t, w, &table)
	base := "/v1/tables/" + table.ID.String()

	w = env.do(t, http.MethodPost, base+"/open", map[string]any{"customer_name": "Mesa da Ana"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, base+"/open", map[string]any{"customer_name": "Outra"})
	assert.Equal(t, http.StatusConflict, w.Code, "a seated table cannot be opened again")

	w = env.do(t, http.MethodPost, base+"/items", map[string]any{"product_id": acai.ID.String(), "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, base+"/items", map[string]any{"product_id": peso.ID.String(), "weight_grams": "300"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sess model.TableSession
	decodeJSON(t, w, &sess)
	require.Len(t, sess.Items, 2)
	assertMoney(t, "45.30", sess.TotalAmount)

	w = env.do(t, http.MethodPost, base+"/bill", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, base+"/close", map[string]any{
		"payments": []map[string]any{{"method": "cash", "amount": "50"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeJSON(t, w, &sess)
	assert.Equal(t, model.SaleClosed, sess.Status)
	assertMoney(t, "4.70", sess.ChangeAmount)

	w = env.do(t, http.MethodGet, "/v1/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tables []model.Table
	decodeJSON(t, w, &tables)
	require.Len(t, tables, 1)
	assert.Equal(t, model.TableLimpeza, tables[0].Status)

	w = env.do(t, http.MethodPost, base+"/free", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeJSON(t, w, &table)
	assert.Equal(t, model.TableLivre, table.Status)

	w = env.do(t, http.MethodPost, "/v1/caja/fechar", map[string]any{
		"declared": map[string]any{"cash": "145.30"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var closed dto.CloseRegisterResponse
	decodeJSON(t, w, &closed)
	assertMoney(t, "145.30", closed.Expected.Cash)
	assert.Equal(t, "normal", closed.Deviation.Class)
}

func TestLiveViews_FollowPublishedChanges(t *testing.T) {
	env := setupTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.bus.Run(ctx)

	w := env.do(t, http.MethodPost, "/v1/tables", map[string]any{"number": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/v1/live/tables", nil)
		var tables []model.Table
		if json.Unmarshal(w.Body.Bytes(), &tables) != nil {
			return false
		}
		return len(tables) == 1 && tables[0].Number == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCashbackStatement_UnknownPhone(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/v1/cashback/%s", "11999990000"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st dto.CashbackStatementResponse
	decodeJSON(t, w, &st)
	assert.True(t, st.Balance.IsZero())
}
