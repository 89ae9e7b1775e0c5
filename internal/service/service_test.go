package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"vendapos/internal/dto"
	"vendapos/internal/model"
	"vendapos/internal/realtime"
	"vendapos/internal/repository"
	"vendapos/internal/repository/localstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ── Shared fixture: every service over one in-memory local store ─────────────

type recorder struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (r *recorder) Publish(_ context.Context, c realtime.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func (r *recorder) of(entity realtime.EntityType, kind realtime.EventKind) []realtime.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.Change
	for _, c := range r.changes {
		if c.Entity == entity && c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	set      repository.Set
	pub      *recorder
	products ProductService
	cashback CashbackService
	caja     CajaService
	orders   OrderService
	tables   TableService

	acai *model.Product // unit, 15.90
	peso *model.Product // weight, 0.045 per gram
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, localstore.NewSet(localstore.NewMemory()))
}

func newFixtureWith(t *testing.T, set repository.Set) *fixture {
	t.Helper()
	f := &fixture{set: set, pub: &recorder{}}
	guard := NewGuard(time.Second)
	f.products = NewProductService(set.Products, guard)
	f.cashback = NewCashbackService(set.Cashback, guard)
	f.caja = NewCajaService(set.Caja, set.Orders, set.Tables, guard, f.pub, 1)
	f.orders = NewOrderService(set.Orders, f.products, f.cashback, f.caja, guard, f.pub, nil, decimal.NewFromInt(5))
	f.tables = NewTableService(set.Tables, f.products, f.cashback, f.caja, guard, f.pub, nil)
	f.caja.OnOpen(func(ctx context.Context, reg *model.CashRegisterSession) {
		_, _ = f.orders.ReconcileOrphans(ctx, reg.ID)
	})

	ctx := context.Background()
	var err error
	f.acai, err = f.products.Create(ctx, dto.CreateProductRequest{
		Name: "Açaí 300ml", PricingMode: "unit", UnitPrice: dec("15.90"),
	})
	require.NoError(t, err)
	f.peso, err = f.products.Create(ctx, dto.CreateProductRequest{
		Name: "Açaí no peso", PricingMode: "weight", PricePerGram: dec("0.045"),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) openRegister(t *testing.T, opening string) *dto.RegisterReportResponse {
	t.Helper()
	rep, err := f.caja.Open(context.Background(), dto.OpenRegisterRequest{OperatorName: "Bia", OpeningAmount: dec(opening)})
	require.NoError(t, err)
	return rep
}

// scenarioItems is the reference cart: 2 × 15.90 plus 300g at 0.045/g = 45.30.
func (f *fixture) scenarioItems() []dto.ItemRequest {
	return []dto.ItemRequest{
		{ProductID: f.acai.ID.String(), Quantity: 2},
		{ProductID: f.peso.ID.String(), WeightGrams: dec("300")},
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func tender(method string, amount string) dto.TenderRequest {
	if amount == "" {
		return dto.TenderRequest{Method: method}
	}
	return dto.TenderRequest{Method: method, Amount: decPtr(amount)}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg ...interface{}) {
	t.Helper()
	require.Truef(t, got.Equal(dec(want)), "want %s, got %s %v", want, got.StringFixed(2), msg)
}
