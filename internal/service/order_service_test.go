package service

import (
	"context"
	"errors"
	"testing"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/model"
	"vendapos/internal/realtime"
	"vendapos/internal/repository"
	"vendapos/internal/repository/localstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) manualOrder(items []dto.ItemRequest, payments ...dto.TenderRequest) dto.CreateOrderRequest {
	if len(payments) == 0 {
		payments = []dto.TenderRequest{tender("pix", "")}
	}
	return dto.CreateOrderRequest{
		Channel:      "manual",
		CustomerName: "Carla",
		Items:        items,
		Payments:     payments,
	}
}

// ── CreateOrder: end-to-end settlement scenarios ──────────────────────────────

func TestCreateOrder_Scenario1_MixedModeSubtotal(t *testing.T) {
	f := newFixture(t)
	o, err := f.orders.CreateOrder(context.Background(), f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	assertMoney(t, "31.80", o.Items[0].Subtotal)
	assertMoney(t, "13.50", o.Items[1].Subtotal)
	assertMoney(t, "45.30", o.Subtotal)
	assertMoney(t, "45.30", o.TotalPrice)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Equal(t, "pix", o.PaymentMethod)
	assert.Nil(t, o.CashRegisterID, "no register open: order stays unlinked")
}

func TestCreateOrder_Scenario2_DiscountAndChange(t *testing.T) {
	f := newFixture(t)
	req := f.manualOrder(f.scenarioItems(), tender("cash", ""))
	req.Discount = &dto.DiscountRequest{Kind: "percentage", Value: dec("10")}
	req.ChangeFor = decPtr("50.00")

	o, err := f.orders.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assertMoney(t, "4.53", o.DiscountAmount)
	assertMoney(t, "40.77", o.TotalPrice)
	assertMoney(t, "9.23", o.ChangeAmount)
}

func TestCreateOrder_Scenario3_CashbackCoversTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cashback.Accrue(ctx, "11999990000", dec("100.00"), f.acai.ID))

	req := f.manualOrder(f.scenarioItems())
	req.CustomerPhone = strPtr("(11) 99999-0000")
	req.CashbackRequested = dec("45.30")

	o, err := f.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	assertMoney(t, "45.30", o.CashbackApplied)
	assertMoney(t, "0", o.TotalPrice)

	balance, err := f.cashback.GetBalance(ctx, "11999990000")
	require.NoError(t, err)
	assertMoney(t, "54.70", balance)
}

func TestCreateOrder_Scenario4_MixedTender(t *testing.T) {
	f := newFixture(t)
	o, err := f.orders.CreateOrder(context.Background(),
		f.manualOrder(f.scenarioItems(), tender("cash", "20.00"), tender("pix", "25.30")))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentMixed, o.PaymentMethod)
	require.Len(t, o.Payments, 2)
	assertMoney(t, "0", o.ChangeAmount)
}

func TestCreateOrder_MixedTenderShortByTwoCents(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.CreateOrder(context.Background(),
		f.manualOrder(f.scenarioItems(), tender("cash", "20.00"), tender("pix", "25.28")))
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		_, err := f.orders.CreateOrder(ctx, f.manualOrder(nil))
		assert.True(t, apperror.IsValidation(err))
	})
	t.Run("delivery without address", func(t *testing.T) {
		req := f.manualOrder(f.scenarioItems())
		req.Channel = "delivery"
		req.CustomerPhone = strPtr("11999990000")
		_, err := f.orders.CreateOrder(ctx, req)
		require.Error(t, err)
		var appErr *apperror.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperror.KindValidation, appErr.Kind)
		assert.Contains(t, appErr.Fields, "street")
	})
	t.Run("delivery pickup needs no address", func(t *testing.T) {
		req := f.manualOrder(f.scenarioItems())
		req.Channel = "delivery"
		req.IsPickup = true
		req.CustomerPhone = strPtr("11999990000")
		_, err := f.orders.CreateOrder(ctx, req)
		assert.NoError(t, err)
	})
	t.Run("weight sent to a unit product", func(t *testing.T) {
		_, err := f.orders.CreateOrder(ctx, f.manualOrder([]dto.ItemRequest{
			{ProductID: f.acai.ID.String(), WeightGrams: dec("100")},
		}))
		assert.True(t, apperror.IsValidation(err))
	})
	t.Run("unknown channel", func(t *testing.T) {
		req := f.manualOrder(f.scenarioItems())
		req.Channel = "ifood"
		_, err := f.orders.CreateOrder(ctx, req)
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestCreateOrder_PublishesInsert(t *testing.T) {
	f := newFixture(t)
	o, err := f.orders.CreateOrder(context.Background(), f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)

	inserts := f.pub.of(realtime.EntityOrder, realtime.EventInsert)
	require.Len(t, inserts, 1)
	assert.Equal(t, o.ID, inserts[0].ID)
}

// ── Cashback compensation ─────────────────────────────────────────────────────

type failingOrders struct{ repository.OrderRepository }

func (failingOrders) Create(context.Context, *model.Order) error {
	return errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestCreateOrder_InsertFailureRefundsCashback(t *testing.T) {
	set := localstore.NewSet(localstore.NewMemory())
	set.Orders = failingOrders{set.Orders}
	f := newFixtureWith(t, set)
	ctx := context.Background()
	require.NoError(t, f.cashback.Accrue(ctx, "11988887777", dec("20.00"), f.acai.ID))

	req := f.manualOrder(f.scenarioItems())
	req.CustomerPhone = strPtr("11988887777")
	req.CashbackRequested = dec("20.00")

	_, err := f.orders.CreateOrder(ctx, req)
	require.Error(t, err)
	assert.True(t, apperror.IsUnavailable(err))

	balance, err := f.cashback.GetBalance(ctx, "11988887777")
	require.NoError(t, err)
	assertMoney(t, "20.00", balance)

	st, err := f.cashback.Statement(ctx, "11988887777")
	require.NoError(t, err)
	kinds := make([]model.CashbackKind, 0, len(st.Transactions))
	for _, tx := range st.Transactions {
		kinds = append(kinds, tx.Kind)
	}
	assert.ElementsMatch(t, []model.CashbackKind{model.CashbackAccrue, model.CashbackRedeem, model.CashbackRefund}, kinds)
}

// ── UpdateStatus ──────────────────────────────────────────────────────────────

func TestUpdateStatus_PermissiveSkipThenTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.CreateOrder(ctx, f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)

	delivered, err := f.orders.UpdateStatus(ctx, o.ID, "delivered")
	require.NoError(t, err, "pending → delivered skips intermediate states")
	assert.Equal(t, model.OrderDelivered, delivered.Status)

	_, err = f.orders.UpdateStatus(ctx, o.ID, "confirmed")
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, apperror.CodeTerminalStatus, apperror.CodeOf(err))

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, got.Status)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, model.OrderPending, got.StatusHistory[0].From)
	assert.Equal(t, model.OrderDelivered, got.StatusHistory[0].To)
}

func TestUpdateStatus_RejectsUnknownAndSameStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.orders.CreateOrder(ctx, f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, o.ID, "lost")
	assert.True(t, apperror.IsValidation(err))
	_, err = f.orders.UpdateStatus(ctx, o.ID, "pending")
	assert.True(t, apperror.IsValidation(err))
}

func TestUpdateStatus_CashbackSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const phone = "11977776666"
	require.NoError(t, f.cashback.Accrue(ctx, phone, dec("10.00"), f.acai.ID))

	// Cancelling gives the redeemed cashback back.
	req := f.manualOrder(f.scenarioItems())
	req.CustomerPhone = strPtr(phone)
	req.CashbackRequested = dec("5.00")
	o, err := f.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	balance, _ := f.cashback.GetBalance(ctx, phone)
	assertMoney(t, "5.00", balance)

	_, err = f.orders.UpdateStatus(ctx, o.ID, "cancelled")
	require.NoError(t, err)
	balance, _ = f.cashback.GetBalance(ctx, phone)
	assertMoney(t, "10.00", balance)

	// Delivery accrues 5% of the total: 31.80 → 1.59.
	req = f.manualOrder([]dto.ItemRequest{{ProductID: f.acai.ID.String(), Quantity: 2}})
	req.CustomerPhone = strPtr(phone)
	o, err = f.orders.CreateOrder(ctx, req)
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, o.ID, "delivered")
	require.NoError(t, err)
	balance, _ = f.cashback.GetBalance(ctx, phone)
	assertMoney(t, "11.59", balance)
}

// ── Register linkage ──────────────────────────────────────────────────────────

func TestCreateOrder_AttachesOpenRegister(t *testing.T) {
	f := newFixture(t)
	rep := f.openRegister(t, "0")
	o, err := f.orders.CreateOrder(context.Background(), f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)
	require.NotNil(t, o.CashRegisterID)
	assert.Equal(t, rep.RegisterID, o.CashRegisterID.String())
}

func TestListVisible_FiltersByRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	early, err := f.orders.CreateOrder(ctx, f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)
	first := f.openRegister(t, "0") // the open hook links the early order

	got, err := f.orders.Get(ctx, early.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CashRegisterID)
	assert.Equal(t, first.RegisterID, got.CashRegisterID.String())

	during, err := f.orders.CreateOrder(ctx, f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)
	visible, err := f.orders.ListVisible(ctx, dto.OrderFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	_, err = f.caja.Close(ctx, dto.CloseRegisterRequest{})
	require.NoError(t, err)

	after, err := f.orders.CreateOrder(ctx, f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)
	visible, err = f.orders.ListVisible(ctx, dto.OrderFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, visible, 1, "orders of the closed register must not leak")
	assert.Equal(t, after.ID, visible[0].ID)
	assert.NotEqual(t, during.ID, visible[0].ID)
}

func TestReconcileOrphans_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.orders.CreateOrder(ctx, f.manualOrder(f.scenarioItems()))
		require.NoError(t, err)
	}
	reg := &model.CashRegisterSession{Station: 1, OperatorName: "Bia", Status: model.RegisterOpen}
	require.NoError(t, f.set.Caja.CreateSession(ctx, reg))

	n, err := f.orders.ReconcileOrphans(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = f.orders.ReconcileOrphans(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second run mutates nothing")

	updates := f.pub.of(realtime.EntityOrder, realtime.EventUpdate)
	assert.Len(t, updates, 3)
}

func TestLoad_ReconcilesBeforeListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orders.CreateOrder(ctx, f.manualOrder(f.scenarioItems()))
	require.NoError(t, err)
	reg := &model.CashRegisterSession{Station: 1, OperatorName: "Bia", Status: model.RegisterOpen}
	require.NoError(t, f.set.Caja.CreateSession(ctx, reg))

	orders, err := f.orders.Load(ctx, dto.OrderFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].CashRegisterID)
	assert.Equal(t, reg.ID, *orders[0].CashRegisterID)
}
