package service

import (
	"context"
	"testing"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_ExactlyOnePricingMode(t *testing.T) {
	f := newFixture(t)
	_, err := f.products.Create(context.Background(), dto.CreateProductRequest{
		Name: "Combo", PricingMode: "unit", UnitPrice: dec("10"), PricePerGram: dec("0.01"),
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestProduct_InactiveCannotBeSold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	off := false
	_, err := f.products.Update(ctx, f.acai.ID, dto.UpdateProductRequest{Active: &off})
	require.NoError(t, err)

	_, err = f.products.Resolve(ctx, dto.ItemRequest{ProductID: f.acai.ID.String(), Quantity: 1})
	assert.True(t, apperror.IsValidation(err))

	active, err := f.products.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestResolve_ComplementsPricedPerUnit(t *testing.T) {
	f := newFixture(t)
	it, err := f.products.Resolve(context.Background(), dto.ItemRequest{
		ProductID:   f.acai.ID.String(),
		Quantity:    2,
		Discount:    dec("1.00"),
		Complements: []dto.ComplementRequest{{Name: "Granola", Price: dec("2.00")}},
	})
	require.NoError(t, err)
	assertMoney(t, "34.80", it.Subtotal) // 2 × (15.90 + 2.00) − 1.00
}

func TestCashback_Statement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	balance, err := f.cashback.GetBalance(ctx, "11 91234-5678")
	require.NoError(t, err)
	assertMoney(t, "0", balance)

	require.NoError(t, f.cashback.Accrue(ctx, "11 91234-5678", dec("3.50"), f.acai.ID))
	err = f.cashback.Redeem(ctx, "11912345678", dec("4.00"), f.acai.ID)
	assert.True(t, apperror.IsValidation(err), "redeem above the balance")

	st, err := f.cashback.Statement(ctx, "(11) 91234-5678")
	require.NoError(t, err)
	assert.Equal(t, "11912345678", st.Phone)
	assertMoney(t, "3.50", st.Balance)
	assert.Len(t, st.Transactions, 1)

	_, err = f.cashback.Statement(ctx, "---")
	assert.True(t, apperror.IsValidation(err))
}

func TestQuote_WorksWithoutPersistence(t *testing.T) {
	b, err := Quote(dto.QuoteRequest{
		Lines: []dto.QuoteLine{
			{PricingMode: "unit", Quantity: 2, Price: dec("15.90")},
			{PricingMode: "weight", WeightGrams: dec("300"), Price: dec("0.045")},
		},
		Discount:  &dto.DiscountRequest{Kind: "percentage", Value: dec("10")},
		Payments:  []dto.TenderRequest{tender("cash", "")},
		ChangeFor: decPtr("50"),
	})
	require.NoError(t, err)
	assertMoney(t, "45.30", b.Subtotal)
	assertMoney(t, "40.77", b.Total)
	assertMoney(t, "9.23", b.Change)
}
