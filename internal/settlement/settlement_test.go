package settlement

import (
	"math/rand"
	"testing"

	"vendapos/internal/apperror"
	"vendapos/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func unitLine(qty int, price, discount string) Line {
	return Line{Mode: model.PricingUnit, Quantity: qty, Price: d(price), Discount: d(discount)}
}

func weightLine(grams, perGram, discount string) Line {
	return Line{Mode: model.PricingWeight, WeightGrams: d(grams), Price: d(perGram), Discount: d(discount)}
}

// scenarioCart is one unit item (2 × 15.90) and one weight item (300 g × 0.045).
func scenarioCart() []Line {
	return []Line{unitLine(2, "15.90", "0"), weightLine("300", "0.045", "0")}
}

// ── Line subtotal ─────────────────────────────────────────────────────────────

func TestLineSubtotal_UnitPriced(t *testing.T) {
	cases := []struct {
		qty      int
		price    string
		discount string
		want     string
	}{
		{2, "15.90", "0", "31.80"},
		{3, "10.00", "5.00", "25.00"},
		{1, "4.99", "10.00", "0"},
		{7, "0.333", "0", "2.33"},
	}
	for _, tc := range cases {
		got, err := LineSubtotal(unitLine(tc.qty, tc.price, tc.discount))
		require.NoError(t, err)
		assert.True(t, d(tc.want).Equal(got), "qty=%d price=%s: got %s", tc.qty, tc.price, got)
	}
}

func TestLineSubtotal_WeightPriced(t *testing.T) {
	got, err := LineSubtotal(weightLine("300", "0.045", "0"))
	require.NoError(t, err)
	assert.Equal(t, "13.50", got.StringFixed(2))

	got, err = LineSubtotal(weightLine("250", "0.05", "20"))
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "discount above the line value clamps to zero")
}

func TestLineSubtotal_ComplementsAddPerUnit(t *testing.T) {
	l := unitLine(2, "10.00", "0")
	l.Complements = []decimal.Decimal{d("1.50"), d("0.50")}
	got, err := LineSubtotal(l)
	require.NoError(t, err)
	assert.Equal(t, "24.00", got.StringFixed(2))

	w := weightLine("500", "0.04", "0")
	w.Complements = []decimal.Decimal{d("3.00")}
	got, err = LineSubtotal(w)
	require.NoError(t, err)
	assert.Equal(t, "23.00", got.StringFixed(2))
}

func TestLineSubtotal_ModeMismatchIsValidation(t *testing.T) {
	l := unitLine(1, "10", "0")
	l.WeightGrams = d("100")
	_, err := LineSubtotal(l)
	assert.True(t, apperror.IsValidation(err))

	w := weightLine("100", "0.05", "0")
	w.Quantity = 2
	_, err = LineSubtotal(w)
	assert.True(t, apperror.IsValidation(err))

	_, err = LineSubtotal(Line{Mode: model.PricingUnit, Price: d("3")})
	assert.True(t, apperror.IsValidation(err), "missing quantity")

	_, err = LineSubtotal(Line{Mode: "box", Quantity: 1, Price: d("3")})
	assert.True(t, apperror.IsValidation(err))
}

func TestLineSubtotal_NegativeInputsRejected(t *testing.T) {
	_, err := LineSubtotal(unitLine(1, "-1", "0"))
	assert.True(t, apperror.IsValidation(err))
	_, err = LineSubtotal(unitLine(1, "1", "-1"))
	assert.True(t, apperror.IsValidation(err))
}

// ── Cart subtotal ─────────────────────────────────────────────────────────────

func TestCartSubtotal_Scenario(t *testing.T) {
	got, err := CartSubtotal(scenarioCart())
	require.NoError(t, err)
	assert.Equal(t, "45.30", got.StringFixed(2))
}

func TestCartSubtotal_OrderIndependent(t *testing.T) {
	lines := []Line{
		unitLine(2, "15.90", "0"),
		weightLine("300", "0.045", "0"),
		unitLine(1, "7.35", "1.10"),
		weightLine("125", "0.0399", "0"),
		unitLine(4, "2.49", "0"),
	}
	want, err := CartSubtotal(lines)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]Line(nil), lines...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := CartSubtotal(shuffled)
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	}
}

// ── Discount ──────────────────────────────────────────────────────────────────

func TestApplyDiscount_Percentage(t *testing.T) {
	amount, after, err := ApplyDiscount(d("45.30"), Discount{Kind: model.DiscountPercentage, Value: d("10")})
	require.NoError(t, err)
	assert.Equal(t, "4.53", amount.StringFixed(2))
	assert.Equal(t, "40.77", after.StringFixed(2))

	_, after, err = ApplyDiscount(d("45.30"), Discount{Kind: model.DiscountPercentage, Value: d("100")})
	require.NoError(t, err)
	assert.True(t, after.IsZero())

	_, _, err = ApplyDiscount(d("45.30"), Discount{Kind: model.DiscountPercentage, Value: d("100.01")})
	assert.True(t, apperror.IsValidation(err))
}

func TestApplyDiscount_FixedNeverExceedsSubtotal(t *testing.T) {
	amount, after, err := ApplyDiscount(d("12.00"), Discount{Kind: model.DiscountFixed, Value: d("20")})
	require.NoError(t, err)
	assert.Equal(t, "12.00", amount.StringFixed(2))
	assert.True(t, after.IsZero())

	amount, after, err = ApplyDiscount(d("12.00"), Discount{Kind: model.DiscountFixed, Value: d("2.50")})
	require.NoError(t, err)
	assert.Equal(t, "2.50", amount.StringFixed(2))
	assert.Equal(t, "9.50", after.StringFixed(2))
}

func TestApplyDiscount_None(t *testing.T) {
	amount, after, err := ApplyDiscount(d("8.10"), Discount{Kind: model.DiscountNone})
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
	assert.Equal(t, "8.10", after.StringFixed(2))
}

// ── Cashback ──────────────────────────────────────────────────────────────────

func TestClampCashback(t *testing.T) {
	cases := []struct{ requested, available, after, want string }{
		{"45.30", "100.00", "45.30", "45.30"},
		{"10.00", "4.00", "45.30", "4.00"},
		{"50.00", "100.00", "20.00", "20.00"},
		{"0", "100.00", "20.00", "0"},
		{"5.00", "-3.00", "20.00", "0"},
	}
	for _, tc := range cases {
		got := ClampCashback(d(tc.requested), d(tc.available), d(tc.after))
		assert.True(t, d(tc.want).Equal(got), "%+v: got %s", tc, got)
		assert.True(t, got.LessThanOrEqual(d(tc.requested)) || d(tc.requested).IsNegative())
	}
}

// ── Tenders ───────────────────────────────────────────────────────────────────

func TestReconcileTenders_Tolerance(t *testing.T) {
	total := d("45.30")

	_, err := ReconcileTenders(total, []Tender{{Method: model.TenderPix, Amount: dp("45.29")}})
	assert.NoError(t, err, "within one cent is accepted")

	_, err = ReconcileTenders(total, []Tender{{Method: model.TenderPix, Amount: dp("45.28")}})
	assert.True(t, apperror.IsValidation(err), "short by 0.02 is rejected")

	rec, err := ReconcileTenders(total, []Tender{{Method: model.TenderCash, Amount: dp("50.30")}})
	require.NoError(t, err)
	assert.Equal(t, "5.00", rec.Change.StringFixed(2))
	assert.True(t, rec.Overpaid.IsZero())
}

func TestReconcileTenders_ExcessWithoutCashIsOverpaid(t *testing.T) {
	rec, err := ReconcileTenders(d("10.00"), []Tender{
		{Method: model.TenderCredit, Amount: dp("8.00")},
		{Method: model.TenderPix, Amount: dp("7.00")},
	})
	require.NoError(t, err)
	assert.True(t, rec.Change.IsZero())
	assert.Equal(t, "5.00", rec.Overpaid.StringFixed(2))
}

func TestReconcileTenders_SingleTenderWithoutAmountCoversTotal(t *testing.T) {
	rec, err := ReconcileTenders(d("19.99"), []Tender{{Method: model.TenderDebit}})
	require.NoError(t, err)
	require.Len(t, rec.Tenders, 1)
	assert.Equal(t, "19.99", rec.Tenders[0].Amount.StringFixed(2))

	_, err = ReconcileTenders(d("19.99"), []Tender{{Method: model.TenderDebit}, {Method: model.TenderCash}})
	assert.True(t, apperror.IsValidation(err))
}

func TestReconcileTenders_FloatingPointEdges(t *testing.T) {
	// 0.1 + 0.2 style sums must never surface as a spurious mismatch.
	rec, err := ReconcileTenders(d("0.30"), []Tender{
		{Method: model.TenderCash, Amount: dp("0.1")},
		{Method: model.TenderPix, Amount: dp("0.2")},
	})
	require.NoError(t, err)
	assert.True(t, rec.Change.IsZero())
}

func TestCashChange(t *testing.T) {
	change, err := CashChange(d("40.77"), d("50.00"))
	require.NoError(t, err)
	assert.Equal(t, "9.23", change.StringFixed(2))

	change, err = CashChange(d("40.77"), d("40.77"))
	require.NoError(t, err)
	assert.True(t, change.IsZero())

	_, err = CashChange(d("40.77"), d("40.00"))
	assert.True(t, apperror.IsValidation(err))
}

// ── Settle (end-to-end) ───────────────────────────────────────────────────────

func TestSettle_Scenario2_PercentageDiscountAndChange(t *testing.T) {
	b, err := Settle(Request{
		Lines:     scenarioCart(),
		Discount:  Discount{Kind: model.DiscountPercentage, Value: d("10")},
		Tenders:   []Tender{{Method: model.TenderCash}},
		ChangeFor: dp("50.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "45.30", b.Subtotal.StringFixed(2))
	assert.Equal(t, "40.77", b.Total.StringFixed(2))
	assert.Equal(t, "9.23", b.Change.StringFixed(2))
	assert.Equal(t, "cash", b.PaymentMethod)
}

func TestSettle_Scenario3_CashbackCoversEverything(t *testing.T) {
	b, err := Settle(Request{
		Lines:             scenarioCart(),
		CashbackRequested: d("45.30"),
		CashbackAvailable: d("100.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "45.30", b.CashbackApplied.StringFixed(2))
	assert.True(t, b.Total.IsZero())
}

func TestSettle_Scenario4_MixedTender(t *testing.T) {
	b, err := Settle(Request{
		Lines: scenarioCart(),
		Tenders: []Tender{
			{Method: model.TenderCash, Amount: dp("20.00")},
			{Method: model.TenderPix, Amount: dp("25.30")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "45.30", b.TenderSum.StringFixed(2))
	assert.True(t, b.Change.IsZero())
	assert.Equal(t, model.PaymentMixed, b.PaymentMethod)
}

func TestSettle_DeliveryFeeAddedAfterCashback(t *testing.T) {
	b, err := Settle(Request{
		Lines:             []Line{unitLine(1, "30.00", "0")},
		DeliveryFee:       d("5.00"),
		CashbackRequested: d("50"),
		CashbackAvailable: d("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", b.CashbackApplied.StringFixed(2))
	assert.Equal(t, "5.00", b.Total.StringFixed(2))
}

func TestSettle_EmptyCartIsValidation(t *testing.T) {
	_, err := Settle(Request{})
	assert.True(t, apperror.IsValidation(err))
}

func TestSettle_ChangeForNeedsCash(t *testing.T) {
	_, err := Settle(Request{
		Lines:     scenarioCart(),
		Tenders:   []Tender{{Method: model.TenderPix}},
		ChangeFor: dp("50"),
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestSettle_ChangeForAgainstCashPortionOfMixedTender(t *testing.T) {
	b, err := Settle(Request{
		Lines: scenarioCart(),
		Tenders: []Tender{
			{Method: model.TenderPix, Amount: dp("25.30")},
			{Method: model.TenderCash, Amount: dp("20.00")},
		},
		ChangeFor: dp("50.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", b.Change.StringFixed(2))
}

func TestPaymentMethod(t *testing.T) {
	assert.Equal(t, "", PaymentMethod(nil))
	assert.Equal(t, "pix", PaymentMethod([]model.Tender{{Method: model.TenderPix}}))
	assert.Equal(t, "cash", PaymentMethod([]model.Tender{{Method: model.TenderCash}, {Method: model.TenderCash}}))
	assert.Equal(t, model.PaymentMixed, PaymentMethod([]model.Tender{{Method: model.TenderCash}, {Method: model.TenderPix}}))
}
