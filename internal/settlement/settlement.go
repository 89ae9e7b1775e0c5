// Package settlement holds the pricing law shared by every sale channel:
// line and cart subtotals, the global discount, cashback clamping and
// tender reconciliation. Functions here are pure; callers own I/O.
package settlement

import (
	"vendapos/internal/apperror"
	"vendapos/internal/model"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest tender/total mismatch accepted as exact.
var Tolerance = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Round applies the half-up rule at the cent. Every comparison in this
// package happens on rounded values.
func Round(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Line is a priced cart entry. Price is per unit in unit mode and per gram
// in weight mode.
type Line struct {
	Mode        model.PricingMode
	Quantity    int
	WeightGrams decimal.Decimal
	Price       decimal.Decimal
	Discount    decimal.Decimal
	Complements []decimal.Decimal
}

// LineFromItem builds the Line a persisted SaleItem is priced from.
func LineFromItem(it model.SaleItem) Line {
	l := Line{
		Mode:        it.PricingMode,
		Quantity:    it.Quantity,
		WeightGrams: it.WeightGrams,
		Price:       it.UnitPrice,
		Discount:    it.Discount,
	}
	for _, c := range it.Complements {
		l.Complements = append(l.Complements, c.Price)
	}
	return l
}

// LineSubtotal prices one line.
//
//	unit:   quantity × (price + Σcomplements) − discount
//	weight: grams × pricePerGram + Σcomplements − discount
//
// The result is clamped to zero.
func LineSubtotal(l Line) (decimal.Decimal, error) {
	if l.Price.IsNegative() {
		return decimal.Zero, apperror.Validation("preço não pode ser negativo")
	}
	if l.Discount.IsNegative() {
		return decimal.Zero, apperror.Validation("desconto do item não pode ser negativo")
	}
	extras := decimal.Zero
	for _, c := range l.Complements {
		if c.IsNegative() {
			return decimal.Zero, apperror.Validation("complemento com preço negativo")
		}
		extras = extras.Add(c)
	}

	var gross decimal.Decimal
	switch l.Mode {
	case model.PricingUnit:
		if !l.WeightGrams.IsZero() {
			return decimal.Zero, apperror.Validation("produto vendido por unidade não aceita peso")
		}
		if l.Quantity <= 0 {
			return decimal.Zero, apperror.Validation("quantidade deve ser maior que zero")
		}
		gross = decimal.NewFromInt(int64(l.Quantity)).Mul(l.Price.Add(extras))
	case model.PricingWeight:
		if l.Quantity != 0 {
			return decimal.Zero, apperror.Validation("produto vendido por peso não aceita quantidade")
		}
		if !l.WeightGrams.IsPositive() {
			return decimal.Zero, apperror.Validation("peso deve ser maior que zero")
		}
		gross = l.WeightGrams.Mul(l.Price).Add(extras)
	default:
		return decimal.Zero, apperror.Validationf("modo de preço inválido: %q", l.Mode)
	}

	sub := Round(gross.Sub(l.Discount))
	if sub.IsNegative() {
		return decimal.Zero, nil
	}
	return sub, nil
}

// CartSubtotal sums the line subtotals. The first invalid line aborts.
func CartSubtotal(lines []Line) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range lines {
		sub, err := LineSubtotal(l)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(sub)
	}
	return total, nil
}

// Discount is the single global discount of a cart.
type Discount struct {
	Kind  model.DiscountKind
	Value decimal.Decimal
}

// ApplyDiscount returns the discount amount and the subtotal after it.
// Percentage is subtotal × pct/100; fixed is min(value, subtotal).
func ApplyDiscount(subtotal decimal.Decimal, d Discount) (amount, after decimal.Decimal, err error) {
	subtotal = Round(subtotal)
	if d.Value.IsNegative() {
		return decimal.Zero, decimal.Zero, apperror.Validation("desconto não pode ser negativo")
	}
	switch d.Kind {
	case model.DiscountNone, "":
		amount = decimal.Zero
	case model.DiscountPercentage:
		if d.Value.GreaterThan(hundred) {
			return decimal.Zero, decimal.Zero, apperror.Validation("desconto percentual deve estar entre 0 e 100")
		}
		amount = Round(subtotal.Mul(d.Value).Div(hundred))
	case model.DiscountFixed:
		amount = decimal.Min(Round(d.Value), subtotal)
	default:
		return decimal.Zero, decimal.Zero, apperror.Validationf("tipo de desconto inválido: %q", d.Kind)
	}
	return amount, subtotal.Sub(amount), nil
}

// ClampCashback returns min(requested, available, afterDiscount), never negative.
func ClampCashback(requested, available, afterDiscount decimal.Decimal) decimal.Decimal {
	c := decimal.Min(Round(requested), Round(available), Round(afterDiscount))
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// Tender is one declared payment. A nil Amount is allowed only when it is
// the single tender of the sale, and then stands for the whole total.
type Tender struct {
	Method model.TenderMethod
	Amount *decimal.Decimal
}

// Reconciliation is the outcome of matching tenders against a total.
type Reconciliation struct {
	Tenders []model.Tender
	Sum     decimal.Decimal
	// Excess is what was tendered beyond the total. It is Change when a
	// cash-like tender is present, otherwise Overpaid.
	Change   decimal.Decimal
	Overpaid decimal.Decimal
}

// ReconcileTenders validates that the tenders cover total within Tolerance.
func ReconcileTenders(total decimal.Decimal, tenders []Tender) (Reconciliation, error) {
	total = Round(total)
	var rec Reconciliation
	if len(tenders) == 0 {
		return rec, apperror.Validation("informe ao menos uma forma de pagamento")
	}

	sum := decimal.Zero
	cashLike := false
	for _, t := range tenders {
		if !t.Method.Valid() {
			return Reconciliation{}, apperror.Validationf("forma de pagamento inválida: %q", t.Method)
		}
		var amt decimal.Decimal
		switch {
		case t.Amount != nil:
			amt = Round(*t.Amount)
		case len(tenders) == 1:
			amt = total
		default:
			return Reconciliation{}, apperror.Validation("pagamento misto exige o valor de cada forma de pagamento")
		}
		if amt.IsNegative() {
			return Reconciliation{}, apperror.Validation("valor de pagamento não pode ser negativo")
		}
		if t.Method.CashLike() {
			cashLike = true
		}
		sum = sum.Add(amt)
		rec.Tenders = append(rec.Tenders, model.Tender{Method: t.Method, Amount: amt})
	}
	rec.Sum = sum

	diff := sum.Sub(total)
	switch {
	case diff.Abs().LessThanOrEqual(Tolerance):
	case diff.IsNegative():
		return Reconciliation{}, apperror.ValidationFields("valor pago insuficiente", map[string]string{
			"payments": "faltam " + diff.Neg().StringFixed(2),
		})
	case cashLike:
		rec.Change = diff
	default:
		rec.Overpaid = diff
	}
	return rec, nil
}

// CashChange returns max(0, changeFor − total). A changeFor below the total
// is a validation error.
func CashChange(total, changeFor decimal.Decimal) (decimal.Decimal, error) {
	total, changeFor = Round(total), Round(changeFor)
	if changeFor.LessThan(total) {
		return decimal.Zero, apperror.ValidationFields("troco para menor que o total", map[string]string{
			"change_for": "deve ser maior ou igual a " + total.StringFixed(2),
		})
	}
	return changeFor.Sub(total), nil
}

// PaymentMethod returns the single method used, or model.PaymentMixed.
func PaymentMethod(tenders []model.Tender) string {
	if len(tenders) == 1 {
		return string(tenders[0].Method)
	}
	if len(tenders) == 0 {
		return ""
	}
	first := tenders[0].Method
	for _, t := range tenders[1:] {
		if t.Method != first {
			return model.PaymentMixed
		}
	}
	return string(first)
}
