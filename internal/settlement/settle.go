package settlement

import (
	"vendapos/internal/apperror"
	"vendapos/internal/model"

	"github.com/shopspring/decimal"
)

// Request is everything needed to settle one sale.
type Request struct {
	Lines             []Line
	Discount          Discount
	DeliveryFee       decimal.Decimal
	CashbackRequested decimal.Decimal
	CashbackAvailable decimal.Decimal
	// Tenders may be empty to only price the cart (quotes, running totals).
	Tenders []Tender
	// ChangeFor is the cash handed over for the cash portion of the sale.
	ChangeFor *decimal.Decimal
}

// Breakdown is a fully settled sale. Printing and notification collaborators
// consume it as is and never recompute money.
type Breakdown struct {
	LineSubtotals   []decimal.Decimal `json:"line_subtotals"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	DiscountAmount  decimal.Decimal   `json:"discount_amount"`
	AfterDiscount   decimal.Decimal   `json:"after_discount"`
	CashbackApplied decimal.Decimal   `json:"cashback_applied"`
	DeliveryFee     decimal.Decimal   `json:"delivery_fee"`
	Total           decimal.Decimal   `json:"total"`
	Tenders         []model.Tender    `json:"tenders,omitempty"`
	TenderSum       decimal.Decimal   `json:"tender_sum"`
	Change          decimal.Decimal   `json:"change"`
	Overpaid        decimal.Decimal   `json:"overpaid"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
}

// Settle runs subtotal → discount → cashback → delivery fee → tenders.
//
//	Total = max(0, afterDiscount − cashbackApplied) + deliveryFee
func Settle(req Request) (Breakdown, error) {
	if len(req.Lines) == 0 {
		return Breakdown{}, apperror.Validation("a venda precisa de ao menos um item")
	}
	if req.DeliveryFee.IsNegative() {
		return Breakdown{}, apperror.Validation("taxa de entrega não pode ser negativa")
	}
	if req.CashbackRequested.IsNegative() {
		return Breakdown{}, apperror.Validation("cashback solicitado não pode ser negativo")
	}

	var b Breakdown
	b.Subtotal = decimal.Zero
	for _, l := range req.Lines {
		sub, err := LineSubtotal(l)
		if err != nil {
			return Breakdown{}, err
		}
		b.LineSubtotals = append(b.LineSubtotals, sub)
		b.Subtotal = b.Subtotal.Add(sub)
	}

	var err error
	b.DiscountAmount, b.AfterDiscount, err = ApplyDiscount(b.Subtotal, req.Discount)
	if err != nil {
		return Breakdown{}, err
	}

	b.CashbackApplied = ClampCashback(req.CashbackRequested, req.CashbackAvailable, b.AfterDiscount)
	net := b.AfterDiscount.Sub(b.CashbackApplied)
	if net.IsNegative() {
		net = decimal.Zero
	}
	b.DeliveryFee = Round(req.DeliveryFee)
	b.Total = net.Add(b.DeliveryFee)

	tenders := req.Tenders
	if len(tenders) == 0 && req.ChangeFor != nil {
		tenders = []Tender{{Method: model.TenderCash}}
	}
	if len(tenders) == 0 {
		return b, nil
	}

	rec, err := ReconcileTenders(b.Total, tenders)
	if err != nil {
		return Breakdown{}, err
	}
	b.Tenders = rec.Tenders
	b.TenderSum = rec.Sum
	b.Change = rec.Change
	b.Overpaid = rec.Overpaid
	b.PaymentMethod = PaymentMethod(rec.Tenders)

	if req.ChangeFor != nil {
		cash := decimal.Zero
		hasCash := false
		for _, t := range rec.Tenders {
			if t.Method.CashLike() {
				cash = cash.Add(t.Amount)
				hasCash = true
			}
		}
		if !hasCash {
			return Breakdown{}, apperror.Validation("troco só se aplica a pagamento em dinheiro")
		}
		// The cash portion actually due is what cash covers after any excess.
		b.Change, err = CashChange(cash.Sub(rec.Change), *req.ChangeFor)
		if err != nil {
			return Breakdown{}, err
		}
	}
	return b, nil
}
