package service

import (
	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/model"
	"vendapos/internal/settlement"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Helpers shared by the order ledger, the table manager and quotes.

func toDiscount(req *dto.DiscountRequest) (settlement.Discount, error) {
	if req == nil {
		return settlement.Discount{Kind: model.DiscountNone}, nil
	}
	kind, err := model.ParseDiscountKind(req.Kind)
	if err != nil {
		return settlement.Discount{}, apperror.ValidationFields(err.Error(), map[string]string{"discount.kind": "oneof"})
	}
	return settlement.Discount{Kind: kind, Value: req.Value}, nil
}

func toTenders(reqs []dto.TenderRequest) ([]settlement.Tender, error) {
	out := make([]settlement.Tender, 0, len(reqs))
	for _, r := range reqs {
		m, err := model.ParseTenderMethod(r.Method)
		if err != nil {
			return nil, apperror.ValidationFields(err.Error(), map[string]string{"payments.method": "oneof"})
		}
		out = append(out, settlement.Tender{Method: m, Amount: r.Amount})
	}
	return out, nil
}

func linesOf(items []model.SaleItem) []settlement.Line {
	lines := make([]settlement.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, settlement.LineFromItem(it))
	}
	return lines
}

// Quote prices a cart without touching persistence, so it keeps working
// while the backend is unavailable.
func Quote(req dto.QuoteRequest) (settlement.Breakdown, error) {
	discount, err := toDiscount(req.Discount)
	if err != nil {
		return settlement.Breakdown{}, err
	}
	tenders, err := toTenders(req.Payments)
	if err != nil {
		return settlement.Breakdown{}, err
	}
	lines := make([]settlement.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		mode, err := model.ParsePricingMode(l.PricingMode)
		if err != nil {
			return settlement.Breakdown{}, apperror.Validation(err.Error())
		}
		line := settlement.Line{
			Mode:        mode,
			Quantity:    l.Quantity,
			WeightGrams: l.WeightGrams,
			Price:       l.Price,
			Discount:    l.Discount,
		}
		for _, c := range l.Complements {
			line.Complements = append(line.Complements, c.Price)
		}
		lines = append(lines, line)
	}
	return settlement.Settle(settlement.Request{
		Lines:             lines,
		Discount:          discount,
		DeliveryFee:       req.DeliveryFee,
		CashbackRequested: req.CashbackRequested,
		CashbackAvailable: req.CashbackAvailable,
		Tenders:           tenders,
		ChangeFor:         req.ChangeFor,
	})
}

// saleMovements turns settled tenders into register movements. Cash is
// booked net of any cash tendered beyond the total.
func saleMovements(b settlement.Breakdown, registerID, refID uuid.UUID, description string) []model.CashMovement {
	out := make([]model.CashMovement, 0, len(b.Tenders))
	excess := b.TenderSum.Sub(b.Total).Sub(b.Overpaid)
	for _, t := range b.Tenders {
		amount := t.Amount
		if t.Method.CashLike() && excess.IsPositive() {
			taken := decimal.Min(excess, amount)
			amount = amount.Sub(taken)
			excess = excess.Sub(taken)
		}
		ref := refID
		out = append(out, model.CashMovement{
			CashRegisterID: registerID,
			Kind:           model.MovementSale,
			Method:         t.Method,
			Amount:         amount,
			Description:    description,
			ReferenceID:    &ref,
		})
	}
	return out
}
