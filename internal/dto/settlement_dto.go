package dto

import "github.com/shopspring/decimal"

// QuoteLine is a priced line that needs no catalog lookup, so quotes keep
// working while the backend is unavailable.
type QuoteLine struct {
	PricingMode string              `json:"pricing_mode" validate:"required,oneof=unit weight"`
	Quantity    int                 `json:"quantity"     validate:"min=0"`
	WeightGrams decimal.Decimal     `json:"weight_grams" validate:"min=0"`
	Price       decimal.Decimal     `json:"price"        validate:"min=0"`
	Discount    decimal.Decimal     `json:"discount"     validate:"min=0"`
	Complements []ComplementRequest `json:"complements"  validate:"omitempty,dive"`
}

type QuoteRequest struct {
	Lines             []QuoteLine      `json:"lines"              validate:"required,min=1,dive"`
	Discount          *DiscountRequest `json:"discount"`
	DeliveryFee       decimal.Decimal  `json:"delivery_fee"       validate:"min=0"`
	CashbackRequested decimal.Decimal  `json:"cashback_requested" validate:"min=0"`
	CashbackAvailable decimal.Decimal  `json:"cashback_available" validate:"min=0"`
	Payments          []TenderRequest  `json:"payments"           validate:"omitempty,dive"`
	ChangeFor         *decimal.Decimal `json:"change_for"`
}
