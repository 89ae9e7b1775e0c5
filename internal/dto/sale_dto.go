package dto

import "github.com/shopspring/decimal"

// ─── Shared sale DTOs ────────────────────────────────────────────────────────

type ComplementRequest struct {
	Name  string          `json:"name"  validate:"required"`
	Price decimal.Decimal `json:"price" validate:"min=0"`
}

// ItemRequest references a catalog product. Quantity is used for unit-priced
// products, WeightGrams for weight-priced ones.
type ItemRequest struct {
	ProductID   string              `json:"product_id"   validate:"required,uuid"`
	Quantity    int                 `json:"quantity"     validate:"min=0"`
	WeightGrams decimal.Decimal     `json:"weight_grams" validate:"min=0"`
	Discount    decimal.Decimal     `json:"discount"     validate:"min=0"`
	Observation *string             `json:"observation"`
	Complements []ComplementRequest `json:"complements"  validate:"omitempty,dive"`
}

// TenderRequest is one payment. Amount may be omitted when it is the only tender.
type TenderRequest struct {
	Method string           `json:"method" validate:"required,oneof=cash pix credit_card debit_card voucher"`
	Amount *decimal.Decimal `json:"amount"`
}

type DiscountRequest struct {
	Kind  string          `json:"kind"  validate:"omitempty,oneof=none percentage fixed"`
	Value decimal.Decimal `json:"value" validate:"min=0"`
}
