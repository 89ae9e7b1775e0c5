package dto

import "github.com/shopspring/decimal"

type CreateProductRequest struct {
	Name         string          `json:"name"           validate:"required,min=2,max=120"`
	Category     string          `json:"category"       validate:"max=60"`
	PricingMode  string          `json:"pricing_mode"   validate:"required,oneof=unit weight"`
	UnitPrice    decimal.Decimal `json:"unit_price"     validate:"min=0"`
	PricePerGram decimal.Decimal `json:"price_per_gram" validate:"min=0"`
}

// UpdateProductRequest changes only the fields that are set.
type UpdateProductRequest struct {
	Name         *string          `json:"name"           validate:"omitempty,min=2,max=120"`
	Category     *string          `json:"category"       validate:"omitempty,max=60"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	PricePerGram *decimal.Decimal `json:"price_per_gram"`
	Active       *bool            `json:"active"`
}
