package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateOrderRequest struct {
	Channel       string  `json:"channel"        validate:"required,oneof=delivery manual pdv"`
	CustomerName  string  `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone" validate:"omitempty,min=8,max=30"`
	IsPickup      bool    `json:"is_pickup"`
	Street        *string `json:"street"`
	Number        *string `json:"number"`
	Neighborhood  *string `json:"neighborhood"`
	Reference     *string `json:"reference"`
	Observation   *string `json:"observation"`

	Items    []ItemRequest   `json:"items"    validate:"required,min=1,dive"`
	Payments []TenderRequest `json:"payments" validate:"required,min=1,dive"`
	// ChangeFor is the cash the customer will hand over ("troco para").
	ChangeFor         *decimal.Decimal `json:"change_for"`
	DeliveryFee       decimal.Decimal  `json:"delivery_fee"       validate:"min=0"`
	Discount          *DiscountRequest `json:"discount"`
	CashbackRequested decimal.Decimal  `json:"cashback_requested" validate:"min=0"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderFilter is bound from query string of GET /v1/orders.
type OrderFilter struct {
	Status  string `form:"status"`
	Channel string `form:"channel"`
	Limit   int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ReconcileResponse struct {
	RegisterID string `json:"register_id"`
	Linked     int    `json:"linked"`
}
