package dto

import "github.com/shopspring/decimal"

type CreateTableRequest struct {
	Number   int `json:"number"   validate:"required,min=1"`
	Capacity int `json:"capacity" validate:"min=0,max=100"`
}

type OpenTableRequest struct {
	CustomerName  string `json:"customer_name"  validate:"required,max=120"`
	CustomerCount int    `json:"customer_count" validate:"min=0,max=100"`
}

type CloseSaleRequest struct {
	Discount          *DiscountRequest `json:"discount"`
	Payments          []TenderRequest  `json:"payments"           validate:"required,min=1,dive"`
	ChangeFor         *decimal.Decimal `json:"change_for"`
	CustomerPhone     *string          `json:"customer_phone"     validate:"omitempty,min=8,max=30"`
	CashbackRequested decimal.Decimal  `json:"cashback_requested" validate:"min=0"`
}

type CancelSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}
