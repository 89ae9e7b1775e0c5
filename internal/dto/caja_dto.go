package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenRegisterRequest struct {
	// Station defaults to the terminal's STATION when zero.
	Station       int             `json:"station"        validate:"min=0"`
	OperatorName  string          `json:"operator_name"  validate:"required"`
	OpeningAmount decimal.Decimal `json:"opening_amount" validate:"min=0"`
}

// DeclaredAmounts is the blind count entered by the operator at close.
type DeclaredAmounts struct {
	Cash    decimal.Decimal `json:"cash"        validate:"min=0"`
	Pix     decimal.Decimal `json:"pix"         validate:"min=0"`
	Credit  decimal.Decimal `json:"credit_card" validate:"min=0"`
	Debit   decimal.Decimal `json:"debit_card"  validate:"min=0"`
	Voucher decimal.Decimal `json:"voucher"     validate:"min=0"`
}

type CloseRegisterRequest struct {
	RegisterID string          `json:"register_id" validate:"omitempty,uuid"`
	Declared   DeclaredAmounts `json:"declared"    validate:"required"`
	Notes      *string         `json:"notes"`
}

type MovementRequest struct {
	RegisterID  string          `json:"register_id" validate:"omitempty,uuid"`
	Kind        string          `json:"kind"        validate:"required,oneof=manual_in manual_out"`
	Method      string          `json:"method"      validate:"required,oneof=cash pix credit_card debit_card voucher"`
	Amount      decimal.Decimal `json:"amount"      validate:"required,gt=0"`
	Description string          `json:"description" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DeviationResponse struct {
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
	Class   string          `json:"class"` // normal | warning | critical
}

type AmountsByMethod struct {
	Cash    decimal.Decimal `json:"cash"`
	Pix     decimal.Decimal `json:"pix"`
	Credit  decimal.Decimal `json:"credit_card"`
	Debit   decimal.Decimal `json:"debit_card"`
	Voucher decimal.Decimal `json:"voucher"`
	Total   decimal.Decimal `json:"total"`
}

type CloseRegisterResponse struct {
	RegisterID string            `json:"register_id"`
	Expected   AmountsByMethod   `json:"expected"`
	Declared   AmountsByMethod   `json:"declared"`
	Deviation  DeviationResponse `json:"deviation"`
	Status     string            `json:"status"`
}

type RegisterReportResponse struct {
	RegisterID    string             `json:"register_id"`
	Station       int                `json:"station"`
	OperatorName  string             `json:"operator_name"`
	OpeningAmount decimal.Decimal    `json:"opening_amount"`
	Expected      AmountsByMethod    `json:"expected"`
	Declared      *decimal.Decimal   `json:"declared"`
	Deviation     *DeviationResponse `json:"deviation"`
	Status        string             `json:"status"`
	Notes         *string            `json:"notes"`
	OrderCount    int                `json:"order_count"`
	TableSales    int                `json:"table_sales"`
	OpenedAt      string             `json:"opened_at"`
	ClosedAt      *string            `json:"closed_at"`
}
