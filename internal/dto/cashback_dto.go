package dto

import (
	"vendapos/internal/model"

	"github.com/shopspring/decimal"
)

type CashbackStatementResponse struct {
	Phone        string                      `json:"phone"`
	Balance      decimal.Decimal             `json:"balance"`
	Transactions []model.CashbackTransaction `json:"transactions"`
}
