package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CashbackKind string

const (
	CashbackRedeem CashbackKind = "redeem"
	CashbackAccrue CashbackKind = "accrue"
	CashbackRefund CashbackKind = "refund"
)

// CashbackAccount holds the loyalty balance of one customer phone.
type CashbackAccount struct {
	Phone     string          `gorm:"type:varchar(30);primaryKey" json:"phone"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CashbackTransaction is an immutable balance change. Amount is always positive;
// Kind decides the sign.
type CashbackTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Phone       string          `gorm:"type:varchar(30);index;not null" json:"phone"`
	Kind        CashbackKind    `gorm:"type:varchar(10);not null" json:"kind"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	ReferenceID *uuid.UUID      `gorm:"type:uuid;index" json:"reference_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed returns the balance delta of the transaction.
func (t CashbackTransaction) Signed() decimal.Decimal {
	switch t.Kind {
	case CashbackRedeem:
		return t.Amount.Neg()
	case CashbackAccrue, CashbackRefund:
		return t.Amount
	default:
		return decimal.Zero
	}
}
