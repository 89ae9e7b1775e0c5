package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenderMethod: cash | pix | credit_card | debit_card | voucher
type TenderMethod string

const (
	TenderCash    TenderMethod = "cash"
	TenderPix     TenderMethod = "pix"
	TenderCredit  TenderMethod = "credit_card"
	TenderDebit   TenderMethod = "debit_card"
	TenderVoucher TenderMethod = "voucher"
)

// PaymentMixed is stored as PaymentMethod when more than one tender was used.
const PaymentMixed = "mixed"

func (m TenderMethod) Valid() bool {
	switch m {
	case TenderCash, TenderPix, TenderCredit, TenderDebit, TenderVoucher:
		return true
	default:
		return false
	}
}

// CashLike reports whether overpayment with this method is handed back as change.
func (m TenderMethod) CashLike() bool {
	switch m {
	case TenderCash:
		return true
	case TenderPix, TenderCredit, TenderDebit, TenderVoucher:
		return false
	default:
		return false
	}
}

// AllTenderMethods lists methods in report order.
var AllTenderMethods = []TenderMethod{TenderCash, TenderPix, TenderCredit, TenderDebit, TenderVoucher}

// Tender is one {method, amount} entry of a settled sale.
type Tender struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"owner_id"`
	OwnerType string          `gorm:"type:varchar(20);not null" json:"owner_type"`
	Method    TenderMethod    `gorm:"type:varchar(20);not null" json:"method"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
}
