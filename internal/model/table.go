package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TableStatus: livre → ocupada → aguardando_conta → limpeza → livre.
type TableStatus string

const (
	TableLivre           TableStatus = "livre"
	TableOcupada         TableStatus = "ocupada"
	TableAguardandoConta TableStatus = "aguardando_conta"
	TableLimpeza         TableStatus = "limpeza"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableLivre, TableOcupada, TableAguardandoConta, TableLimpeza:
		return true
	default:
		return false
	}
}

// HasActiveSale reports whether a table in status s carries an open sale
// that accepts item mutations, close and cancel.
func (s TableStatus) HasActiveSale() bool {
	switch s {
	case TableOcupada, TableAguardandoConta:
		return true
	case TableLivre, TableLimpeza:
		return false
	default:
		return false
	}
}

func (s TableStatus) String() string { return string(s) }

// SaleStatus is the state of a TableSession.
type SaleStatus string

const (
	SaleOpen      SaleStatus = "open"
	SaleClosed    SaleStatus = "closed"
	SaleCancelled SaleStatus = "cancelled"
)

// Table is a physical dine-in table. CurrentSaleID is the only source of
// truth for which TableSession is active here.
type Table struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Number        int         `gorm:"uniqueIndex;not null" json:"number"`
	Capacity      int         `gorm:"not null;default:4" json:"capacity"`
	Status        TableStatus `gorm:"type:varchar(20);not null;default:'livre'" json:"status"`
	CurrentSaleID *uuid.UUID  `gorm:"type:uuid" json:"current_sale_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableSession is one seated party's tab. At most one open session per table,
// enforced by idx_table_sessions_open (partial unique index).
type TableSession struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TableID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"table_id"`
	TableNumber   int        `gorm:"not null" json:"table_number"`
	Status        SaleStatus `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	CustomerName  string     `json:"customer_name"`
	CustomerCount int        `gorm:"not null;default:1" json:"customer_count"`

	Items    []SaleItem `gorm:"polymorphic:Owner;polymorphicValue:table_session" json:"items"`
	Payments []Tender   `gorm:"polymorphic:Owner;polymorphicValue:table_session" json:"payments"`

	Subtotal        decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountKind    DiscountKind     `gorm:"type:varchar(20);not null;default:'none'" json:"discount_kind"`
	DiscountValue   decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"discount_value"`
	DiscountAmount  decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	CashbackApplied decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"cashback_applied"`
	TotalAmount     decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	PaymentMethod   *string          `gorm:"type:varchar(20)" json:"payment_method,omitempty"`
	ChangeFor       *decimal.Decimal `gorm:"type:decimal(12,2)" json:"change_for,omitempty"`
	ChangeAmount    decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"change_amount"`
	CustomerPhone   *string          `gorm:"type:varchar(30)" json:"customer_phone,omitempty"`
	CancelReason    *string          `json:"cancel_reason,omitempty"`

	CashRegisterID *uuid.UUID `gorm:"type:uuid;index" json:"cash_register_id,omitempty"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	UpdatedAt      time.Time  `gorm:"index" json:"updated_at"`
}
