package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegisterStatus: "open" | "closed"
type RegisterStatus string

const (
	RegisterOpen   RegisterStatus = "open"
	RegisterClosed RegisterStatus = "closed"
)

// MovementKind: sale | manual_in | manual_out | void
type MovementKind string

const (
	MovementSale      MovementKind = "sale"
	MovementManualIn  MovementKind = "manual_in"
	MovementManualOut MovementKind = "manual_out"
	MovementVoid      MovementKind = "void"
)

// DeviationClass: "normal" | "warning" | "critical"
type DeviationClass string

const (
	DeviationNormal   DeviationClass = "normal"
	DeviationWarning  DeviationClass = "warning"
	DeviationCritical DeviationClass = "critical"
)

// CashRegisterSession is the lifecycle of one register shift at a station.
// Orders and table sales only read its identity and open flag.
type CashRegisterSession struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Station       int             `gorm:"not null;index" json:"station"`
	OperatorName  string          `gorm:"not null" json:"operator_name"`
	OpeningAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"opening_amount"`
	// ExpectedAmount is computed on close: opening amount + SUM(movements)
	ExpectedAmount *decimal.Decimal `gorm:"type:decimal(12,2)" json:"expected_amount,omitempty"`
	DeclaredAmount *decimal.Decimal `gorm:"type:decimal(12,2)" json:"declared_amount,omitempty"`
	Deviation      *decimal.Decimal `gorm:"type:decimal(12,2)" json:"deviation,omitempty"`
	DeviationPct   *decimal.Decimal `gorm:"type:decimal(7,2)" json:"deviation_pct,omitempty"`
	DeviationClass *DeviationClass  `gorm:"type:varchar(20)" json:"deviation_class,omitempty"`
	Status         RegisterStatus   `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	Notes          *string          `json:"notes,omitempty"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
}

func (s *CashRegisterSession) IsOpen() bool { return s != nil && s.Status == RegisterOpen }

// CashMovement is an immutable entry in the register ledger.
// Movements are never modified or deleted: a reversal is a new void entry.
type CashMovement struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CashRegisterID uuid.UUID       `gorm:"type:uuid;index;not null" json:"cash_register_id"`
	Kind           MovementKind    `gorm:"type:varchar(20);not null" json:"kind"`
	Method         TenderMethod    `gorm:"type:varchar(20);not null" json:"method"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Description    string          `gorm:"not null" json:"description"`
	// ReferenceID links to the originating table session or order.
	ReferenceID *uuid.UUID `gorm:"type:uuid" json:"reference_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
