package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. PricingMode selects which of UnitPrice or
// PricePerGram applies; the other stays zero.
type Product struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name         string          `gorm:"index;not null" json:"name"`
	Category     string          `gorm:"not null;default:''" json:"category"`
	PricingMode  PricingMode     `gorm:"type:varchar(10);not null" json:"pricing_mode"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
	PricePerGram decimal.Decimal `gorm:"type:decimal(12,5);not null;default:0" json:"price_per_gram"`
	Active       bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Price returns the price used by the settlement engine for this product's mode.
func (p *Product) Price() decimal.Decimal {
	switch p.PricingMode {
	case PricingWeight:
		return p.PricePerGram
	case PricingUnit:
		return p.UnitPrice
	default:
		return p.UnitPrice
	}
}
