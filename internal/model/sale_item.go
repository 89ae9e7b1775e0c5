package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingMode: a product is priced either per unit or per gram, never both.
type PricingMode string

const (
	PricingUnit   PricingMode = "unit"
	PricingWeight PricingMode = "weight"
)

func (m PricingMode) Valid() bool {
	switch m {
	case PricingUnit, PricingWeight:
		return true
	default:
		return false
	}
}

// DiscountKind is the global discount applied to a cart subtotal.
type DiscountKind string

const (
	DiscountNone       DiscountKind = "none"
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

func (k DiscountKind) Valid() bool {
	switch k {
	case DiscountNone, DiscountPercentage, DiscountFixed:
		return true
	default:
		return false
	}
}

// Owner types for the polymorphic SaleItem/Tender relations.
const (
	OwnerOrder        = "order"
	OwnerTableSession = "table_session"
)

// SaleItem is one product line of an Order or TableSession.
// Quantity is set for unit-priced products, WeightGrams for weight-priced ones.
// UnitPrice is the price per unit or per gram accordingly.
// Subtotal is derived by the settlement engine on every mutation.
type SaleItem struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerID     uuid.UUID        `gorm:"type:uuid;index;not null" json:"owner_id"`
	OwnerType   string           `gorm:"type:varchar(20);not null" json:"owner_type"`
	ProductID   uuid.UUID        `gorm:"type:uuid;not null" json:"product_id"`
	ProductName string           `gorm:"not null" json:"product_name"`
	PricingMode PricingMode      `gorm:"type:varchar(10);not null" json:"pricing_mode"`
	Quantity    int              `gorm:"not null;default:0" json:"quantity"`
	WeightGrams decimal.Decimal  `gorm:"type:decimal(12,3);not null;default:0" json:"weight_grams"`
	UnitPrice   decimal.Decimal  `gorm:"type:decimal(12,5);not null" json:"unit_price"`
	Discount    decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Subtotal    decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Observation *string          `json:"observation,omitempty"`
	Complements []ItemComplement `gorm:"foreignKey:SaleItemID;constraint:OnDelete:CASCADE" json:"complements,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ItemComplement is an add-on selection with its own price delta.
type ItemComplement struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SaleItemID uuid.UUID       `gorm:"type:uuid;index;not null" json:"sale_item_id"`
	Name       string          `gorm:"not null" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
}
