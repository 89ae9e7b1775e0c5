package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a delivery/manual order.
// pending → confirmed → preparing → out_for_delivery | ready_for_pickup → delivered;
// cancelled is reachable from every non-terminal state.
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderPreparing      OrderStatus = "preparing"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
)

// Valid reports whether s is one of the declared statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderOutForDelivery,
		OrderReadyForPickup, OrderDelivered, OrderCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderDelivered, OrderCancelled:
		return true
	case OrderPending, OrderConfirmed, OrderPreparing, OrderOutForDelivery, OrderReadyForPickup:
		return false
	default:
		return false
	}
}

func (s OrderStatus) String() string { return string(s) }

// Channel tags where an order originated.
type Channel string

const (
	ChannelDelivery Channel = "delivery"
	ChannelManual   Channel = "manual"
	ChannelPDV      Channel = "pdv"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelDelivery, ChannelManual, ChannelPDV:
		return true
	default:
		return false
	}
}

// Order is a delivery or manually-created sale.
// TotalPrice == Subtotal - DiscountAmount - CashbackApplied + DeliveryFee, fixed at creation.
// Orders are never deleted: they end as delivered or cancelled.
type Order struct {
	ID      uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Channel Channel     `gorm:"type:varchar(20);not null" json:"channel"`
	Status  OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	CustomerName  string  `gorm:"not null" json:"customer_name"`
	CustomerPhone *string `gorm:"type:varchar(30);index" json:"customer_phone,omitempty"`
	IsPickup      bool    `gorm:"not null;default:false" json:"is_pickup"`
	Street        *string `json:"street,omitempty"`
	Number        *string `gorm:"type:varchar(20)" json:"number,omitempty"`
	Neighborhood  *string `json:"neighborhood,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	Observation   *string `json:"observation,omitempty"`

	Items    []SaleItem `gorm:"polymorphic:Owner;polymorphicValue:order" json:"items"`
	Payments []Tender   `gorm:"polymorphic:Owner;polymorphicValue:order" json:"payments"`

	PaymentMethod   string           `gorm:"type:varchar(20);not null" json:"payment_method"` // a TenderMethod or "mixed"
	ChangeFor       *decimal.Decimal `gorm:"type:decimal(12,2)" json:"change_for,omitempty"`
	ChangeAmount    decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"change_amount"`
	DeliveryFee     decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"delivery_fee"`
	Subtotal        decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	DiscountKind    DiscountKind     `gorm:"type:varchar(20);not null;default:'none'" json:"discount_kind"`
	DiscountValue   decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"discount_value"`
	DiscountAmount  decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	CashbackApplied decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"cashback_applied"`
	TotalPrice      decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"total_price"`

	// CashRegisterID is nil until a register is open, see OrderService.ReconcileOrphans.
	CashRegisterID *uuid.UUID `gorm:"type:uuid;index" json:"cash_register_id,omitempty"`

	StatusHistory []OrderStatusEvent `gorm:"foreignKey:OrderID" json:"status_history,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// OrderStatusEvent is the immutable audit row written with every status change.
type OrderStatusEvent struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrderID   uuid.UUID   `gorm:"type:uuid;index;not null" json:"order_id"`
	From      OrderStatus `gorm:"column:from_status;type:varchar(20);not null" json:"from"`
	To        OrderStatus `gorm:"column:to_status;type:varchar(20);not null" json:"to"`
	ChangedAt time.Time   `gorm:"not null" json:"changed_at"`
}
