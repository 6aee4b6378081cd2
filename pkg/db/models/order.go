package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	"github.com/aravindkp/shopsphere-backend/pkg/types"
)

// Order is the immutable-after-creation purchase document. Only status
// fields, refund fields and the running grand total change after insert;
// items are never removed.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress   types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayOrderRef   *string             `gorm:"column:gateway_order_ref"`
	GatewayPaymentRef *string             `gorm:"column:gateway_payment_ref"`
	CouponCode        *string             `gorm:"column:coupon_code"`
	SubtotalPaise     int                 `gorm:"column:subtotal_paise;not null"`
	DiscountPaise     int                 `gorm:"column:discount_paise;not null;default:0"`
	ShippingPaise     int                 `gorm:"column:shipping_paise;not null;default:0"`
	GrandTotalPaise   int                 `gorm:"column:grand_total_paise;not null"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is the purchase-time snapshot of one cart line, frozen at
// creation except for the cancel/return status fields and refund amount.
type OrderItem struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID           uuid.UUID          `gorm:"column:product_id;type:uuid;not null"`
	VariantID           uuid.UUID          `gorm:"column:variant_id;type:uuid;not null"`
	Name                string             `gorm:"column:name;not null"`
	Quantity            int                `gorm:"column:quantity;not null"`
	BasePricePaise      int                `gorm:"column:base_price_paise;not null"`
	DiscountPaise       int                `gorm:"column:discount_paise;not null;default:0"`
	FinalUnitPricePaise int                `gorm:"column:final_unit_price_paise;not null"`
	TotalPaise          int                `gorm:"column:total_paise;not null"`
	CancelStatus        enums.CancelStatus `gorm:"column:cancel_status;type:text;not null;default:'not_cancelled'"`
	ReturnStatus        enums.ReturnStatus `gorm:"column:return_status;type:text;not null;default:'not_requested'"`
	ReturnReason        *string            `gorm:"column:return_reason"`
	RefundPaise         int                `gorm:"column:refund_paise;not null;default:0"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
