package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/types"
)

// Keys written into Order.Metadata by the fulfillment pipeline.
const (
	OrderMetaPaymentStatus     = "payment_status"
	OrderMetaOrderType         = "order_type"
	OrderMetaPickupCode        = "pickup_code"
	OrderMetaPickupWeekStart   = "pickup_week_start"
	OrderMetaCheckoutSessionID = "checkout_session_id"
)

// PickupDateLayout formats pickup dates in metadata and logs.
const PickupDateLayout = "2006-01-02"

// Order is a paid storefront purchase awaiting pickup.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerName    string            `gorm:"column:customer_name;not null"`
	CustomerEmail   string            `gorm:"column:customer_email;not null"`
	CustomerPhone   *string           `gorm:"column:customer_phone"`
	Items           types.OrderItems  `gorm:"column:items;type:jsonb;not null"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:pending"`
	PickupWeekStart time.Time         `gorm:"column:pickup_week_start;type:date;not null"`
	Metadata        types.JSONMap     `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o Order) PaymentStatus() enums.PaymentStatus {
	return enums.PaymentStatus(o.Metadata.String(OrderMetaPaymentStatus))
}

func (o Order) PickupCode() string {
	return o.Metadata.String(OrderMetaPickupCode)
}

func (o Order) CheckoutSessionID() string {
	return o.Metadata.String(OrderMetaCheckoutSessionID)
}

func (o Order) OrderType() enums.OrderType {
	return enums.OrderType(o.Metadata.String(OrderMetaOrderType))
}
