package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
)

// OrderDeadLetter captures orders that could not be written so they can be recovered by hand.
type OrderDeadLetter struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventID           string                 `gorm:"column:event_id;not null" json:"event_id"`
	CheckoutSessionID *string                `gorm:"column:checkout_session_id" json:"checkout_session_id"`
	Payload           datatypes.JSON         `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	ErrorReason       enums.DeadLetterReason `gorm:"column:error_reason;not null" json:"error_reason"`
	ErrorMessage      *string                `gorm:"column:error_message" json:"error_message"`
	FailedAt          time.Time              `gorm:"column:failed_at;autoCreateTime" json:"failed_at"`
}

func (OrderDeadLetter) TableName() string { return "order_dead_letters" }

func (d *OrderDeadLetter) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
