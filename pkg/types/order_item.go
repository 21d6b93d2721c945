package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// OrderItem is the line item snapshot stored on an order.
type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderItems stores the ordered snapshot as a JSONB array.
type OrderItems []OrderItem

// Value serializes the items to JSON. A nil slice is written as an empty array.
func (o OrderItems) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]OrderItem(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes JSONB into the item slice.
func (o *OrderItems) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded []OrderItem
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*o = decoded
	return nil
}

// Subtotal sums price times quantity across items.
func (o OrderItems) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
