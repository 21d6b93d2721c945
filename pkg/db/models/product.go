package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/types"
)

// MetadataInventoryKey is the key under which the metadata blob mirrors inventory_count.
const MetadataInventoryKey = "inventory"

// ErrMetadataNotObject is returned when the metadata blob is not a JSON object.
var ErrMetadataNotObject = errors.New("product metadata is not a JSON object")

// Product is a catalog entry with its shared stock counter.
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name           string         `gorm:"column:name;not null"`
	InventoryCount int            `gorm:"column:inventory_count;not null;default:0"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// MetadataView returns the metadata blob with the inventory mirror taken from
// InventoryCount. The stored blob is never the source of truth for stock.
func (p Product) MetadataView() (types.JSONMap, error) {
	view := types.JSONMap{}
	if len(p.Metadata) > 0 && string(p.Metadata) != "null" {
		if err := json.Unmarshal(p.Metadata, &view); err != nil || view == nil {
			return nil, ErrMetadataNotObject
		}
	}
	view[MetadataInventoryKey] = p.InventoryCount
	return view, nil
}
