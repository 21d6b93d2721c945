package lineitems

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// MetadataItemsKey is the checkout metadata key holding the JSON item array written at
// session creation.
const MetadataItemsKey = "items"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

type metadataItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
}

func (m metadataItem) productID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.ProductID
}

// MetadataStrategy reads the item array embedded in the session metadata.
type MetadataStrategy struct {
	logg *logger.Logger
}

func NewMetadataStrategy(logg *logger.Logger) *MetadataStrategy {
	return &MetadataStrategy{logg: logg}
}

func (s *MetadataStrategy) Name() string { return "metadata" }

func (s *MetadataStrategy) Resolve(ctx context.Context, checkout Checkout) ([]LineItem, error) {
	raw := strings.TrimSpace(checkout.Metadata[MetadataItemsKey])
	if raw == "" {
		return nil, nil
	}

	var entries []metadataItem
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode metadata items")
	}

	items := make([]LineItem, 0, len(entries))
	for i, entry := range entries {
		if err := validate.Struct(entry); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"index":  i,
				"name":   entry.Name,
				"reason": validationSummary(err),
			}), "dropping invalid metadata item")
			continue
		}
		items = append(items, LineItem{
			ProductID: entry.productID(),
			Name:      entry.Name,
			Quantity:  entry.Quantity,
			UnitPrice: entry.Price,
		})
	}
	return items, nil
}

func validationSummary(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fe.Field()+" "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
