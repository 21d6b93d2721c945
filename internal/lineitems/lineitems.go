// Package lineitems reconstructs what was bought in a completed checkout.
package lineitems

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// LineItem is one purchased product.
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Checkout is the part of a completed checkout session the strategies read.
type Checkout struct {
	SessionID string
	Metadata  map[string]string
}

// Strategy is one source of line items.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, checkout Checkout) ([]LineItem, error)
}

// Resolver tries each strategy in order and returns the first non-empty result.
type Resolver struct {
	strategies []Strategy
	logg       *logger.Logger
}

func NewResolver(logg *logger.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, logg: logg}
}

// Resolve never fails; an empty slice means no strategy produced items.
func (r *Resolver) Resolve(ctx context.Context, checkout Checkout) []LineItem {
	for _, strategy := range r.strategies {
		sctx := r.logg.WithField(ctx, "strategy", strategy.Name())

		items, err := strategy.Resolve(sctx, checkout)
		if err != nil {
			r.logg.Warn(r.logg.WithField(sctx, "error", err.Error()), "line item strategy failed")
			continue
		}
		if len(items) > 0 {
			r.logg.Info(r.logg.WithField(sctx, "item_count", len(items)), "line items resolved")
			return items
		}
		r.logg.Debug(sctx, "line item strategy returned no items")
	}

	r.logg.Warn(ctx, "no line items resolved")
	return nil
}

func (li LineItem) String() string {
	return fmt.Sprintf("%s x%d @ %s", li.Name, li.Quantity, li.UnitPrice.StringFixed(2))
}
