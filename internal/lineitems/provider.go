package lineitems

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// LineItemLister lists the provider's line items for a checkout session.
type LineItemLister interface {
	ListCheckoutLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
}

// ProductFinder looks up catalog products by exact name.
type ProductFinder interface {
	FindByName(ctx context.Context, name string) (*models.Product, error)
}

// ProviderStrategy asks the payment provider for the session's line items and maps each
// to a catalog product by name.
type ProviderStrategy struct {
	lister   LineItemLister
	products ProductFinder
	timeout  time.Duration
	logg     *logger.Logger
}

func NewProviderStrategy(lister LineItemLister, products ProductFinder, timeout time.Duration, logg *logger.Logger) *ProviderStrategy {
	return &ProviderStrategy{lister: lister, products: products, timeout: timeout, logg: logg}
}

func (s *ProviderStrategy) Name() string { return "provider" }

func (s *ProviderStrategy) Resolve(ctx context.Context, checkout Checkout) ([]LineItem, error) {
	if checkout.SessionID == "" {
		return nil, nil
	}

	lctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	remote, err := s.lister.ListCheckoutLineItems(lctx, checkout.SessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list provider line items")
	}

	items := make([]LineItem, 0, len(remote))
	for _, li := range remote {
		if li == nil {
			continue
		}
		name := providerItemName(li)
		entryCtx := s.logg.WithField(ctx, "item_name", name)

		if li.Quantity < 1 || name == "" {
			s.logg.Warn(entryCtx, "dropping provider line item without name or quantity")
			continue
		}

		product, err := s.products.FindByName(ctx, name)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				s.logg.Warn(entryCtx, "no product matches provider line item")
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return items, err
			}
			s.logg.Warn(s.logg.WithField(entryCtx, "error", err.Error()), "product lookup failed")
			continue
		}

		items = append(items, LineItem{
			ProductID: product.ID.String(),
			Name:      product.Name,
			Quantity:  int(li.Quantity),
			UnitPrice: providerUnitPrice(li),
		})
	}
	return items, nil
}

func providerItemName(li *stripe.LineItem) string {
	if li.Price != nil && li.Price.Product != nil && li.Price.Product.Name != "" {
		return strings.TrimSpace(li.Price.Product.Name)
	}
	return strings.TrimSpace(li.Description)
}

// providerUnitPrice converts minor units into a decimal amount.
func providerUnitPrice(li *stripe.LineItem) decimal.Decimal {
	if li.Price != nil {
		return decimal.New(li.Price.UnitAmount, -2)
	}
	if li.Quantity > 0 {
		return decimal.New(li.AmountTotal, -2).Div(decimal.NewFromInt(li.Quantity)).Round(2)
	}
	return decimal.Zero
}
