package stripewebhook

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-fulfillment/internal/inventory"
	"github.com/angelmondragon/storefront-fulfillment/internal/lineitems"
	"github.com/angelmondragon/storefront-fulfillment/internal/orders"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// Checkout metadata keys read as fallbacks when customer_details is incomplete.
const (
	metaCustomerName  = "customer_name"
	metaCustomerEmail = "customer_email"
	metaCustomerPhone = "customer_phone"
	metaItemCount     = "item_count"
)

type lineItemResolver interface {
	Resolve(ctx context.Context, checkout lineitems.Checkout) []lineitems.LineItem
}

type inventoryReconciler interface {
	Reconcile(ctx context.Context, items []lineitems.LineItem) inventory.Result
}

type reservationReleaser interface {
	Release(ctx context.Context, sessionID string)
}

type orderPersister interface {
	Persist(ctx context.Context, req orders.PersistRequest) (*models.Order, error)
}

type ServiceParams struct {
	Resolver     lineItemResolver
	Reconciler   inventoryReconciler
	Reservations reservationReleaser
	Orders       orderPersister
	Logger       *logger.Logger
}

// Service runs the fulfillment pipeline for completed checkout sessions.
type Service struct {
	resolver     lineItemResolver
	reconciler   inventoryReconciler
	reservations reservationReleaser
	orders       orderPersister
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "line item resolver required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory reconciler required")
	}
	if params.Reservations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation releaser required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order persister required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		resolver:     params.Resolver,
		reconciler:   params.Reconciler,
		reservations: params.Reservations,
		orders:       params.Orders,
		logg:         params.Logger,
	}, nil
}

// Fulfills reports whether events of this type run the fulfillment pipeline. Delayed
// payment methods complete the session unpaid and settle with async_payment_succeeded.
func Fulfills(eventType stripe.EventType) bool {
	switch eventType {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return true
	}
	return false
}

// HandleEvent fulfills settled checkout sessions and ignores every other event type.
// Only a payload that cannot be decoded is returned as an error; downstream failures
// are logged and absorbed.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	if !Fulfills(event.Type) {
		s.logg.Debug(s.logg.WithField(ctx, "event_type", string(event.Type)), "ignoring stripe event")
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	ctx = s.logg.WithSessionID(ctx, session.ID)

	if !paymentStatus(session.PaymentStatus).Settled() {
		s.logg.Info(s.logg.WithField(ctx, "event_type", string(event.Type)), "checkout not settled yet, awaiting async payment")
		return nil
	}

	s.fulfill(ctx, event, &session)
	return nil
}

func (s *Service) fulfill(ctx context.Context, event *stripe.Event, session *stripe.CheckoutSession) {
	items := s.resolver.Resolve(ctx, lineitems.Checkout{
		SessionID: session.ID,
		Metadata:  session.Metadata,
	})

	res := s.reconciler.Reconcile(ctx, items)
	rctx := s.logg.WithFields(ctx, map[string]any{
		"reconciled": res.Reconciled,
		"skipped":    res.Skipped,
		"mismatched": res.Mismatched,
		"failed":     res.Failed,
	})
	if res.Err != nil {
		s.logg.Error(rctx, "inventory reconciliation incomplete", res.Err)
	} else {
		s.logg.Info(rctx, "inventory reconciled")
	}

	s.reservations.Release(ctx, session.ID)

	req := orders.PersistRequest{
		EventID:           event.ID,
		CheckoutSessionID: session.ID,
		Customer:          customerFromSession(session),
		Items:             items,
		TotalAmount:       decimal.New(session.AmountTotal, -2),
		ItemCountHint:     itemCountHint(session.Metadata),
		PaymentStatus:     paymentStatus(session.PaymentStatus),
		EventTime:         time.Unix(event.Created, 0),
		Metadata:          orderMetadata(session.Metadata),
	}
	if _, err := s.orders.Persist(ctx, req); err != nil {
		s.logg.Error(ctx, "order not persisted, dead letter recorded for recovery", err)
	}
}

func customerFromSession(session *stripe.CheckoutSession) orders.Customer {
	var c orders.Customer
	if d := session.CustomerDetails; d != nil {
		c.Name = strings.TrimSpace(d.Name)
		c.Email = strings.TrimSpace(d.Email)
		if phone := strings.TrimSpace(d.Phone); phone != "" {
			c.Phone = &phone
		}
	}
	if c.Name == "" {
		c.Name = strings.TrimSpace(session.Metadata[metaCustomerName])
	}
	if c.Email == "" {
		c.Email = strings.TrimSpace(session.Metadata[metaCustomerEmail])
	}
	if c.Email == "" {
		c.Email = strings.TrimSpace(session.CustomerEmail)
	}
	if c.Phone == nil {
		if phone := strings.TrimSpace(session.Metadata[metaCustomerPhone]); phone != "" {
			c.Phone = &phone
		}
	}
	return c
}

func itemCountHint(meta map[string]string) int {
	n, err := strconv.Atoi(strings.TrimSpace(meta[metaItemCount]))
	if err != nil {
		return 0
	}
	return n
}

func paymentStatus(status stripe.CheckoutSessionPaymentStatus) enums.PaymentStatus {
	parsed, err := enums.ParsePaymentStatus(string(status))
	if err != nil {
		return enums.PaymentStatusPaid
	}
	return parsed
}

// orderMetadata copies session metadata onto the order, leaving out the item payload.
func orderMetadata(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == lineitems.MetadataItemsKey {
			continue
		}
		out[k] = v
	}
	return out
}
