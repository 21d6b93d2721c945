package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-fulfillment/internal/inventory"
	"github.com/angelmondragon/storefront-fulfillment/internal/lineitems"
	"github.com/angelmondragon/storefront-fulfillment/internal/orders"
	product "github.com/angelmondragon/storefront-fulfillment/internal/products"
	"github.com/angelmondragon/storefront-fulfillment/internal/reservations"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubResolver struct {
	items []lineitems.LineItem
	got   lineitems.Checkout
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, c lineitems.Checkout) []lineitems.LineItem {
	s.calls++
	s.got = c
	return s.items
}

type stubReconciler struct {
	got []lineitems.LineItem
	res inventory.Result
}

func (s *stubReconciler) Reconcile(_ context.Context, items []lineitems.LineItem) inventory.Result {
	s.got = items
	return s.res
}

type stubReleaser struct {
	sessions []string
}

func (s *stubReleaser) Release(_ context.Context, sessionID string) {
	s.sessions = append(s.sessions, sessionID)
}

type stubPersister struct {
	req   *orders.PersistRequest
	err   error
	calls int
}

func (s *stubPersister) Persist(_ context.Context, req orders.PersistRequest) (*models.Order, error) {
	s.calls++
	s.req = &req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{}, nil
}

type harness struct {
	resolver   *stubResolver
	reconciler *stubReconciler
	releaser   *stubReleaser
	persister  *stubPersister
	service    *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		resolver:   &stubResolver{},
		reconciler: &stubReconciler{},
		releaser:   &stubReleaser{},
		persister:  &stubPersister{},
	}
	svc, err := NewService(ServiceParams{
		Resolver:     h.resolver,
		Reconciler:   h.reconciler,
		Reservations: h.releaser,
		Orders:       h.persister,
		Logger:       testLogger(),
	})
	require.NoError(t, err)
	h.service = svc
	return h
}

func checkoutEvent(t *testing.T, session map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return &stripe.Event{
		ID:      "evt_test_1",
		Type:    stripe.EventTypeCheckoutSessionCompleted,
		Created: time.Date(2026, 10, 13, 15, 0, 0, 0, time.UTC).Unix(),
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestServiceRunsPipelineInOrder(t *testing.T) {
	h := newHarness(t)
	h.resolver.items = []lineitems.LineItem{{ProductID: "p-1", Name: "Tomatoes", Quantity: 2, UnitPrice: decimal.NewFromInt(4)}}
	h.reconciler.res = inventory.Result{Reconciled: 1}

	event := checkoutEvent(t, map[string]any{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_status": "paid",
		"amount_total":   800,
		"customer_details": map[string]any{
			"name":  "Ada Lovelace",
			"email": "ada@example.com",
			"phone": "+15550100",
		},
		"metadata": map[string]any{
			"items":      `[{"id":"p-1","name":"Tomatoes","quantity":2,"price":4}]`,
			"item_count": "2",
			"source":     "web",
		},
	})

	require.NoError(t, h.service.HandleEvent(context.Background(), event))

	assert.Equal(t, "cs_test_1", h.resolver.got.SessionID)
	assert.Equal(t, h.resolver.items, h.reconciler.got)
	assert.Equal(t, []string{"cs_test_1"}, h.releaser.sessions)

	require.NotNil(t, h.persister.req)
	req := h.persister.req
	assert.Equal(t, "evt_test_1", req.EventID)
	assert.Equal(t, "cs_test_1", req.CheckoutSessionID)
	assert.Equal(t, "Ada Lovelace", req.Customer.Name)
	assert.Equal(t, "ada@example.com", req.Customer.Email)
	require.NotNil(t, req.Customer.Phone)
	assert.Equal(t, "+15550100", *req.Customer.Phone)
	assert.True(t, req.TotalAmount.Equal(decimal.RequireFromString("8.00")))
	assert.Equal(t, 2, req.ItemCountHint)
	assert.Equal(t, enums.PaymentStatusPaid, req.PaymentStatus)
	assert.Equal(t, event.Created, req.EventTime.Unix())
	assert.Equal(t, "web", req.Metadata["source"])
	assert.NotContains(t, req.Metadata, "items")
}

func TestServiceCustomerMetadataFallbacks(t *testing.T) {
	h := newHarness(t)
	event := checkoutEvent(t, map[string]any{
		"id":             "cs_test_2",
		"payment_status": "paid",
		"amount_total":   1250,
		"metadata": map[string]any{
			"customer_name":  "Grace Hopper",
			"customer_email": "grace@example.com",
			"customer_phone": "555-0199",
		},
	})

	require.NoError(t, h.service.HandleEvent(context.Background(), event))
	req := h.persister.req
	require.NotNil(t, req)
	assert.Equal(t, "Grace Hopper", req.Customer.Name)
	assert.Equal(t, "grace@example.com", req.Customer.Email)
	require.NotNil(t, req.Customer.Phone)
	assert.Equal(t, "555-0199", *req.Customer.Phone)
	assert.True(t, req.TotalAmount.Equal(decimal.RequireFromString("12.50")))
}

func TestServiceAbsorbsDownstreamFailures(t *testing.T) {
	h := newHarness(t)
	h.reconciler.res = inventory.Result{Failed: 1, Err: errors.New("db down")}
	h.persister.err = errors.New("write failed")

	event := checkoutEvent(t, map[string]any{"id": "cs_test_3", "payment_status": "paid"})
	require.NoError(t, h.service.HandleEvent(context.Background(), event))
	assert.Equal(t, 1, h.persister.calls)
	assert.Len(t, h.releaser.sessions, 1)
}

func TestServiceSkipsUnpaidAndOtherEvents(t *testing.T) {
	h := newHarness(t)

	unpaid := checkoutEvent(t, map[string]any{"id": "cs_test_4", "payment_status": "unpaid"})
	require.NoError(t, h.service.HandleEvent(context.Background(), unpaid))

	other := &stripe.Event{ID: "evt_other", Type: stripe.EventTypeInvoicePaid, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	require.NoError(t, h.service.HandleEvent(context.Background(), other))

	assert.Zero(t, h.resolver.calls)
	assert.Zero(t, h.persister.calls)
}

func TestServiceRejectsUndecodablePayload(t *testing.T) {
	h := newHarness(t)
	event := &stripe.Event{
		ID:   "evt_bad",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: []byte(`{"id":`)},
	}
	require.Error(t, h.service.HandleEvent(context.Background(), event))
	require.Error(t, h.service.HandleEvent(context.Background(), &stripe.Event{}))
	assert.Zero(t, h.persister.calls)
}

func TestServiceEndToEndOnSQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	logg := testLogger()

	products := product.NewRepository(conn)
	tomatoes, err := products.Create(ctx, &models.Product{Name: "Tomatoes", InventoryCount: 5})
	require.NoError(t, err)

	orderRepo := orders.NewRepository(conn)
	coordinator, err := orders.NewCoordinator(orders.CoordinatorParams{
		Store:    orderRepo,
		Logger:   logg,
		Location: time.UTC,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Resolver:     lineitems.NewResolver(logg, lineitems.NewMetadataStrategy(logg)),
		Reconciler:   inventory.NewReconciler(products, nil, logg, inventory.Config{StoreTimeout: time.Second}),
		Reservations: reservations.NewNotifier("", 0, logg),
		Orders:       coordinator,
		Logger:       logg,
	})
	require.NoError(t, err)

	items, _ := json.Marshal([]map[string]any{{"id": tomatoes.ID.String(), "name": "Tomatoes", "quantity": 2, "price": 4}})
	event := checkoutEvent(t, map[string]any{
		"id":               "cs_test_e2e",
		"payment_status":   "paid",
		"amount_total":     800,
		"customer_details": map[string]any{"name": "Ada", "email": "ada@example.com"},
		"metadata":         map[string]any{"items": string(items)},
	})
	require.NoError(t, svc.HandleEvent(ctx, event))

	stock, err := products.FindByID(ctx, tomatoes.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stock.InventoryCount)

	var stored []models.Order
	require.NoError(t, conn.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, "cs_test_e2e", stored[0].CheckoutSessionID())
	assert.Equal(t, "2026-10-16", stored[0].PickupWeekStart.Format(models.PickupDateLayout))
	require.Len(t, stored[0].Items, 1)
	assert.Equal(t, tomatoes.ID.String(), stored[0].Items[0].ID)
	assert.Len(t, stored[0].PickupCode(), 6)
}

func TestServiceFulfillsDelayedPaymentOnceSettled(t *testing.T) {
	h := newHarness(t)
	h.resolver.items = []lineitems.LineItem{{ProductID: "p-1", Name: "Bread", Quantity: 1, UnitPrice: decimal.NewFromInt(6)}}

	completed := checkoutEvent(t, map[string]any{
		"id":             "cs_async",
		"payment_status": "unpaid",
		"amount_total":   600,
	})
	require.NoError(t, h.service.HandleEvent(context.Background(), completed))
	assert.Zero(t, h.resolver.calls)
	assert.Zero(t, h.persister.calls)

	succeeded := checkoutEvent(t, map[string]any{
		"id":             "cs_async",
		"payment_status": "paid",
		"amount_total":   600,
	})
	succeeded.ID = "evt_test_async"
	succeeded.Type = stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded
	require.NoError(t, h.service.HandleEvent(context.Background(), succeeded))

	require.Equal(t, 1, h.persister.calls)
	assert.Equal(t, "cs_async", h.persister.req.CheckoutSessionID)
	assert.Equal(t, "evt_test_async", h.persister.req.EventID)
	assert.Equal(t, enums.PaymentStatusPaid, h.persister.req.PaymentStatus)
	assert.Equal(t, []string{"cs_async"}, h.releaser.sessions)
}

func TestServiceFulfillsEventTypes(t *testing.T) {
	assert.True(t, Fulfills(stripe.EventTypeCheckoutSessionCompleted))
	assert.True(t, Fulfills(stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded))
	assert.False(t, Fulfills(stripe.EventTypeCheckoutSessionAsyncPaymentFailed))
	assert.False(t, Fulfills(stripe.EventTypeCheckoutSessionExpired))
}

func TestServiceKeepsAllItemsWhenOneReconcileFails(t *testing.T) {
	h := newHarness(t)
	h.resolver.items = []lineitems.LineItem{
		{ProductID: "p-1", Name: "Tomatoes", Quantity: 1, UnitPrice: decimal.NewFromInt(4)},
		{ProductID: "p-2", Name: "Basil", Quantity: 1, UnitPrice: decimal.NewFromInt(2)},
		{ProductID: "p-3", Name: "Garlic", Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
	}
	h.reconciler.res = inventory.Result{Reconciled: 2, Failed: 1, Err: errors.New("product p-2: lookup failed")}

	event := checkoutEvent(t, map[string]any{"id": "cs_partial", "payment_status": "paid", "amount_total": 700})
	require.NoError(t, h.service.HandleEvent(context.Background(), event))

	require.NotNil(t, h.persister.req)
	assert.Equal(t, h.resolver.items, h.persister.req.Items)
}

// lookupFailingStore fails reads for one product and delegates the rest.
type lookupFailingStore struct {
	*product.Repository
	failID uuid.UUID
}

func (s lookupFailingStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == s.failID {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product lookup failed")
	}
	return s.Repository.FindByID(ctx, id)
}

func TestServicePartialReconcileFailureOnSQLite(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	logg := testLogger()

	products := product.NewRepository(conn)
	var created []*models.Product
	for _, name := range []string{"Tomatoes", "Basil", "Garlic"} {
		p, err := products.Create(ctx, &models.Product{Name: name, InventoryCount: 5})
		require.NoError(t, err)
		created = append(created, p)
	}

	coordinator, err := orders.NewCoordinator(orders.CoordinatorParams{
		Store:    orders.NewRepository(conn),
		Logger:   logg,
		Location: time.UTC,
	})
	require.NoError(t, err)

	store := lookupFailingStore{Repository: products, failID: created[1].ID}
	svc, err := NewService(ServiceParams{
		Resolver:     lineitems.NewResolver(logg, lineitems.NewMetadataStrategy(logg)),
		Reconciler:   inventory.NewReconciler(store, nil, logg, inventory.Config{StoreTimeout: time.Second}),
		Reservations: reservations.NewNotifier("", 0, logg),
		Orders:       coordinator,
		Logger:       logg,
	})
	require.NoError(t, err)

	var entries []map[string]any
	for _, p := range created {
		entries = append(entries, map[string]any{"id": p.ID.String(), "name": p.Name, "quantity": 2, "price": 1})
	}
	items, err := json.Marshal(entries)
	require.NoError(t, err)

	event := checkoutEvent(t, map[string]any{
		"id":               "cs_test_partial",
		"payment_status":   "paid",
		"amount_total":     600,
		"customer_details": map[string]any{"name": "Ada", "email": "ada@example.com"},
		"metadata":         map[string]any{"items": string(items)},
	})
	require.NoError(t, svc.HandleEvent(ctx, event))

	for i, want := range []int{3, 5, 3} {
		stock, err := products.FindByID(ctx, created[i].ID)
		require.NoError(t, err)
		assert.Equal(t, want, stock.InventoryCount, created[i].Name)
	}

	var stored []models.Order
	require.NoError(t, conn.Find(&stored).Error)
	require.Len(t, stored, 1)
	require.Len(t, stored[0].Items, 3)
	for i, p := range created {
		assert.Equal(t, p.ID.String(), stored[0].Items[i].ID)
	}
}
