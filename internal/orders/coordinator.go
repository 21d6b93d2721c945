package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/angelmondragon/storefront-fulfillment/internal/lineitems"
	"github.com/angelmondragon/storefront-fulfillment/internal/pickup"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
	"github.com/angelmondragon/storefront-fulfillment/pkg/types"
)

const (
	FallbackItemID   = "unknown"
	FallbackItemName = "Order Items"

	maxDeadLetterMessage = 1024
)

// Store is the persistence the coordinator writes to.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	InsertDeadLetter(ctx context.Context, entry *models.OrderDeadLetter) error
}

// Recorder receives persistence failure counts.
type Recorder interface {
	IncPersistFailure()
	IncDeadLetter()
}

type Customer struct {
	Name  string
	Email string
	Phone *string
}

// PersistRequest carries everything needed to write one order.
type PersistRequest struct {
	EventID           string
	CheckoutSessionID string
	Customer          Customer
	Items             []lineitems.LineItem
	TotalAmount       decimal.Decimal
	// ItemCountHint sizes the fallback item when no line items were resolved.
	ItemCountHint   int
	PaymentStatus   enums.PaymentStatus
	PickupWeekStart *time.Time
	EventTime       time.Time
	Metadata        map[string]any
}

type CoordinatorParams struct {
	Store        Store
	Metrics      Recorder
	Logger       *logger.Logger
	Location     *time.Location
	StoreTimeout time.Duration
	CodeFunc     func() (string, error)
}

// Coordinator builds order records and writes them, falling back to a dead letter
// when the write fails.
type Coordinator struct {
	store        Store
	metrics      Recorder
	logg         *logger.Logger
	loc          *time.Location
	storeTimeout time.Duration
	newCode      func() (string, error)
}

func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order store required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	c := &Coordinator{
		store:        params.Store,
		metrics:      params.Metrics,
		logg:         params.Logger,
		loc:          params.Location,
		storeTimeout: params.StoreTimeout,
		newCode:      params.CodeFunc,
	}
	if c.metrics == nil {
		c.metrics = metrics.NewWebhookMetrics(nil)
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.newCode == nil {
		c.newCode = NewPickupCode
	}
	return c, nil
}

// Persist writes the order. On failure a dead letter is recorded and a CodeDependency
// error is returned; callers treat it as non-fatal.
func (c *Coordinator) Persist(ctx context.Context, req PersistRequest) (*models.Order, error) {
	order := c.Build(ctx, req)

	ctx = c.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"pickup_code": order.PickupCode(),
		"item_count":  len(order.Items),
	})

	wctx, cancel := c.storeContext(ctx)
	defer cancel()

	created, err := c.store.CreateOrder(wctx, order)
	if err != nil {
		c.metrics.IncPersistFailure()
		c.logg.Error(c.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "order persist failed", err)
		c.deadLetter(ctx, req, order, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	c.logg.Info(ctx, "order persisted")
	return created, nil
}

// Build assembles the order record without writing it.
func (c *Coordinator) Build(ctx context.Context, req PersistRequest) *models.Order {
	items := make(types.OrderItems, 0, len(req.Items))
	for _, li := range req.Items {
		items = append(items, types.OrderItem{
			ID:       li.ProductID,
			Name:     li.Name,
			Quantity: li.Quantity,
			Price:    li.UnitPrice,
		})
	}
	if len(items) > 0 {
		if subtotal := items.Subtotal(); !subtotal.Equal(req.TotalAmount) {
			c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
				"items_subtotal": subtotal.StringFixed(2),
				"total_amount":   req.TotalAmount.StringFixed(2),
			}), "line item subtotal differs from paid total")
		}
	} else {
		qty := req.ItemCountHint
		if qty < 1 {
			qty = 1
		}
		c.logg.Warn(ctx, "no line items resolved, writing fallback item")
		items = append(items, types.OrderItem{
			ID:       FallbackItemID,
			Name:     FallbackItemName,
			Quantity: qty,
			Price:    req.TotalAmount,
		})
	}

	weekStart := c.weekStart(req)

	code, err := c.newCode()
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "pickup code unavailable")
	}

	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = enums.PaymentStatusPaid
	}

	meta := types.JSONMap(req.Metadata).Merge(map[string]any{
		models.OrderMetaPaymentStatus:     paymentStatus.String(),
		models.OrderMetaOrderType:         string(enums.OrderTypePickup),
		models.OrderMetaPickupCode:        code,
		models.OrderMetaPickupWeekStart:   weekStart.Format(models.PickupDateLayout),
		models.OrderMetaCheckoutSessionID: req.CheckoutSessionID,
	})

	return &models.Order{
		ID:              uuid.New(),
		CustomerName:    req.Customer.Name,
		CustomerEmail:   req.Customer.Email,
		CustomerPhone:   req.Customer.Phone,
		Items:           items,
		TotalAmount:     req.TotalAmount.Round(2),
		Status:          enums.OrderStatusPending,
		PickupWeekStart: weekStart,
		Metadata:        meta,
	}
}

func (c *Coordinator) weekStart(req PersistRequest) time.Time {
	if req.PickupWeekStart != nil {
		return *req.PickupWeekStart
	}
	at := req.EventTime
	if at.IsZero() {
		at = time.Now()
	}
	return pickup.WeekStart(at.In(c.loc))
}

func (c *Coordinator) deadLetter(ctx context.Context, req PersistRequest, order *models.Order, cause error) {
	payload, err := json.Marshal(map[string]any{
		"event_id": req.EventID,
		"order":    order,
	})
	if err != nil {
		c.logg.Error(ctx, "order dead letter payload encoding failed", err)
		payload = []byte(`{}`)
	}

	reason := enums.DeadLetterReasonPersistFailed
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = enums.DeadLetterReasonTimeout
	}

	entry := &models.OrderDeadLetter{
		EventID:      req.EventID,
		Payload:      datatypes.JSON(payload),
		ErrorReason:  reason,
		ErrorMessage: truncateMessage(cause),
		FailedAt:     time.Now().UTC(),
	}
	if req.CheckoutSessionID != "" {
		sid := req.CheckoutSessionID
		entry.CheckoutSessionID = &sid
	}

	// the order write may have failed on our deadline; the dead letter gets its own
	dctx, cancel := c.storeContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := c.store.InsertDeadLetter(dctx, entry); err != nil {
		c.logg.Error(c.logg.WithField(ctx, "dead_letter_payload", string(payload)), "order dead letter write failed", err)
		return
	}
	c.metrics.IncDeadLetter()
	c.logg.Warn(c.logg.WithField(ctx, "error_reason", reason), "order dead letter recorded")
}

func (c *Coordinator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.storeTimeout)
}

func truncateMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxDeadLetterMessage {
		cut := maxDeadLetterMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return &msg
}
