// Package inventory decrements shared stock for purchased line items.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-fulfillment/internal/lineitems"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
)

const defaultMaxAttempts = 3

// ProductStore is the product persistence the reconciler needs.
type ProductStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CompareAndSetInventory(ctx context.Context, id uuid.UUID, expected, next int) (bool, error)
}

// Recorder receives per-item outcomes.
type Recorder interface {
	IncInventory(result string)
}

type Config struct {
	MaxAttempts  int
	StoreTimeout time.Duration
}

// Result summarises one reconciliation pass. Err joins per-item failures for logging.
type Result struct {
	Reconciled int
	Skipped    int
	Mismatched int
	Failed     int
	Err        error
}

type Reconciler struct {
	store   ProductStore
	metrics Recorder
	logg    *logger.Logger
	cfg     Config
}

func NewReconciler(store ProductStore, recorder Recorder, logg *logger.Logger, cfg Config) *Reconciler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if recorder == nil {
		recorder = metrics.NewWebhookMetrics(nil)
	}
	return &Reconciler{store: store, metrics: recorder, logg: logg, cfg: cfg}
}

// Reconcile decrements inventory for each item independently. A failure on one item
// never stops the others and nothing is returned to the caller as an error.
func (r *Reconciler) Reconcile(ctx context.Context, items []lineitems.LineItem) Result {
	var res Result
	for _, item := range items {
		ictx := r.logg.WithFields(ctx, map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
		})

		outcome, err := r.reconcileItem(ictx, item)
		r.metrics.IncInventory(outcome)
		switch outcome {
		case metrics.InventoryReconciled:
			res.Reconciled++
		case metrics.InventorySkipped:
			res.Skipped++
		case metrics.InventoryMismatched:
			res.Mismatched++
		default:
			res.Failed++
		}
		if err != nil {
			res.Err = multierr.Append(res.Err, fmt.Errorf("product %s: %w", item.ProductID, err))
		}
	}
	return res
}

func (r *Reconciler) reconcileItem(ctx context.Context, item lineitems.LineItem) (string, error) {
	id, err := uuid.Parse(item.ProductID)
	if err != nil {
		r.logg.Warn(ctx, "skipping inventory for unknown product id")
		return metrics.InventorySkipped, nil
	}

	var (
		product  *models.Product
		newCount int
		written  bool
	)
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		product, err = r.find(ctx, id)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				r.logg.Warn(ctx, "skipping inventory for missing product")
				return metrics.InventorySkipped, nil
			}
			r.logg.Error(ctx, "inventory read failed", err)
			return metrics.InventoryFailed, err
		}

		newCount = product.InventoryCount - item.Quantity
		if newCount < 0 {
			r.logg.Warn(r.logg.WithField(ctx, "inventory_count", product.InventoryCount), "inventory oversold, clamping to zero")
			newCount = 0
		}

		written, err = r.compareAndSet(ctx, id, product.InventoryCount, newCount)
		if err != nil {
			r.logg.Error(ctx, "inventory write failed", err)
			return metrics.InventoryFailed, err
		}
		if written {
			break
		}
		r.logg.Debug(r.logg.WithField(ctx, "attempt", attempt), "inventory changed concurrently, retrying")
	}
	if !written {
		err := pkgerrors.New(pkgerrors.CodeConflict, "inventory update lost to concurrent writers")
		r.logg.Error(r.logg.WithField(ctx, "attempts", r.cfg.MaxAttempts), "inventory write abandoned", err)
		return metrics.InventoryFailed, err
	}

	if _, err := product.MetadataView(); err != nil {
		r.logg.Warn(ctx, "product metadata is not an object, inventory mirror skipped")
	}

	stored, err := r.find(ctx, id)
	if err != nil {
		r.logg.Error(ctx, "inventory verification read failed", err)
		return metrics.InventoryFailed, err
	}
	if stored.InventoryCount != newCount {
		mismatch := pkgerrors.New(pkgerrors.CodeMismatch, "stored inventory does not match written value").
			WithDetails(map[string]any{"expected": newCount, "actual": stored.InventoryCount})
		r.logg.Error(r.logg.WithFields(ctx, map[string]any{
			"expected": newCount,
			"actual":   stored.InventoryCount,
		}), "inventory verification mismatch", mismatch)
		return metrics.InventoryMismatched, mismatch
	}

	r.logg.Info(r.logg.WithField(ctx, "inventory_count", newCount), "inventory reconciled")
	return metrics.InventoryReconciled, nil
}

func (r *Reconciler) find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	sctx, cancel := r.storeContext(ctx)
	defer cancel()
	return r.store.FindByID(sctx, id)
}

func (r *Reconciler) compareAndSet(ctx context.Context, id uuid.UUID, expected, next int) (bool, error) {
	sctx, cancel := r.storeContext(ctx)
	defer cancel()
	return r.store.CompareAndSetInventory(sctx, id, expected, next)
}

func (r *Reconciler) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.StoreTimeout)
}
