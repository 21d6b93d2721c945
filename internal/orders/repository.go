package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/repo"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

// Repository persists orders and their dead letters.
type Repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.DB(ctx).Create(order).Error; err != nil {
		return nil, repo.Translate(err, "create order")
	}
	return order, nil
}

func (r *Repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, repo.Translate(err, "find order")
	}
	return &order, nil
}

func (r *Repository) InsertDeadLetter(ctx context.Context, entry *models.OrderDeadLetter) error {
	if err := r.DB(ctx).Create(entry).Error; err != nil {
		return repo.Translate(err, "insert order dead letter")
	}
	return nil
}

// ListDeadLetters returns the newest dead letters first.
func (r *Repository) ListDeadLetters(ctx context.Context, limit int) ([]models.OrderDeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.OrderDeadLetter
	if err := r.DB(ctx).Order("failed_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, repo.Translate(err, "list order dead letters")
	}
	return entries, nil
}
