package product

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/repo"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

// Repository reads and updates catalog products.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.DB(ctx).Create(product).Error; err != nil {
		return nil, repo.Translate(err, "create product")
	}
	return product, nil
}

// FindByID loads the product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, repo.Translate(err, "find product")
	}
	return &product, nil
}

// FindByName loads the oldest product whose name matches exactly.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).
		Where("name = ?", name).
		Order("created_at ASC").
		First(&product).Error; err != nil {
		return nil, repo.Translate(err, "find product by name")
	}
	return &product, nil
}

// CompareAndSetInventory writes next only if the stored count still equals expected.
// It reports whether the row was updated.
func (r *Repository) CompareAndSetInventory(ctx context.Context, id uuid.UUID, expected, next int) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ? AND inventory_count = ?", id, expected).
		Updates(map[string]any{"inventory_count": next})
	if res.Error != nil {
		return false, repo.Translate(res.Error, "update product inventory")
	}
	return res.RowsAffected == 1, nil
}
