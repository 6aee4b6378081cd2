package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
)

// Repository manages the per-user cart and its lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	UpsertItem(ctx context.Context, item *models.CartItem) error
	RemoveItem(ctx context.Context, cartID, variantID uuid.UUID) error
	// Clear removes every line; the cart row itself stays.
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cart repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := r.GetByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	created := models.Cart{ID: uuid.New(), UserID: userID}
	if cerr := r.db.WithContext(ctx).Create(&created).Error; cerr != nil {
		return nil, cerr
	}
	return &created, nil
}

func (r *repository) UpsertItem(ctx context.Context, item *models.CartItem) error {
	var existing models.CartItem
	err := r.db.WithContext(ctx).
		First(&existing, "cart_id = ? AND variant_id = ?", item.CartID, item.VariantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(item).Error
	}
	if err != nil {
		return err
	}
	item.ID = existing.ID
	return r.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"quantity":         item.Quantity,
		"unit_price_paise": item.UnitPricePaise,
		"line_total_paise": item.LineTotalPaise,
	}).Error
}

func (r *repository) RemoveItem(ctx context.Context, cartID, variantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) Clear(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}
