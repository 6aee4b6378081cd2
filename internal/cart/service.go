package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/internal/products"
	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
)

// Service manages the mutable pre-checkout cart. Line prices are
// snapshots of the variant's effective price at add time; checkout
// reprices from the catalog, so a stale snapshot never leaks into an
// order.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, variantID uuid.UUID) (*models.Cart, error)
}

// AddItemInput identifies the variant and quantity to put in the cart.
// An existing line for the same variant is replaced, not accumulated.
type AddItemInput struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type service struct {
	repo       Repository
	catalog    products.Repository
	maxPerLine int
}

// NewService wires a cart service with its repositories.
func NewService(repo Repository, catalog products.Repository, maxPerLine int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if maxPerLine <= 0 {
		maxPerLine = 10
	}
	return &service{repo: repo, catalog: catalog, maxPerLine: maxPerLine}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.GetOrCreateByUser(ctx, userID)
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Quantity < 1 || input.Quantity > s.maxPerLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity must be between 1 and %d", s.maxPerLine))
	}

	variant, err := s.catalog.GetVariant(ctx, input.VariantID)
	if err != nil {
		return nil, err
	}
	if variant.IsBlocked {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "variant is not available")
	}
	product, err := s.catalog.GetProduct(ctx, variant.ProductID)
	if err != nil {
		return nil, err
	}
	if product.IsBlocked {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is not available")
	}
	if variant.Stock < input.Quantity {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock,
			fmt.Sprintf("only %d units available", variant.Stock))
	}

	cartRow, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	unit := variant.EffectivePricePaise()
	item := models.CartItem{
		ID:             uuid.New(),
		CartID:         cartRow.ID,
		ProductID:      variant.ProductID,
		VariantID:      variant.ID,
		Quantity:       input.Quantity,
		UnitPricePaise: unit,
		LineTotalPaise: unit * input.Quantity,
	}
	if err := s.repo.UpsertItem(ctx, &item); err != nil {
		return nil, err
	}
	return s.repo.GetByUser(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, variantID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil || variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and variant id are required")
	}
	cartRow, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveItem(ctx, cartRow.ID, variantID); err != nil {
		return nil, err
	}
	return s.repo.GetByUser(ctx, userID)
}
