package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/internal/products"
	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{}, &models.ProductVariant{},
		&models.Cart{}, &models.CartItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), products.NewRepository(db), 10)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedVariant(t *testing.T, db *gorm.DB, pricePaise, stock int) models.ProductVariant {
	t.Helper()
	product := models.Product{ID: uuid.New(), Name: "Shirt", CategoryID: uuid.New()}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  product.ID,
		SKU:        "SKU-" + uuid.NewString()[:8],
		PricePaise: pricePaise,
		Stock:      stock,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

func TestAddItemSnapshotsPrice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	variant := seedVariant(t, db, 100000, 5)

	got, err := svc.AddItem(ctx, userID, AddItemInput{VariantID: variant.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(got.Items))
	}
	line := got.Items[0]
	if line.UnitPricePaise != 100000 || line.LineTotalPaise != 200000 {
		t.Fatalf("unexpected snapshot: %+v", line)
	}
}

func TestAddItemReplacesExistingLine(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	variant := seedVariant(t, db, 50000, 9)

	if _, err := svc.AddItem(ctx, userID, AddItemInput{VariantID: variant.ID, Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	got, err := svc.AddItem(ctx, userID, AddItemInput{VariantID: variant.ID, Quantity: 5})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(got.Items))
	}
	if got.Items[0].Quantity != 5 || got.Items[0].LineTotalPaise != 250000 {
		t.Fatalf("expected replaced line, got %+v", got.Items[0])
	}
}

func TestAddItemRejections(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	short := seedVariant(t, db, 10000, 1)
	blocked := seedVariant(t, db, 10000, 5)
	if err := db.Model(&models.ProductVariant{}).
		Where("id = ?", blocked.ID).
		Update("is_blocked", true).Error; err != nil {
		t.Fatalf("block variant: %v", err)
	}

	cases := []struct {
		name  string
		input AddItemInput
		code  pkgerrors.Code
	}{
		{name: "too many units", input: AddItemInput{VariantID: short.ID, Quantity: 11}, code: pkgerrors.CodeValidation},
		{name: "zero quantity", input: AddItemInput{VariantID: short.ID, Quantity: 0}, code: pkgerrors.CodeValidation},
		{name: "beyond stock", input: AddItemInput{VariantID: short.ID, Quantity: 2}, code: pkgerrors.CodeOutOfStock},
		{name: "blocked variant", input: AddItemInput{VariantID: blocked.ID, Quantity: 1}, code: pkgerrors.CodeConflict},
		{name: "unknown variant", input: AddItemInput{VariantID: uuid.New(), Quantity: 1}, code: pkgerrors.CodeNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddItem(ctx, userID, tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestRemoveItem(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	variant := seedVariant(t, db, 10000, 5)

	if _, err := svc.AddItem(ctx, userID, AddItemInput{VariantID: variant.ID, Quantity: 1}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	got, err := svc.RemoveItem(ctx, userID, variant.ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(got.Items))
	}
}
