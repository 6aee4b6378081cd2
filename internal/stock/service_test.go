package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.ProductVariant{}); err != nil {
		t.Fatalf("migrate variants: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedVariant(t *testing.T, db *gorm.DB, stock int) uuid.UUID {
	t.Helper()
	variant := models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  uuid.New(),
		SKU:        "SKU-" + uuid.NewString()[:8],
		PricePaise: 10000,
		Stock:      stock,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant.ID
}

func variantStock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var variant models.ProductVariant
	if err := db.First(&variant, "id = ?", id).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return variant.Stock
}

func TestReserveDecrementsAllLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	variantA := seedVariant(t, db, 5)
	variantB := seedVariant(t, db, 2)

	err := svc.Reserve(ctx, db, []ReservationLine{
		{VariantID: variantA, Qty: 3},
		{VariantID: variantB, Qty: 2},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if got := variantStock(t, db, variantA); got != 2 {
		t.Fatalf("expected variant a stock 2, got %d", got)
	}
	if got := variantStock(t, db, variantB); got != 0 {
		t.Fatalf("expected variant b stock 0, got %d", got)
	}
}

func TestReserveRollsBackOnShortLine(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	variantA := seedVariant(t, db, 5)
	variantB := seedVariant(t, db, 1)

	err := svc.Reserve(ctx, db, []ReservationLine{
		{VariantID: variantA, Qty: 4},
		{VariantID: variantB, Qty: 2},
	})
	if err == nil {
		t.Fatal("expected out of stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := variantStock(t, db, variantA); got != 5 {
		t.Fatalf("expected variant a restored to 5, got %d", got)
	}
	if got := variantStock(t, db, variantB); got != 1 {
		t.Fatalf("expected variant b untouched at 1, got %d", got)
	}
}

func TestReserveBlockedVariantFails(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	variantID := seedVariant(t, db, 5)
	if err := db.Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("is_blocked", true).Error; err != nil {
		t.Fatalf("block variant: %v", err)
	}

	err := svc.Reserve(ctx, db, []ReservationLine{{VariantID: variantID, Qty: 1}})
	if err == nil {
		t.Fatal("expected blocked variant to fail reservation")
	}
	if got := variantStock(t, db, variantID); got != 5 {
		t.Fatalf("expected stock untouched at 5, got %d", got)
	}
}

func TestReserveSingleWinnerOnLastUnit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	variantID := seedVariant(t, db, 1)
	line := []ReservationLine{{VariantID: variantID, Qty: 1}}

	first := svc.Reserve(ctx, db, line)
	second := svc.Reserve(ctx, db, line)

	if first != nil {
		t.Fatalf("expected first reservation to win: %v", first)
	}
	if second == nil {
		t.Fatal("expected second reservation to lose")
	}
	if typed := pkgerrors.As(second); typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("unexpected error: %v", second)
	}
	if got := variantStock(t, db, variantID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestRestorePutsUnitsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	variantID := seedVariant(t, db, 3)
	lines := []ReservationLine{{VariantID: variantID, Qty: 2}}

	if err := svc.Reserve(ctx, db, lines); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Restore(ctx, db, lines); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := variantStock(t, db, variantID); got != 3 {
		t.Fatalf("expected stock back at 3, got %d", got)
	}
}

func TestReserveValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	cases := []struct {
		name  string
		lines []ReservationLine
	}{
		{name: "empty", lines: nil},
		{name: "zero qty", lines: []ReservationLine{{VariantID: uuid.New(), Qty: 0}}},
		{name: "nil variant", lines: []ReservationLine{{Qty: 1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Reserve(ctx, db, tc.lines)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
