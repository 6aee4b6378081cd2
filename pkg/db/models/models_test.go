package models

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openModelsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

// The same model set must migrate on sqlite, which rejects postgres
// column defaults.
func TestSqliteAutoMigrateAllModels(t *testing.T) {
	t.Parallel()
	db := openModelsDB(t)
	if err := db.AutoMigrate(
		&Product{}, &ProductVariant{},
		&Cart{}, &CartItem{},
		&Offer{}, &Coupon{}, &CouponRedemption{},
		&Order{}, &OrderItem{},
		&Wallet{}, &WalletTransaction{},
		&UserAddress{}, &OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestCreateAssignsMissingIDs(t *testing.T) {
	t.Parallel()
	db := openModelsDB(t)
	if err := db.AutoMigrate(&Product{}, &ProductVariant{}, &OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	product := Product{
		Name:       "Galaxy Buds",
		CategoryID: uuid.New(),
		Variants: []ProductVariant{
			{SKU: "BUDS-BLK", PricePaise: 499900, Stock: 3},
		},
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.ID == uuid.Nil {
		t.Fatalf("expected product id to be assigned")
	}
	if product.Variants[0].ID == uuid.Nil {
		t.Fatalf("expected variant id to be assigned")
	}

	event := OutboxEvent{
		EventType:     "order_created",
		AggregateType: "order",
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("create outbox event: %v", err)
	}
	if event.ID == uuid.Nil {
		t.Fatalf("expected outbox event id to be assigned")
	}

	preset := uuid.New()
	keep := Product{ID: preset, Name: "Pixel Case", CategoryID: uuid.New()}
	if err := db.Create(&keep).Error; err != nil {
		t.Fatalf("create preset product: %v", err)
	}
	if keep.ID != preset {
		t.Fatalf("expected preset id to be kept, got %s", keep.ID)
	}
}
