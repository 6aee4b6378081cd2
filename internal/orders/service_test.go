package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/internal/coupons"
	"github.com/aravindkp/shopsphere-backend/internal/stock"
	"github.com/aravindkp/shopsphere-backend/internal/wallet"
	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
	"github.com/aravindkp/shopsphere-backend/pkg/outbox"
	"github.com/aravindkp/shopsphere-backend/pkg/types"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type harness struct {
	db     *gorm.DB
	svc    Service
	repo   Repository
	wallet wallet.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{}, &models.ProductVariant{},
		&models.Coupon{}, &models.CouponRedemption{},
		&models.Order{}, &models.OrderItem{},
		&models.Wallet{}, &models.WalletTransaction{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := NewRepository(db)
	stockSvc, err := stock.NewService(stock.NewRepository(db), nil)
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	walletSvc, err := wallet.NewService(wallet.NewRepository(db))
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}
	events := outbox.NewService(outbox.NewRepository(db), nil)

	svc, err := NewService(gormRunner{db: db}, repo, stockSvc, walletSvc, coupons.NewRepository(db), events, nil, nil, 10)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	return &harness{db: db, svc: svc, repo: repo, wallet: walletSvc}
}

type seedOpts struct {
	method   enums.PaymentMethod
	payment  enums.PaymentStatus
	status   enums.OrderStatus
	quantity int
	final    int
	coupon   string
}

func (h *harness) seedOrder(t *testing.T, userID uuid.UUID, opts seedOpts) *models.Order {
	t.Helper()
	if opts.quantity == 0 {
		opts.quantity = 2
	}
	if opts.final == 0 {
		opts.final = 90000
	}

	variant := models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  uuid.New(),
		SKU:        "SKU-" + uuid.NewString()[:8],
		PricePaise: 100000,
		Stock:      3,
	}
	if err := h.db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	order := models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260314-" + strings.ToUpper(uuid.NewString()[:8]),
		UserID:      userID,
		ShippingAddress: types.Address{
			Name: "Asha", Phone: "9000000000", Line1: "12 MG Road",
			City: "Kochi", State: "KL", PostalCode: "682001", Country: "IN",
		},
		PaymentMethod: opts.method,
		PaymentStatus: opts.payment,
		Status:        opts.status,
		Items: []models.OrderItem{{
			ID:                  uuid.New(),
			ProductID:           variant.ProductID,
			VariantID:           variant.ID,
			Name:                "Shirt",
			Quantity:            opts.quantity,
			BasePricePaise:      100000,
			DiscountPaise:       (100000 - opts.final) * opts.quantity,
			FinalUnitPricePaise: opts.final,
			TotalPaise:          opts.final * opts.quantity,
			CancelStatus:        enums.CancelStatusNotCancelled,
			ReturnStatus:        enums.ReturnStatusNotRequested,
		}},
		SubtotalPaise:   opts.final * opts.quantity,
		GrandTotalPaise: opts.final * opts.quantity,
	}
	if opts.coupon != "" {
		order.CouponCode = &opts.coupon
	}
	if err := h.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func (h *harness) stockOf(t *testing.T, variantID uuid.UUID) int {
	t.Helper()
	var variant models.ProductVariant
	if err := h.db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return variant.Stock
}

func expectStateConflict(t *testing.T, err error) {
	t.Helper()
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestAdvanceStatusSingleStep(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	order := h.seedOrder(t, uuid.New(), seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPending,
		status:  enums.OrderStatusPending,
	})

	got, err := h.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}

	_, err = h.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusOutForDelivery)
	expectStateConflict(t, err)
}

func TestAdvanceStatusBlocksUnpaidPrepaid(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	order := h.seedOrder(t, uuid.New(), seedOpts{
		method:  enums.PaymentMethodRazorpay,
		payment: enums.PaymentStatusPending,
		status:  enums.OrderStatusPending,
	})

	_, err := h.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusConfirmed)
	expectStateConflict(t, err)
}

func TestAdvanceToDeliveredSettlesCOD(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	order := h.seedOrder(t, uuid.New(), seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPending,
		status:  enums.OrderStatusOutForDelivery,
	})

	got, err := h.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", got.Status)
	}
	if got.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected cod payment settled on delivery, got %s", got.PaymentStatus)
	}
	if got.DeliveredAt == nil {
		t.Fatal("expected delivered_at to be set")
	}
}

func TestCancelOrderOnlyFromPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	pending := h.seedOrder(t, uuid.New(), seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPending,
		status:  enums.OrderStatusPending,
	})
	variantID := pending.Items[0].VariantID

	got, err := h.svc.CancelOrder(ctx, pending.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	// COD held stock at placement; cancellation puts the units back
	if stockAfter := h.stockOf(t, variantID); stockAfter != 5 {
		t.Fatalf("expected stock restored to 5, got %d", stockAfter)
	}

	_, err = h.svc.CancelOrder(ctx, pending.ID)
	expectStateConflict(t, err)

	shipped := h.seedOrder(t, uuid.New(), seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPending,
		status:  enums.OrderStatusShipped,
	})
	_, err = h.svc.CancelOrder(ctx, shipped.ID)
	expectStateConflict(t, err)
}

func TestCancelOrderReleasesCouponRedemption(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	coupon := models.Coupon{
		ID:        uuid.New(),
		Code:      "FESTIVE100",
		Type:      enums.CouponTypeFlat,
		Value:     10000,
		StartAt:   time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
		IsEnabled: true,
	}
	if err := h.db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	order := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPending,
		status:  enums.OrderStatusPending,
		coupon:  "FESTIVE100",
	})
	redemption := models.CouponRedemption{ID: uuid.New(), CouponID: coupon.ID, UserID: userID}
	if err := h.db.Create(&redemption).Error; err != nil {
		t.Fatalf("seed redemption: %v", err)
	}

	got, err := h.svc.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	// the coupon is spendable again
	var remaining int64
	h.db.Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND user_id = ?", coupon.ID, userID).
		Count(&remaining)
	if remaining != 0 {
		t.Fatalf("expected redemption released, got %d rows", remaining)
	}
}

func TestCancelItemRefundsPrepaid(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	order := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodWallet,
		payment: enums.PaymentStatusPaid,
		status:  enums.OrderStatusConfirmed,
	})
	item := order.Items[0]
	lineValue := item.FinalUnitPricePaise * item.Quantity

	got, err := h.svc.CancelItem(ctx, userID, order.ID, item.ID)
	if err != nil {
		t.Fatalf("cancel item: %v", err)
	}

	if got.Items[0].CancelStatus != enums.CancelStatusCancelled {
		t.Fatalf("expected item cancelled, got %s", got.Items[0].CancelStatus)
	}
	if got.Items[0].RefundPaise != lineValue {
		t.Fatalf("expected refund %d, got %d", lineValue, got.Items[0].RefundPaise)
	}
	if got.GrandTotalPaise != order.GrandTotalPaise-lineValue {
		t.Fatalf("expected grand total reduced by %d, got %d", lineValue, got.GrandTotalPaise)
	}
	// single item, so the whole order collapses
	if got.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected order cancelled, got %s", got.Status)
	}
	if stockAfter := h.stockOf(t, item.VariantID); stockAfter != 5 {
		t.Fatalf("expected stock restored to 5, got %d", stockAfter)
	}

	balance, err := h.wallet.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != lineValue {
		t.Fatalf("expected wallet credited %d, got %d", lineValue, balance)
	}
}

func TestCancelItemTwiceCreditsOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	order := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodRazorpay,
		payment: enums.PaymentStatusPaid,
		status:  enums.OrderStatusConfirmed,
	})
	item := order.Items[0]

	if _, err := h.svc.CancelItem(ctx, userID, order.ID, item.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	_, err := h.svc.CancelItem(ctx, userID, order.ID, item.ID)
	expectStateConflict(t, err)

	balance, err := h.wallet.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if want := item.FinalUnitPricePaise * item.Quantity; balance != want {
		t.Fatalf("expected single credit %d, got %d", want, balance)
	}
	if stockAfter := h.stockOf(t, item.VariantID); stockAfter != 5 {
		t.Fatalf("expected single stock restore to 5, got %d", stockAfter)
	}
}

func TestCancelItemOnDeliveredOrderRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	order := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPaid,
		status:  enums.OrderStatusDelivered,
	})

	_, err := h.svc.CancelItem(ctx, userID, order.ID, order.Items[0].ID)
	expectStateConflict(t, err)
}

func TestCancelItemUnpaidGatewayHoldsNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	order := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodRazorpay,
		payment: enums.PaymentStatusPending,
		status:  enums.OrderStatusPending,
	})
	item := order.Items[0]

	if _, err := h.svc.CancelItem(ctx, userID, order.ID, item.ID); err != nil {
		t.Fatalf("cancel item: %v", err)
	}

	// provisional order never decremented stock or took money
	if stockAfter := h.stockOf(t, item.VariantID); stockAfter != 3 {
		t.Fatalf("expected stock untouched at 3, got %d", stockAfter)
	}
	balance, err := h.wallet.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected no refund, got %d", balance)
	}
}

func TestReturnFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	order := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPaid,
		status:  enums.OrderStatusDelivered,
	})
	item := order.Items[0]
	refund := item.FinalUnitPricePaise * item.Quantity

	if err := h.svc.RequestReturn(ctx, userID, order.ID, item.ID, "stitching came apart"); err != nil {
		t.Fatalf("request return: %v", err)
	}
	if err := h.svc.ApproveReturn(ctx, order.ID, item.ID); err != nil {
		t.Fatalf("approve return: %v", err)
	}

	var updated models.OrderItem
	if err := h.db.First(&updated, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if updated.ReturnStatus != enums.ReturnStatusApproved {
		t.Fatalf("expected approved, got %s", updated.ReturnStatus)
	}
	if updated.RefundPaise != refund {
		t.Fatalf("expected refund %d, got %d", refund, updated.RefundPaise)
	}

	balance, err := h.wallet.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != refund {
		t.Fatalf("expected wallet credited %d, got %d", refund, balance)
	}
	if stockAfter := h.stockOf(t, item.VariantID); stockAfter != 5 {
		t.Fatalf("expected stock restored to 5, got %d", stockAfter)
	}

	// a second approval must not double-credit
	err = h.svc.ApproveReturn(ctx, order.ID, item.ID)
	expectStateConflict(t, err)
	balance, _ = h.wallet.Balance(ctx, userID)
	if balance != refund {
		t.Fatalf("expected balance unchanged at %d, got %d", refund, balance)
	}
}

func TestRequestReturnGuards(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	undelivered := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPending,
		status:  enums.OrderStatusShipped,
	})
	err := h.svc.RequestReturn(ctx, userID, undelivered.ID, undelivered.Items[0].ID, "stitching came apart")
	expectStateConflict(t, err)

	delivered := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPaid,
		status:  enums.OrderStatusDelivered,
	})
	err = h.svc.RequestReturn(ctx, userID, delivered.ID, delivered.Items[0].ID, "too small")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected short reason rejection, got %v", err)
	}

	if err := h.svc.RequestReturn(ctx, userID, delivered.ID, delivered.Items[0].ID, "stitching came apart"); err != nil {
		t.Fatalf("request return: %v", err)
	}
	err = h.svc.RequestReturn(ctx, userID, delivered.ID, delivered.Items[0].ID, "stitching came apart")
	expectStateConflict(t, err)
}

func TestRejectReturnHasNoFinancialEffect(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	order := h.seedOrder(t, userID, seedOpts{
		method:  enums.PaymentMethodCOD,
		payment: enums.PaymentStatusPaid,
		status:  enums.OrderStatusDelivered,
	})
	item := order.Items[0]

	if err := h.svc.RequestReturn(ctx, userID, order.ID, item.ID, "color faded fast"); err != nil {
		t.Fatalf("request return: %v", err)
	}
	if err := h.svc.RejectReturn(ctx, order.ID, item.ID); err != nil {
		t.Fatalf("reject return: %v", err)
	}

	balance, err := h.wallet.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected no credit, got %d", balance)
	}
	if stockAfter := h.stockOf(t, item.VariantID); stockAfter != 3 {
		t.Fatalf("expected stock untouched at 3, got %d", stockAfter)
	}
}
