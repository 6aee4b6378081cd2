package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/internal/address"
	"github.com/aravindkp/shopsphere-backend/internal/cart"
	"github.com/aravindkp/shopsphere-backend/internal/coupons"
	"github.com/aravindkp/shopsphere-backend/internal/offers"
	"github.com/aravindkp/shopsphere-backend/internal/orders"
	"github.com/aravindkp/shopsphere-backend/internal/pricing"
	"github.com/aravindkp/shopsphere-backend/internal/products"
	"github.com/aravindkp/shopsphere-backend/internal/stock"
	"github.com/aravindkp/shopsphere-backend/internal/wallet"
	"github.com/aravindkp/shopsphere-backend/pkg/config"
	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
	"github.com/aravindkp/shopsphere-backend/pkg/gateway"
	"github.com/aravindkp/shopsphere-backend/pkg/logger"
	"github.com/aravindkp/shopsphere-backend/pkg/metrics"
	"github.com/aravindkp/shopsphere-backend/pkg/outbox"
	"github.com/aravindkp/shopsphere-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns a cart into an order through one of the payment paths.
// COD and wallet settle in a single call; the gateway path is two-phase
// with an explicit verify step.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error)
	VerifyPayment(ctx context.Context, userID uuid.UUID, input VerifyInput) (*models.Order, error)
	// RetryGatewayPayment opens a fresh payment intent for a gateway
	// order whose previous attempt failed or was abandoned. Stock is
	// re-validated from the order's own items, never the live cart.
	RetryGatewayPayment(ctx context.Context, userID, orderID uuid.UUID) (*Result, error)
}

// CheckoutInput is the client's placement request. The cart itself is
// server state and never part of the payload.
type CheckoutInput struct {
	AddressID     uuid.UUID `json:"address_id" validate:"required"`
	PaymentMethod string    `json:"payment_method" validate:"required"`
	CouponCode    string    `json:"coupon_code,omitempty"`
}

// VerifyInput carries the gateway callback fields for phase two.
type VerifyInput struct {
	OrderID           uuid.UUID `json:"order_id" validate:"required"`
	GatewayOrderRef   string    `json:"gateway_order_ref" validate:"required"`
	GatewayPaymentRef string    `json:"gateway_payment_ref" validate:"required"`
	Signature         string    `json:"signature" validate:"required"`
}

// Result is the placement response. GatewayOrder is set only on the
// gateway path, where the client completes payment against it.
type Result struct {
	Order        *models.Order  `json:"order"`
	GatewayOrder *gateway.Order `json:"gateway_order,omitempty"`
}

type service struct {
	tx              txRunner
	orders          orders.Repository
	carts           cart.Repository
	catalog         products.Repository
	offers          offers.Repository
	coupons         coupons.Repository
	addresses       address.Service
	stock           stock.Service
	wallet          wallet.Service
	gateway         gateway.Gateway
	events          outboxPublisher
	checkoutMetrics *metrics.CheckoutMetrics
	logg            *logger.Logger
	shipping        config.ShippingConfig
}

// NewService wires the checkout orchestrator.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	cartsRepo cart.Repository,
	catalog products.Repository,
	offersRepo offers.Repository,
	couponsRepo coupons.Repository,
	addresses address.Service,
	stockSvc stock.Service,
	walletSvc wallet.Service,
	gw gateway.Gateway,
	events outboxPublisher,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
	shipping config.ShippingConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartsRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if offersRepo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if couponsRepo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address service required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		tx:              tx,
		orders:          ordersRepo,
		carts:           cartsRepo,
		catalog:         catalog,
		offers:          offersRepo,
		coupons:         couponsRepo,
		addresses:       addresses,
		stock:           stockSvc,
		wallet:          walletSvc,
		gateway:         gw,
		events:          events,
		checkoutMetrics: checkoutMetrics,
		logg:            logg,
		shipping:        shipping,
	}, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error) {
	started := time.Now()
	result, err := s.checkout(ctx, userID, input)
	s.checkoutMetrics.ObserveCheckoutDuration(input.PaymentMethod, time.Since(started))
	return result, err
}

func (s *service) checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	shippingAddress, err := s.addresses.Snapshot(ctx, userID, input.AddressID)
	if err != nil {
		return nil, err
	}

	userCart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(userCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	now := time.Now().UTC()
	priced, err := s.priceCartLines(ctx, userID, userCart.Items, input.CouponCode, now)
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(userID, method, shippingAddress, priced, now)

	switch method {
	case enums.PaymentMethodCOD:
		err = s.placeCOD(ctx, order, userCart.ID, priced)
	case enums.PaymentMethodWallet:
		err = s.placeWallet(ctx, order, userCart.ID, priced)
	case enums.PaymentMethodRazorpay:
		return s.placeGatewayIntent(ctx, order)
	}
	if err != nil {
		return nil, err
	}

	s.checkoutMetrics.IncOrderPlaced(string(method))
	placed, err := s.orders.Get(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Order: placed}, nil
}

// placeCOD reserves stock and creates the order unpaid. Cash settles at
// the door when the order moves to Delivered.
func (s *service) placeCOD(ctx context.Context, order *models.Order, cartID uuid.UUID, priced *pricedCheckout) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.stock.Reserve(ctx, tx, reservationLines(order.Items)); err != nil {
			return err
		}
		return s.finalizePlacement(ctx, tx, order, cartID, priced, false)
	})
}

func (s *service) placeWallet(ctx context.Context, order *models.Order, cartID uuid.UUID, priced *pricedCheckout) error {
	order.PaymentStatus = enums.PaymentStatusPaid
	order.Status = enums.OrderStatusConfirmed

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.stock.Reserve(ctx, tx, reservationLines(order.Items)); err != nil {
			return err
		}
		if err := s.wallet.Debit(ctx, tx, order.UserID, order.GrandTotalPaise,
			fmt.Sprintf("payment for %s", order.OrderNumber)); err != nil {
			return err
		}
		return s.finalizePlacement(ctx, tx, order, cartID, priced, true)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientFunds {
			s.checkoutMetrics.IncPaymentFailure(string(enums.PaymentMethodWallet))
		}
		return err
	}
	return nil
}

// placeGatewayIntent is phase one of the gateway flow. The order is
// provisional: no stock is held, the coupon is not yet redeemed and the
// cart stays intact until verification succeeds.
func (s *service) placeGatewayIntent(ctx context.Context, order *models.Order) (*Result, error) {
	gatewayOrder, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		AmountPaise: order.GrandTotalPaise,
		Receipt:     order.OrderNumber,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "payment gateway rejected the order")
	}
	order.GatewayOrderRef = &gatewayOrder.ID

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	created, err := s.orders.Get(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Order: created, GatewayOrder: gatewayOrder}, nil
}

// finalizePlacement does the work shared by the settling paths: persist
// the order, redeem the coupon, empty the cart and emit the events.
func (s *service) finalizePlacement(ctx context.Context, tx *gorm.DB, order *models.Order, cartID uuid.UUID, priced *pricedCheckout, paid bool) error {
	repo := s.orders.WithTx(tx)
	if err := repo.Create(ctx, order); err != nil {
		return err
	}
	if priced.coupon != nil {
		if err := s.coupons.WithTx(tx).RecordRedemption(ctx, priced.coupon.ID, order.UserID); err != nil {
			return err
		}
	}
	if err := s.carts.WithTx(tx).Clear(ctx, cartID); err != nil {
		return err
	}
	if err := s.events.Emit(ctx, tx, orderEvent(enums.EventOrderCreated, order)); err != nil {
		return err
	}
	if paid {
		return s.events.Emit(ctx, tx, orderEvent(enums.EventOrderPaid, order))
	}
	return nil
}

func (s *service) VerifyPayment(ctx context.Context, userID uuid.UUID, input VerifyInput) (*models.Order, error) {
	if userID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id are required")
	}
	if input.GatewayOrderRef == "" || input.GatewayPaymentRef == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order, payment and signature are required")
	}

	order, err := s.orders.GetForUser(ctx, input.OrderID, userID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodRazorpay {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order was not placed through the payment gateway")
	}

	// a replayed callback for an already settled payment is a no-op
	if order.PaymentStatus == enums.PaymentStatusPaid {
		if order.GatewayPaymentRef != nil && *order.GatewayPaymentRef == input.GatewayPaymentRef {
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is %s, retry the gateway flow to pay again", order.PaymentStatus))
	}
	if order.GatewayOrderRef == nil || *order.GatewayOrderRef != input.GatewayOrderRef {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order reference does not match this order")
	}

	if !s.gateway.VerifySignature(input.GatewayOrderRef, input.GatewayPaymentRef, input.Signature) {
		return nil, s.failVerification(ctx, order, input.GatewayPaymentRef)
	}

	return s.settleGatewayOrder(ctx, order, input.GatewayPaymentRef)
}

// failVerification records the failed attempt. Inventory was never held
// for a provisional order, so nothing is restored.
func (s *service) failVerification(ctx context.Context, order *models.Order, paymentRef string) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, uerr := s.orders.WithTx(tx).UpdatePaymentIf(ctx, order.ID, enums.PaymentStatusPending, map[string]any{
			"payment_status":      enums.PaymentStatusFailed,
			"gateway_payment_ref": paymentRef,
		})
		if uerr != nil {
			return uerr
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment state changed concurrently")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: map[string]any{
				"order_number": order.OrderNumber,
				"reason":       "signature mismatch",
			},
			Version: 1,
		})
	})
	if err != nil {
		return err
	}

	s.checkoutMetrics.IncPaymentFailure(string(enums.PaymentMethodRazorpay))
	if s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("payment verification failed for %s", order.OrderNumber))
	}
	return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment signature could not be verified").
		WithDetails(map[string]any{"order_number": order.OrderNumber})
}

// settleGatewayOrder is phase two after a good signature: take the
// stock, finalize items at current discounts, mark the order paid and
// confirmed, redeem the coupon and empty the cart.
func (s *service) settleGatewayOrder(ctx context.Context, order *models.Order, paymentRef string) (*models.Order, error) {
	now := time.Now().UTC()
	priced, err := s.priceOrderLines(ctx, order, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		applied, uerr := repo.UpdatePaymentIf(ctx, order.ID, enums.PaymentStatusPending, map[string]any{
			"payment_status":      enums.PaymentStatusPaid,
			"status":              enums.OrderStatusConfirmed,
			"gateway_payment_ref": paymentRef,
		})
		if uerr != nil {
			return uerr
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment state changed concurrently")
		}

		if serr := s.stock.Reserve(ctx, tx, reservationLines(order.Items)); serr != nil {
			return serr
		}

		items := buildOrderItems(order.ID, priced.quote)
		if rerr := repo.ReplaceItems(ctx, order.ID, items); rerr != nil {
			return rerr
		}
		if terr := repo.UpdateTotals(ctx, order.ID, map[string]any{
			"subtotal_paise":    priced.subtotalPaise,
			"discount_paise":    priced.couponPaise,
			"shipping_paise":    priced.shippingPaise,
			"grand_total_paise": priced.grandTotalPaise,
		}); terr != nil {
			return terr
		}

		if priced.coupon != nil {
			if rerr := s.coupons.WithTx(tx).RecordRedemption(ctx, priced.coupon.ID, order.UserID); rerr != nil {
				return rerr
			}
		}
		userCart, cerr := s.carts.GetByUser(ctx, order.UserID)
		switch {
		case cerr == nil:
			if clearErr := s.carts.WithTx(tx).Clear(ctx, userCart.ID); clearErr != nil {
				return clearErr
			}
		case errors.Is(cerr, gorm.ErrRecordNotFound):
			// nothing to clear
		default:
			return cerr
		}

		if eerr := s.events.Emit(ctx, tx, orderEvent(enums.EventOrderCreated, order)); eerr != nil {
			return eerr
		}
		return s.events.Emit(ctx, tx, orderEvent(enums.EventOrderPaid, order))
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeOutOfStock {
			return nil, s.refundUnfulfillable(ctx, order)
		}
		return nil, err
	}

	s.checkoutMetrics.IncOrderPlaced(string(enums.PaymentMethodRazorpay))
	return s.orders.Get(ctx, order.ID)
}

// refundUnfulfillable handles the window where payment settled but the
// stock was sold out from under the provisional order. The captured
// amount moves to the user's wallet and the order is cancelled.
func (s *service) refundUnfulfillable(ctx context.Context, order *models.Order) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if _, uerr := repo.UpdateStatusIf(ctx, order.ID, order.Status, enums.OrderStatusCancelled,
			map[string]any{"cancelled_at": time.Now().UTC()}); uerr != nil {
			return uerr
		}
		if werr := s.wallet.Credit(ctx, tx, order.UserID, order.GrandTotalPaise,
			fmt.Sprintf("refund for unfulfillable %s", order.OrderNumber)); werr != nil {
			return werr
		}
		s.checkoutMetrics.ObserveRefund(order.GrandTotalPaise)
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundIssued,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: map[string]any{
				"order_number": order.OrderNumber,
				"refund_paise": order.GrandTotalPaise,
				"reason":       "out of stock at settlement",
			},
			Version: 1,
		})
	})
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock,
		fmt.Sprintf("items on %s sold out before settlement, payment refunded to wallet", order.OrderNumber))
}

func (s *service) RetryGatewayPayment(ctx context.Context, userID, orderID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id are required")
	}

	order, err := s.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodRazorpay {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only gateway orders can be retried")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s and can no longer be paid", order.Status))
	}

	// the items were frozen at placement; retries never look at the
	// live cart
	for _, item := range order.Items {
		variant, verr := s.catalog.GetVariant(ctx, item.VariantID)
		if verr != nil {
			return nil, verr
		}
		if variant.IsBlocked || variant.Stock < item.Quantity {
			if _, cerr := s.orders.UpdateStatusIf(ctx, orderID, order.Status, enums.OrderStatusCancelled,
				map[string]any{"cancelled_at": time.Now().UTC()}); cerr != nil {
				return nil, cerr
			}
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock,
				fmt.Sprintf("%s is no longer available, order cancelled", item.Name)).
				WithDetails(map[string]any{"variant_id": item.VariantID})
		}
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		AmountPaise: order.GrandTotalPaise,
		Receipt:     order.OrderNumber,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentVerification, err, "payment gateway rejected the retry")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).UpdateTotals(ctx, orderID, map[string]any{
			"payment_status":      enums.PaymentStatusPending,
			"gateway_order_ref":   gatewayOrder.ID,
			"gateway_payment_ref": nil,
		})
	})
	if err != nil {
		return nil, err
	}

	refreshed, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Result{Order: refreshed, GatewayOrder: gatewayOrder}, nil
}

// pricedCheckout bundles the resolver output with the charge breakdown.
type pricedCheckout struct {
	quote           *pricing.Quote
	coupon          *models.Coupon
	subtotalPaise   int
	couponPaise     int
	shippingPaise   int
	grandTotalPaise int
}

// priceCartLines snapshots the cart into resolver lines at current
// catalogue prices, rejecting blocked or under-stocked variants up
// front.
func (s *service) priceCartLines(ctx context.Context, userID uuid.UUID, items []models.CartItem, couponCode string, now time.Time) (*pricedCheckout, error) {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		variant, err := s.catalog.GetVariant(ctx, item.VariantID)
		if err != nil {
			return nil, err
		}
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if variant.IsBlocked || product.IsBlocked {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("%s is no longer available", product.Name))
		}
		if variant.Stock < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock,
				fmt.Sprintf("only %d of %s left", variant.Stock, product.Name)).
				WithDetails(map[string]any{"variant_id": variant.ID})
		}
		lines = append(lines, pricing.Line{
			ProductID:      product.ID,
			VariantID:      variant.ID,
			CategoryID:     product.CategoryID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			BasePricePaise: variant.EffectivePricePaise(),
		})
	}
	return s.resolve(ctx, userID, lines, couponCode, now)
}

// priceOrderLines reprices a provisional order's frozen lines at
// settlement time so the final items carry current discounts.
func (s *service) priceOrderLines(ctx context.Context, order *models.Order, now time.Time) (*pricedCheckout, error) {
	lines := make([]pricing.Line, 0, len(order.Items))
	for _, item := range order.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pricing.Line{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			CategoryID:     product.CategoryID,
			ProductName:    item.Name,
			Quantity:       item.Quantity,
			BasePricePaise: item.BasePricePaise,
		})
	}
	couponCode := ""
	if order.CouponCode != nil {
		couponCode = *order.CouponCode
	}
	priced, err := s.resolve(ctx, order.UserID, lines, couponCode, now)
	if err != nil && couponCode != "" {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeCouponInvalid {
			return s.settleWithoutCoupon(ctx, order, lines, couponCode, now)
		}
	}
	return priced, err
}

// settleWithoutCoupon handles a coupon that became unusable between
// intent and verification, e.g. the user redeemed it on another order
// while this one sat provisional. The payment is already captured, so
// the order settles honoring the charged discount without recording a
// redemption.
func (s *service) settleWithoutCoupon(ctx context.Context, order *models.Order, lines []pricing.Line, couponCode string, now time.Time) (*pricedCheckout, error) {
	priced, err := s.resolve(ctx, order.UserID, lines, "", now)
	if err != nil {
		return nil, err
	}
	priced.couponPaise = order.DiscountPaise
	priced.shippingPaise = s.shippingCharge(priced.subtotalPaise - priced.couponPaise)
	priced.grandTotalPaise = priced.subtotalPaise - priced.couponPaise + priced.shippingPaise
	if s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("coupon %s no longer redeemable, settling %s at the charged discount",
			couponCode, order.OrderNumber))
	}
	return priced, nil
}

func (s *service) resolve(ctx context.Context, userID uuid.UUID, lines []pricing.Line, couponCode string, now time.Time) (*pricedCheckout, error) {
	productIDs := make([]uuid.UUID, 0, len(lines))
	categoryIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
		categoryIDs = append(categoryIDs, line.CategoryID)
	}
	eligibleOffers, err := s.offers.ListEligible(ctx, productIDs, categoryIDs, now)
	if err != nil {
		return nil, err
	}

	input := pricing.Input{Lines: lines, Offers: eligibleOffers, Now: now}
	if couponCode != "" {
		coupon, cerr := s.coupons.GetByCode(ctx, couponCode)
		if cerr != nil {
			return nil, cerr
		}
		redeemed, cerr := s.coupons.HasRedemption(ctx, coupon.ID, userID)
		if cerr != nil {
			return nil, cerr
		}
		input.Coupon = coupon
		input.CouponRedeemed = redeemed
	}

	quote, err := pricing.Resolve(input)
	if err != nil {
		return nil, err
	}

	priced := &pricedCheckout{
		quote:         quote,
		coupon:        input.Coupon,
		subtotalPaise: quote.SubtotalPaise,
		couponPaise:   quote.CouponDiscountPaise,
	}
	priced.shippingPaise = s.shippingCharge(priced.subtotalPaise - priced.couponPaise)
	priced.grandTotalPaise = priced.subtotalPaise - priced.couponPaise + priced.shippingPaise
	return priced, nil
}

// shippingCharge is flat, waived above the free-shipping threshold on
// the discounted order value.
func (s *service) shippingCharge(orderValuePaise int) int {
	if s.shipping.FreeAbovePaise > 0 && orderValuePaise >= s.shipping.FreeAbovePaise {
		return 0
	}
	return s.shipping.FlatChargePaise
}

func (s *service) buildOrder(userID uuid.UUID, method enums.PaymentMethod, shippingAddress types.Address, priced *pricedCheckout, now time.Time) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     orderNumber(now),
		UserID:          userID,
		ShippingAddress: shippingAddress,
		PaymentMethod:   method,
		PaymentStatus:   enums.PaymentStatusPending,
		Status:          enums.OrderStatusPending,
		SubtotalPaise:   priced.subtotalPaise,
		DiscountPaise:   priced.couponPaise,
		ShippingPaise:   priced.shippingPaise,
		GrandTotalPaise: priced.grandTotalPaise,
	}
	if priced.quote.AppliedCouponCode != "" {
		code := priced.quote.AppliedCouponCode
		order.CouponCode = &code
	}
	order.Items = buildOrderItems(order.ID, priced.quote)
	return order
}

func buildOrderItems(orderID uuid.UUID, quote *pricing.Quote) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		items = append(items, models.OrderItem{
			ID:                  uuid.New(),
			OrderID:             orderID,
			ProductID:           line.ProductID,
			VariantID:           line.VariantID,
			Name:                line.ProductName,
			Quantity:            line.Quantity,
			BasePricePaise:      line.BasePricePaise,
			DiscountPaise:       line.DiscountPaise,
			FinalUnitPricePaise: line.FinalUnitPricePaise,
			TotalPaise:          line.TotalPaise,
			CancelStatus:        enums.CancelStatusNotCancelled,
			ReturnStatus:        enums.ReturnStatusNotRequested,
		})
	}
	return items
}

func reservationLines(items []models.OrderItem) []stock.ReservationLine {
	lines := make([]stock.ReservationLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, stock.ReservationLine{VariantID: item.VariantID, Qty: item.Quantity})
	}
	return lines
}

func orderEvent(eventType enums.OutboxEventType, order *models.Order) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID},
		Data: map[string]any{
			"order_number":      order.OrderNumber,
			"payment_method":    order.PaymentMethod,
			"grand_total_paise": order.GrandTotalPaise,
		},
		Version: 1,
	}
}

// orderNumber builds the human-facing reference, unique by suffix.
func orderNumber(now time.Time) string {
	return "ORD-" + now.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}
