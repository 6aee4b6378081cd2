package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/internal/coupons"
	"github.com/aravindkp/shopsphere-backend/internal/stock"
	"github.com/aravindkp/shopsphere-backend/internal/wallet"
	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
	"github.com/aravindkp/shopsphere-backend/pkg/logger"
	"github.com/aravindkp/shopsphere-backend/pkg/metrics"
	"github.com/aravindkp/shopsphere-backend/pkg/outbox"
	"github.com/aravindkp/shopsphere-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service covers order reads, admin fulfillment moves and the
// cancel/return mutations. Checkout creates orders; nothing here does.
type Service interface {
	Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListAll(ctx context.Context, params pagination.Params) ([]models.Order, string, error)

	// AdvanceStatus moves the order exactly one step forward.
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	// CancelOrder is the admin cancel, allowed only from Pending.
	CancelOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	CancelItem(ctx context.Context, userID, orderID, itemID uuid.UUID) (*models.Order, error)
	RequestReturn(ctx context.Context, userID, orderID, itemID uuid.UUID, reason string) error
	ApproveReturn(ctx context.Context, orderID, itemID uuid.UUID) error
	RejectReturn(ctx context.Context, orderID, itemID uuid.UUID) error
}

type service struct {
	tx              txRunner
	repo            Repository
	stock           stock.Service
	wallet          wallet.Service
	coupons         coupons.Repository
	events          outboxPublisher
	checkoutMetrics *metrics.CheckoutMetrics
	logg            *logger.Logger
	minReasonChars  int
}

// NewService wires the order service with its collaborators.
func NewService(
	tx txRunner,
	repo Repository,
	stockSvc stock.Service,
	walletSvc wallet.Service,
	couponsRepo coupons.Repository,
	events outboxPublisher,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
	minReasonChars int,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if couponsRepo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if minReasonChars <= 0 {
		minReasonChars = 10
	}
	return &service{
		tx:              tx,
		repo:            repo,
		stock:           stockSvc,
		wallet:          walletSvc,
		coupons:         couponsRepo,
		events:          events,
		checkoutMetrics: checkoutMetrics,
		logg:            logg,
		minReasonChars:  minReasonChars,
	}, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and order id are required")
	}
	return s.repo.GetForUser(ctx, orderID, userID)
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByUser(ctx, userID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, "", err
	}
	return paginate(rows, pagination.NormalizeLimit(params.Limit))
}

func (s *service) ListAll(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, "", err
	}
	return paginate(rows, pagination.NormalizeLimit(params.Limit))
}

func paginate(rows []models.Order, limit int) ([]models.Order, string, error) {
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) AdvanceStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", target))
	}

	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	next, ok := order.Status.Next()
	if !ok || next != target {
		return nil, stateConflict(fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
	}
	if order.Status == enums.OrderStatusPending &&
		order.PaymentMethod.IsPrepaid() &&
		order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, stateConflict("prepaid order cannot leave pending before payment")
	}

	extra := map[string]any{}
	if target == enums.OrderStatusDelivered {
		extra["delivered_at"] = time.Now().UTC()
		// cash is collected at the door
		if order.PaymentMethod == enums.PaymentMethodCOD {
			extra["payment_status"] = enums.PaymentStatusPaid
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		applied, uerr := s.repo.WithTx(tx).UpdateStatusIf(ctx, orderID, order.Status, target, extra)
		if uerr != nil {
			return uerr
		}
		if !applied {
			return stateConflict("order status changed concurrently")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderAdvanced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: map[string]any{
				"order_number": order.OrderNumber,
				"from":         order.Status,
				"to":           target,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, orderID)
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, stateConflict(fmt.Sprintf("only pending orders can be cancelled, order is %s", order.Status))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, uerr := repo.UpdateStatusIf(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCancelled,
			map[string]any{"cancelled_at": time.Now().UTC()})
		if uerr != nil {
			return uerr
		}
		if !applied {
			return stateConflict("order was already moved out of pending")
		}

		for _, item := range order.Items {
			if item.CancelStatus == enums.CancelStatusCancelled {
				continue
			}
			if _, cerr := repo.CancelItemIf(ctx, item.ID); cerr != nil {
				return cerr
			}
			// only COD orders hold stock while still pending; a
			// provisional gateway order has not decremented anything
			if order.PaymentMethod == enums.PaymentMethodCOD {
				if serr := s.stock.Restore(ctx, tx, []stock.ReservationLine{
					{VariantID: item.VariantID, Qty: item.Quantity},
				}); serr != nil {
					return serr
				}
			}
		}

		// a pending COD order redeemed its coupon at placement; hand the
		// redemption back so the user can spend the coupon again
		if order.CouponCode != nil {
			coupon, gerr := s.coupons.GetByCode(ctx, *order.CouponCode)
			if gerr != nil {
				// a deleted coupon leaves nothing to release
				if typed := pkgerrors.As(gerr); typed == nil || typed.Code() != pkgerrors.CodeCouponInvalid {
					return gerr
				}
			} else if derr := s.coupons.WithTx(tx).DeleteRedemption(ctx, coupon.ID, order.UserID); derr != nil {
				return derr
			}
		}

		return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: map[string]any{
				"order_number": order.OrderNumber,
				"by":           "admin",
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, orderID)
}

func (s *service) CancelItem(ctx context.Context, userID, orderID, itemID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil || orderID == uuid.Nil || itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id, order id and item id are required")
	}

	order, err := s.repo.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusDelivered:
		return nil, stateConflict("delivered items can only be returned, not cancelled")
	case enums.OrderStatusCancelled:
		return nil, stateConflict("order is already cancelled")
	}

	item, err := s.repo.GetItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}

	// stock was only taken once payment settled, except COD which
	// decrements at placement
	stockHeld := order.PaymentMethod == enums.PaymentMethodCOD ||
		order.PaymentStatus == enums.PaymentStatusPaid
	refundable := order.PaymentMethod.IsPrepaid() &&
		order.PaymentStatus == enums.PaymentStatusPaid
	lineValue := item.FinalUnitPricePaise * item.Quantity

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, cerr := repo.CancelItemIf(ctx, itemID)
		if cerr != nil {
			return cerr
		}
		if !applied {
			return stateConflict("item was already cancelled or has a return in flight")
		}

		if stockHeld {
			if serr := s.stock.Restore(ctx, tx, []stock.ReservationLine{
				{VariantID: item.VariantID, Qty: item.Quantity},
			}); serr != nil {
				return serr
			}
		}
		if refundable && lineValue > 0 {
			if werr := s.wallet.Credit(ctx, tx, userID, lineValue,
				fmt.Sprintf("refund for cancelled item on %s", order.OrderNumber)); werr != nil {
				return werr
			}
			if uerr := tx.Model(&models.OrderItem{}).
				Where("id = ?", itemID).
				Update("refund_paise", lineValue).Error; uerr != nil {
				return uerr
			}
			s.checkoutMetrics.ObserveRefund(lineValue)
		}
		if rerr := repo.ReduceGrandTotal(ctx, orderID, lineValue); rerr != nil {
			return rerr
		}

		remaining, cerr2 := repo.CountItemsNotCancelled(ctx, orderID)
		if cerr2 != nil {
			return cerr2
		}
		if remaining == 0 {
			if _, uerr := repo.UpdateStatusIf(ctx, orderID, order.Status, enums.OrderStatusCancelled,
				map[string]any{"cancelled_at": time.Now().UTC()}); uerr != nil {
				return uerr
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: map[string]any{
				"order_number": order.OrderNumber,
				"item_id":      itemID,
				"refund_paise": lineValue,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetForUser(ctx, orderID, userID)
}

func (s *service) RequestReturn(ctx context.Context, userID, orderID, itemID uuid.UUID, reason string) error {
	if userID == uuid.Nil || orderID == uuid.Nil || itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id, order id and item id are required")
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < s.minReasonChars {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("return reason must be at least %d characters", s.minReasonChars))
	}

	order, err := s.repo.GetForUser(ctx, orderID, userID)
	if err != nil {
		return err
	}
	if order.Status != enums.OrderStatusDelivered {
		return stateConflict("returns are only accepted after delivery")
	}

	applied, err := s.repo.UpdateReturnStatusIf(ctx, itemID,
		enums.ReturnStatusNotRequested, enums.ReturnStatusRequested,
		map[string]any{"return_reason": reason})
	if err != nil {
		return err
	}
	if !applied {
		return stateConflict("item already has a return request or was cancelled")
	}
	return nil
}

func (s *service) ApproveReturn(ctx context.Context, orderID, itemID uuid.UUID) error {
	if orderID == uuid.Nil || itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and item id are required")
	}

	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	item, err := s.repo.GetItem(ctx, orderID, itemID)
	if err != nil {
		return err
	}
	refund := item.FinalUnitPricePaise * item.Quantity

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, uerr := repo.UpdateReturnStatusIf(ctx, itemID,
			enums.ReturnStatusRequested, enums.ReturnStatusApproved,
			map[string]any{"refund_paise": refund})
		if uerr != nil {
			return uerr
		}
		if !applied {
			return stateConflict("return is not awaiting a decision")
		}

		if refund > 0 {
			if werr := s.wallet.Credit(ctx, tx, order.UserID, refund,
				fmt.Sprintf("refund for returned item on %s", order.OrderNumber)); werr != nil {
				return werr
			}
			s.checkoutMetrics.ObserveRefund(refund)
		}
		if serr := s.stock.Restore(ctx, tx, []stock.ReservationLine{
			{VariantID: item.VariantID, Qty: item.Quantity},
		}); serr != nil {
			return serr
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundIssued,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: map[string]any{
				"order_number": order.OrderNumber,
				"item_id":      itemID,
				"refund_paise": refund,
			},
			Version: 1,
		})
	})
}

func (s *service) RejectReturn(ctx context.Context, orderID, itemID uuid.UUID) error {
	if orderID == uuid.Nil || itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and item id are required")
	}
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return err
	}

	applied, err := s.repo.UpdateReturnStatusIf(ctx, itemID,
		enums.ReturnStatusRequested, enums.ReturnStatusRejected, nil)
	if err != nil {
		return err
	}
	if !applied {
		return stateConflict("return is not awaiting a decision")
	}
	return nil
}

func stateConflict(msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg)
}
