package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
	"github.com/aravindkp/shopsphere-backend/pkg/pagination"
)

// Repository manages order rows. Every status flip is a single
// conditional UPDATE guarded on the expected pre-state so concurrent
// mutations cannot both apply.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	GetItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Order, error)

	// UpdateStatusIf flips order.status from expected to next together
	// with the extra column writes, reporting whether the guard matched.
	UpdateStatusIf(ctx context.Context, orderID uuid.UUID, expected, next enums.OrderStatus, extra map[string]any) (bool, error)
	// UpdatePaymentIf guards on the current payment status.
	UpdatePaymentIf(ctx context.Context, orderID uuid.UUID, expected enums.PaymentStatus, updates map[string]any) (bool, error)
	// CancelItemIf marks the item cancelled when it was not already and
	// no return has been requested for it.
	CancelItemIf(ctx context.Context, itemID uuid.UUID) (bool, error)
	// UpdateReturnStatusIf advances the item's return machine from the
	// expected state.
	UpdateReturnStatusIf(ctx context.Context, itemID uuid.UUID, expected, next enums.ReturnStatus, extra map[string]any) (bool, error)
	ReduceGrandTotal(ctx context.Context, orderID uuid.UUID, amountPaise int) error
	CountItemsNotCancelled(ctx context.Context, orderID uuid.UUID) (int64, error)
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error
	UpdateTotals(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.db.WithContext(ctx).
		First(&item, "id = ? AND order_id = ?", itemID, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID)
	return listOrders(applyCursor(query, cursor), limit)
}

func (r *repository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Preload("Items")
	return listOrders(applyCursor(query, cursor), limit)
}

func applyCursor(query *gorm.DB, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return query
	}
	return query.Where(
		"(created_at < ?) OR (created_at = ? AND id < ?)",
		cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
	)
}

func listOrders(query *gorm.DB, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatusIf(ctx context.Context, orderID uuid.UUID, expected, next enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": next}
	for column, value := range extra {
		updates[column] = value
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdatePaymentIf(ctx context.Context, orderID uuid.UUID, expected enums.PaymentStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CancelItemIf(ctx context.Context, itemID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND cancel_status = ? AND return_status = ?",
			itemID, enums.CancelStatusNotCancelled, enums.ReturnStatusNotRequested).
		Update("cancel_status", enums.CancelStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateReturnStatusIf(ctx context.Context, itemID uuid.UUID, expected, next enums.ReturnStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"return_status": next}
	for column, value := range extra {
		updates[column] = value
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND return_status = ? AND cancel_status = ?",
			itemID, expected, enums.CancelStatusNotCancelled).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ReduceGrandTotal(ctx context.Context, orderID uuid.UUID, amountPaise int) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("grand_total_paise", gorm.Expr("grand_total_paise - ?", amountPaise)).Error
}

func (r *repository) CountItemsNotCancelled(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND cancel_status = ?", orderID, enums.CancelStatusNotCancelled).
		Count(&count).Error
	return count, err
}

func (r *repository) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []models.OrderItem) error {
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) UpdateTotals(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}
