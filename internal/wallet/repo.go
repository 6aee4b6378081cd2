package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/aravindkp/shopsphere-backend/pkg/db"
	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/pagination"
)

// Repository manages wallet balances and their append-only transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// DebitIfSufficient performs a single conditional write and reports
	// whether the balance guard matched.
	DebitIfSufficient(ctx context.Context, walletID uuid.UUID, amountPaise int) (bool, error)
	Credit(ctx context.Context, walletID uuid.UUID, amountPaise int) error
	AppendTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := r.GetByUser(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := models.Wallet{ID: uuid.New(), UserID: userID}
	if cerr := r.db.WithContext(ctx).Create(&created).Error; cerr != nil {
		// concurrent first-touch loses the unique race, re-read
		if dbpkg.IsUniqueViolation(cerr, "ux_wallets_user") {
			return r.GetByUser(ctx, userID)
		}
		return nil, cerr
	}
	return &created, nil
}

func (r *repository) DebitIfSufficient(ctx context.Context, walletID uuid.UUID, amountPaise int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND balance_paise >= ?", walletID, amountPaise).
		UpdateColumn("balance_paise", gorm.Expr("balance_paise - ?", amountPaise))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Credit(ctx context.Context, walletID uuid.UUID, amountPaise int) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		UpdateColumn("balance_paise", gorm.Expr("balance_paise + ?", amountPaise)).Error
}

func (r *repository) AppendTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var txns []models.WalletTransaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
