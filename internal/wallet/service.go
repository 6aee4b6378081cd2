package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
	"github.com/aravindkp/shopsphere-backend/pkg/pagination"
)

// Service defines wallet balance movements. Every movement appends a
// transaction row; balances never go negative.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	// Debit takes amountPaise from the user's wallet or fails with
	// INSUFFICIENT_FUNDS without partial effect.
	Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountPaise int, description string) error
	Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountPaise int, description string) error
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error)
}

type service struct {
	repo Repository
}

// NewService wires a wallet service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	wallet, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.BalancePaise, nil
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountPaise int, description string) error {
	if err := validateMovement(userID, amountPaise); err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)

	wallet, err := repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := repo.DebitIfSufficient(ctx, wallet.ID, amountPaise)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds,
			fmt.Sprintf("wallet balance below %d paise", amountPaise)).
			WithDetails(map[string]any{"required_paise": amountPaise})
	}
	return repo.AppendTransaction(ctx, &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        enums.WalletEntryDebit,
		AmountPaise: amountPaise,
		Description: description,
	})
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountPaise int, description string) error {
	if err := validateMovement(userID, amountPaise); err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)

	wallet, err := repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := repo.Credit(ctx, wallet.ID, amountPaise); err != nil {
		return err
	}
	return repo.AppendTransaction(ctx, &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        enums.WalletEntryCredit,
		AmountPaise: amountPaise,
		Description: description,
	})
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	wallet, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	txns, err := s.repo.ListTransactions(ctx, wallet.ID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return txns, next, nil
}

func validateMovement(userID uuid.UUID, amountPaise int) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amountPaise <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}
