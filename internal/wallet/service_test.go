package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
	"github.com/aravindkp/shopsphere-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Wallet{}, &models.WalletTransaction{}); err != nil {
		t.Fatalf("migrate wallets: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestBalanceCreatesWalletLazily(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	userID := uuid.New()

	balance, err := svc.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zero opening balance, got %d", balance)
	}

	var count int64
	if err := db.Model(&models.Wallet{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count wallets: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one wallet row, got %d", count)
	}
}

func TestCreditThenDebit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.Credit(ctx, db, userID, 50000, "refund for ORD-1001"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := svc.Debit(ctx, db, userID, 20000, "payment for ORD-1002"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 30000 {
		t.Fatalf("expected balance 30000, got %d", balance)
	}

	var txns []models.WalletTransaction
	if err := db.Order("created_at ASC").Find(&txns).Error; err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
	if txns[0].Type != enums.WalletEntryCredit || txns[0].AmountPaise != 50000 {
		t.Fatalf("unexpected credit entry: %+v", txns[0])
	}
	if txns[1].Type != enums.WalletEntryDebit || txns[1].AmountPaise != 20000 {
		t.Fatalf("unexpected debit entry: %+v", txns[1])
	}
}

func TestDebitInsufficientFundsLeavesNoTrace(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.Credit(ctx, db, userID, 10000, "opening credit"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := svc.Debit(ctx, db, userID, 25000, "payment for ORD-1003")
	if err == nil {
		t.Fatal("expected insufficient funds")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("unexpected error: %v", err)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 10000 {
		t.Fatalf("expected balance unchanged at 10000, got %d", balance)
	}

	var count int64
	if err := db.Model(&models.WalletTransaction{}).
		Where("type = ?", enums.WalletEntryDebit).
		Count(&count).Error; err != nil {
		t.Fatalf("count debits: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no debit rows, got %d", count)
	}
}

func TestMovementValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	if err := svc.Debit(ctx, db, uuid.Nil, 100, "x"); err == nil {
		t.Fatal("expected missing user to fail")
	}
	if err := svc.Credit(ctx, db, uuid.New(), 0, "x"); err == nil {
		t.Fatal("expected zero amount to fail")
	}
	if err := svc.Credit(ctx, db, uuid.New(), -5, "x"); err == nil {
		t.Fatal("expected negative amount to fail")
	}
}

func TestHistoryPaginates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		if err := svc.Credit(ctx, db, userID, 1000*(i+1), "credit"); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	first, next, err := svc.History(ctx, userID, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(first))
	}
	if next == "" {
		t.Fatal("expected a next cursor")
	}

	rest, _, err := svc.History(ctx, userID, pagination.Params{Limit: 3, Cursor: next})
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", len(rest))
	}

	seen := map[uuid.UUID]bool{}
	for _, txn := range append(first, rest...) {
		if seen[txn.ID] {
			t.Fatalf("transaction %s appeared twice", txn.ID)
		}
		seen[txn.ID] = true
	}
}
