package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/pkg/enums"
)

// Wallet is the per-user store-credit balance. Created lazily on the
// first credit or debit; debits never take it below zero.
type Wallet struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	BalancePaise int       `gorm:"column:balance_paise;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// WalletTransaction is one append-only ledger entry. Rows are never
// edited or removed; reversals are new offsetting entries.
type WalletTransaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	WalletID    uuid.UUID             `gorm:"column:wallet_id;type:uuid;not null;index"`
	Type        enums.WalletEntryType `gorm:"column:type;type:text;not null"`
	AmountPaise int                   `gorm:"column:amount_paise;not null"`
	Description string                `gorm:"column:description;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
