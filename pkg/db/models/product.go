package models

import (
	"time"

	"github.com/google/uuid"
)

// Product groups the purchasable variants of one catalogue entry.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name       string           `gorm:"column:name;not null"`
	CategoryID uuid.UUID        `gorm:"column:category_id;type:uuid;not null;index"`
	IsBlocked  bool             `gorm:"column:is_blocked;not null;default:false"`
	Variants   []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is one purchasable SKU. Variants are never deleted, only
// blocked, so historical orders keep a valid reference.
type ProductVariant struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID          uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SKU                string    `gorm:"column:sku;not null"`
	PricePaise         int       `gorm:"column:price_paise;not null"`
	DiscountPricePaise *int      `gorm:"column:discount_price_paise"`
	Stock              int       `gorm:"column:stock;not null;default:0"`
	IsBlocked          bool      `gorm:"column:is_blocked;not null;default:false"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePricePaise is the unit price charged at purchase time.
func (v ProductVariant) EffectivePricePaise() int {
	if v.DiscountPricePaise != nil && *v.DiscountPricePaise > 0 && *v.DiscountPricePaise < v.PricePaise {
		return *v.DiscountPricePaise
	}
	return v.PricePaise
}
