package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/pkg/enums"
)

// Coupon is a user-entered discount code. Redemptions live in their own
// table so the per-user limit can be enforced with a unique index instead
// of a read-modify-write on an embedded list.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Type             enums.CouponType `gorm:"column:type;type:text;not null"`
	Value            int              `gorm:"column:value;not null"`
	MinPurchasePaise int              `gorm:"column:min_purchase_paise;not null;default:0"`
	MaxDiscountPaise *int             `gorm:"column:max_discount_paise"`
	PerUserLimit     int              `gorm:"column:per_user_limit;not null;default:1"`
	StartAt          time.Time        `gorm:"column:start_at;not null"`
	ExpiresAt        time.Time        `gorm:"column:expires_at;not null"`
	IsActive         bool             `gorm:"column:is_active;not null;default:false"`
	IsEnabled        bool             `gorm:"column:is_enabled;not null;default:true"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// WindowContains recomputes time-window eligibility; the cached IsActive
// flag alone is never trusted on the checkout path.
func (c Coupon) WindowContains(now time.Time) bool {
	if !c.IsEnabled {
		return false
	}
	return !now.Before(c.StartAt) && !now.After(c.ExpiresAt)
}

// CouponRedemption records one use of a coupon by one user.
type CouponRedemption struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CouponID uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:ux_coupon_redemptions_coupon_user"`
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_coupon_redemptions_coupon_user"`
	UsedAt   time.Time `gorm:"column:used_at;autoCreateTime"`
}
