package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/pkg/enums"
)

// Offer is a time-bounded percentage discount scoped to a product or a
// category. IsActive is a cached flag refreshed by an external sweep; the
// time window is the source of truth and is always re-evaluated in
// correctness-critical paths.
type Offer struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name            string           `gorm:"column:name;not null"`
	Scope           enums.OfferScope `gorm:"column:scope;type:text;not null"`
	TargetID        uuid.UUID        `gorm:"column:target_id;type:uuid;not null;index"`
	DiscountPercent int              `gorm:"column:discount_percent;not null"`
	StartAt         time.Time        `gorm:"column:start_at;not null"`
	EndAt           time.Time        `gorm:"column:end_at;not null"`
	IsActive        bool             `gorm:"column:is_active;not null;default:false"`
	IsEnabled       bool             `gorm:"column:is_enabled;not null;default:true"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Eligible recomputes eligibility from the window and the enabled flag,
// ignoring the cached IsActive value.
func (o Offer) Eligible(now time.Time) bool {
	if !o.IsEnabled {
		return false
	}
	if o.DiscountPercent < 1 || o.DiscountPercent > 90 {
		return false
	}
	return !now.Before(o.StartAt) && !now.After(o.EndAt)
}
