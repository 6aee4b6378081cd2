package coupons

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/aravindkp/shopsphere-backend/pkg/db"
	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
)

// Repository manages coupons and their per-user redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	HasRedemption(ctx context.Context, couponID, userID uuid.UUID) (bool, error)
	// RecordRedemption inserts the (coupon, user) row; the unique index
	// turns a concurrent duplicate into COUPON_INVALID.
	RecordRedemption(ctx context.Context, couponID, userID uuid.UUID) error
	DeleteRedemption(ctx context.Context, couponID, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coupons repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	var coupon models.Coupon
	err := r.db.WithContext(ctx).First(&coupon, "code = ?", normalized).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon "+normalized+" does not exist")
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) HasRedemption(ctx context.Context, couponID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) RecordRedemption(ctx context.Context, couponID, userID uuid.UUID) error {
	row := models.CouponRedemption{ID: uuid.New(), CouponID: couponID, UserID: userID}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_coupon_redemptions_coupon_user") {
			return pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon was already used")
		}
		return err
	}
	return nil
}

func (r *repository) DeleteRedemption(ctx context.Context, couponID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Delete(&models.CouponRedemption{}).Error
}
