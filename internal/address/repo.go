package address

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
)

// Repository manages saved shipping addresses, always scoped to a user.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, userID, addressID uuid.UUID) (*models.UserAddress, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAddress, error)
	Create(ctx context.Context, row *models.UserAddress) error
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	MarkDefault(ctx context.Context, userID, addressID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an address repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, userID, addressID uuid.UUID) (*models.UserAddress, error) {
	var row models.UserAddress
	err := r.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", addressID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAddress, error) {
	var rows []models.UserAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Create(ctx context.Context, row *models.UserAddress) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		Delete(&models.UserAddress{}).Error
}

func (r *repository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.UserAddress{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}

func (r *repository) MarkDefault(ctx context.Context, userID, addressID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserAddress{}).
		Where("id = ? AND user_id = ?", addressID, userID).
		Update("is_default", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
