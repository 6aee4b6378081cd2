package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
)

// Repository reads promotional offers for pricing.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// ListEligible returns enabled offers whose window contains now and
	// whose target matches one of the given products or categories.
	ListEligible(ctx context.Context, productIDs, categoryIDs []uuid.UUID, now time.Time) ([]models.Offer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an offers repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListEligible(ctx context.Context, productIDs, categoryIDs []uuid.UUID, now time.Time) ([]models.Offer, error) {
	if len(productIDs) == 0 && len(categoryIDs) == 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).
		Where("is_enabled = ?", true).
		Where("start_at <= ? AND end_at >= ?", now, now)

	switch {
	case len(productIDs) == 0:
		query = query.Where("scope = ? AND target_id IN ?", enums.OfferScopeCategory, categoryIDs)
	case len(categoryIDs) == 0:
		query = query.Where("scope = ? AND target_id IN ?", enums.OfferScopeProduct, productIDs)
	default:
		query = query.Where(
			"(scope = ? AND target_id IN ?) OR (scope = ? AND target_id IN ?)",
			enums.OfferScopeProduct, productIDs,
			enums.OfferScopeCategory, categoryIDs,
		)
	}

	var offers []models.Offer
	if err := query.Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}
