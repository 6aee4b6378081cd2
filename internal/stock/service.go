package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
	"github.com/aravindkp/shopsphere-backend/pkg/logger"
)

// ReservationLine asks for qty units of one variant.
type ReservationLine struct {
	VariantID uuid.UUID
	Qty       int
}

// Service defines all-or-nothing stock reservation.
type Service interface {
	// Reserve decrements every line or none. On a failed line it
	// re-increments the lines already taken, then reports OUT_OF_STOCK
	// naming the variant that could not be reserved.
	Reserve(ctx context.Context, tx *gorm.DB, lines []ReservationLine) error
	// Restore puts reserved units back, used when payment fails or an
	// order is cancelled.
	Restore(ctx context.Context, tx *gorm.DB, lines []ReservationLine) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires a stock service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, lines []ReservationLine) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)

	taken := make([]ReservationLine, 0, len(lines))
	for _, line := range lines {
		ok, err := repo.DecrementIfAvailable(ctx, line.VariantID, line.Qty)
		if err != nil {
			return multierr.Append(err, s.release(ctx, repo, taken))
		}
		if !ok {
			if rerr := s.release(ctx, repo, taken); rerr != nil {
				return multierr.Append(outOfStock(line), rerr)
			}
			return outOfStock(line)
		}
		taken = append(taken, line)
	}
	return nil
}

func (s *service) Restore(ctx context.Context, tx *gorm.DB, lines []ReservationLine) error {
	if err := validateLines(lines); err != nil {
		return err
	}
	return s.release(ctx, s.repo.WithTx(tx), lines)
}

func (s *service) release(ctx context.Context, repo Repository, lines []ReservationLine) error {
	var errs error
	for _, line := range lines {
		if err := repo.Increment(ctx, line.VariantID, line.Qty); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restore variant %s: %w", line.VariantID, err))
		}
	}
	if errs != nil && s.logg != nil {
		s.logg.Error(ctx, "stock restore incomplete", errs)
	}
	return errs
}

func validateLines(lines []ReservationLine) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one reservation line is required")
	}
	for _, line := range lines {
		if line.VariantID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
		}
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}
	}
	return nil
}

func outOfStock(line ReservationLine) error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock,
		fmt.Sprintf("variant %s has insufficient stock", line.VariantID)).
		WithDetails(map[string]any{"variant_id": line.VariantID.String(), "requested": line.Qty})
}
