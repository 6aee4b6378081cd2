package address

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
	"github.com/aravindkp/shopsphere-backend/pkg/types"
)

// Service manages a user's saved delivery addresses.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.UserAddress, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateAddressInput) (*models.UserAddress, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) error
	// Snapshot resolves a saved address into the value copied onto orders.
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.Address, error)
}

// CreateAddressInput mirrors the snapshot fields plus the default flag.
type CreateAddressInput struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

type service struct {
	repo Repository
}

// NewService wires an address service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.UserAddress, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateAddressInput) (*models.UserAddress, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	snapshot := types.Address{
		Name:       input.Name,
		Phone:      input.Phone,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    input.Country,
	}
	if err := snapshot.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	country := input.Country
	if country == "" {
		country = "IN"
	}
	row := models.UserAddress{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       input.Name,
		Phone:      input.Phone,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    country,
		IsDefault:  input.IsDefault,
	}
	if input.IsDefault {
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Create(ctx, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	if userID == uuid.Nil || addressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and address id are required")
	}
	return s.repo.Delete(ctx, userID, addressID)
}

func (s *service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) error {
	if userID == uuid.Nil || addressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and address id are required")
	}
	if err := s.repo.ClearDefault(ctx, userID); err != nil {
		return err
	}
	ok, err := s.repo.MarkDefault(ctx, userID, addressID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.Address, error) {
	row, err := s.repo.Get(ctx, userID, addressID)
	if err != nil {
		return types.Address{}, err
	}
	return types.Address{
		Name:       row.Name,
		Phone:      row.Phone,
		Line1:      row.Line1,
		Line2:      row.Line2,
		City:       row.City,
		State:      row.State,
		PostalCode: row.PostalCode,
		Country:    row.Country,
	}, nil
}
