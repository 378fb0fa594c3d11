package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

// Service serves customer profiles to checkout with every address already
// resolved to a shipping location.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetCustomer returns a profile with no addresses for users that have never
// filled one in; checkout then reports the missing address itself.
func (s *Service) GetCustomer(ctx context.Context, userID uuid.UUID) (*checkout.Customer, error) {
	rec, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			log.Warn().Stringer("user_id", userID).Msg("service: customer has no profile yet")
			return &checkout.Customer{ID: userID, Addresses: []checkout.Address{}}, nil
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to load customer")
		return nil, fmt.Errorf("service: failed to load customer: %w", err)
	}

	var table *LocationTable
	if needsLookup(rec.Addresses) {
		locs, err := s.repo.ListLocations(ctx)
		if err != nil {
			// addresses stay as stored; unresolved ones get no shipping quote
			log.Warn().Err(err).Stringer("user_id", userID).Msg("service: location lookup unavailable")
		} else {
			table = NewLocationTable(locs)
		}
	}

	return &checkout.Customer{
		ID:        rec.ID,
		Name:      rec.Name,
		Phone:     rec.Phone,
		Email:     rec.Email,
		Addresses: Normalize(rec.Addresses, table),
	}, nil
}

var _ checkout.CustomerProfile = (*Service)(nil)
