package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

var ErrInvalidOrder = errors.New("invalid order")

type Service interface {
	Submit(ctx context.Context, rec *checkout.OrderRecord) (string, error)
	GetOrderByID(ctx context.Context, id string) (*checkout.OrderRecord, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]checkout.OrderRecord, error)
}

type service struct {
	orderRepo Repository
}

func NewService(orderRepo Repository) Service {
	return &service{orderRepo: orderRepo}
}

func validate(rec *checkout.OrderRecord) error {
	switch {
	case rec.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidOrder)
	case rec.Status != checkout.StatusPending:
		return fmt.Errorf("%w: status must be %s, got %q", ErrInvalidOrder, checkout.StatusPending, rec.Status)
	case rec.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be greater than zero, got %d", ErrInvalidOrder, rec.Quantity)
	case len(rec.Images) == 0:
		return fmt.Errorf("%w: at least one image is required", ErrInvalidOrder)
	case rec.Subtotal != rec.UnitPrice*int64(rec.Quantity):
		return fmt.Errorf("%w: subtotal %d does not match %d x %d", ErrInvalidOrder, rec.Subtotal, rec.Quantity, rec.UnitPrice)
	case rec.Total != rec.Subtotal+rec.ShippingCost:
		return fmt.Errorf("%w: total %d does not match subtotal %d + shipping %d", ErrInvalidOrder, rec.Total, rec.Subtotal, rec.ShippingCost)
	}
	return nil
}

// Submit persists an assembled order and returns its id. Re-submitting an
// id that is already stored is reported as success.
func (s *service) Submit(ctx context.Context, rec *checkout.OrderRecord) (string, error) {
	if err := validate(rec); err != nil {
		log.Warn().Err(err).Str("order_id", rec.ID).Msg("service: rejected order")
		return "", err
	}

	err := s.orderRepo.CreateOrder(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			log.Warn().Str("order_id", rec.ID).Msg("service: order was already stored")
			return rec.ID, nil
		}
		log.Error().Err(err).Str("order_id", rec.ID).Msg("service: failed to create order in repository")
		return "", fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Str("order_id", rec.ID).
		Stringer("user_id", rec.Customer.ID).
		Int64("total", rec.Total).
		Msg("service: order submitted")

	return rec.ID, nil
}

func (s *service) GetOrderByID(ctx context.Context, id string) (*checkout.OrderRecord, error) {
	rec, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Str("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}

		log.Error().Err(err).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return rec, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]checkout.OrderRecord, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}
