package checkout

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

type ProductCatalog interface {
	// GetByID returns ErrProductNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*Product, error)
}

type StoreProfile interface {
	GetOrigin(ctx context.Context) (Origin, error)
}

type CustomerProfile interface {
	GetCustomer(ctx context.Context, userID uuid.UUID) (*Customer, error)
}

type RateAggregator interface {
	Aggregate(ctx context.Context, req shipping.Request) ([]shipping.Offer, error)
}

type OrderSink interface {
	Submit(ctx context.Context, order *OrderRecord) (string, error)
}

// DraftStore persists drafts keyed by product id. It never fails loudly:
// Load reports absent or unreadable drafts as false, Save and Clear report
// failures as false.
type DraftStore interface {
	Load(ctx context.Context, productID string) (DraftOrder, bool)
	Save(ctx context.Context, productID string, draft DraftOrder) bool
	Clear(ctx context.Context, productID string) bool
}
