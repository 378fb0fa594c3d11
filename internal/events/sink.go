package events

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

const TypeOrderSubmitted = "order.submitted"

type Event struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	OrderID   string         `json:"order_id"`
	UserID    uuid.UUID      `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   OrderSubmitted `json:"payload"`
}

// OrderSubmitted carries what fulfilment needs to start production; image
// payloads stay in the order store.
type OrderSubmitted struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	Variant       string `json:"variant,omitempty"`
	ImageCount    int    `json:"image_count"`
	Carrier       string `json:"carrier"`
	Service       string `json:"service"`
	ShippingCost  int64  `json:"shipping_cost"`
	Total         int64  `json:"total"`
	PaymentMethod string `json:"payment_method"`
	City          string `json:"city"`
}

func NewOrderSubmitted(rec *checkout.OrderRecord, at time.Time) Event {
	ev := Event{
		EventID:   ulid.Make().String(),
		Type:      TypeOrderSubmitted,
		OrderID:   rec.ID,
		UserID:    rec.Customer.ID,
		CreatedAt: at.UTC(),
		Payload: OrderSubmitted{
			ProductID:     rec.Product.ID,
			Quantity:      rec.Quantity,
			ImageCount:    len(rec.Images),
			Carrier:       rec.Shipping.Carrier,
			Service:       rec.Shipping.Service,
			ShippingCost:  rec.ShippingCost,
			Total:         rec.Total,
			PaymentMethod: rec.PaymentMethod,
			City:          rec.Customer.Address.City,
		},
	}
	if rec.Variant != nil {
		ev.Payload.Variant = rec.Variant.Name
	}
	return ev
}

// NotifyingSink announces every stored order. A failed publish is logged and
// does not fail the submission; the order is already durable by then.
type NotifyingSink struct {
	next      checkout.OrderSink
	publisher Publisher
	timeout   time.Duration
	now       func() time.Time
}

func NewNotifyingSink(next checkout.OrderSink, publisher Publisher, timeout time.Duration) *NotifyingSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotifyingSink{next: next, publisher: publisher, timeout: timeout, now: time.Now}
}

func (s *NotifyingSink) Submit(ctx context.Context, rec *checkout.OrderRecord) (string, error) {
	id, err := s.next.Submit(ctx, rec)
	if err != nil {
		return "", err
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	ev := NewOrderSubmitted(rec, s.now())
	ev.OrderID = id
	if err := s.publisher.Publish(pubCtx, id, ev); err != nil {
		log.Warn().Err(err).Str("order_id", id).Msg("events: failed to publish order.submitted")
	}

	return id, nil
}

var _ checkout.OrderSink = (*NotifyingSink)(nil)
