package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
	"github.com/vasiliy-maslov/accessory-checkout/internal/order"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

type OrderReader interface {
	GetOrderByID(ctx context.Context, id string) (*checkout.OrderRecord, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]checkout.OrderRecord, error)
}

type OrderImageResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
}

type OrderResponse struct {
	ID            string                       `json:"id"`
	Status        string                       `json:"status"`
	Product       checkout.ProductSnapshot     `json:"product"`
	Variant       *checkout.Variant            `json:"variant,omitempty"`
	Quantity      int                          `json:"quantity"`
	UnitPrice     int64                        `json:"unit_price"`
	Subtotal      int64                        `json:"subtotal"`
	Shipping      shipping.Offer               `json:"shipping"`
	ShippingCost  int64                        `json:"shipping_cost"`
	Total         int64                        `json:"total"`
	PaymentMethod string                       `json:"payment_method"`
	Address       checkout.Address             `json:"address"`
	Distribution  []checkout.DistributionEntry `json:"distribution"`
	Images        []OrderImageResponse         `json:"images"`
	SubmittedAt   time.Time                    `json:"submitted_at"`
}

func toOrderResponse(rec *checkout.OrderRecord) OrderResponse {
	images := make([]OrderImageResponse, len(rec.Images))
	for i, img := range rec.Images {
		images[i] = OrderImageResponse{ID: img.ID, Filename: img.Filename, Size: img.Size, MIMEType: img.MIMEType}
	}
	return OrderResponse{
		ID:            rec.ID,
		Status:        rec.Status,
		Product:       rec.Product,
		Variant:       rec.Variant,
		Quantity:      rec.Quantity,
		UnitPrice:     rec.UnitPrice,
		Subtotal:      rec.Subtotal,
		Shipping:      rec.Shipping,
		ShippingCost:  rec.ShippingCost,
		Total:         rec.Total,
		PaymentMethod: rec.PaymentMethod,
		Address:       rec.Customer.Address,
		Distribution:  rec.Distribution,
		Images:        images,
		SubmittedAt:   rec.SubmittedAt,
	}
}

type OrderHandler struct {
	orders OrderReader
}

func NewOrderHandler(orders OrderReader) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders/{id}", h.handleGetOrderByID)
	router.Get("/users/{id}/orders", h.handleGetOrdersByUserID)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid "+userIDHeader+" header")
		return
	}

	orderID := chi.URLParam(r, "id")
	rec, err := h.orders.GetOrderByID(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Failed to get order by id via service")
		respondWithDomainError(w, err, "Failed to get order by id")
		return
	}

	// other users' orders are indistinguishable from missing ones
	if rec.Customer.ID != userID {
		log.Warn().Str("order_id", orderID).Stringer("user_id", userID).Msg("Order requested by a different user")
		respondWithDomainError(w, order.ErrOrderNotFound, "Order not found")
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(rec))
}

func (h *OrderHandler) handleGetOrdersByUserID(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	userID, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("user_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	caller, ok := userFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid "+userIDHeader+" header")
		return
	}
	if caller != userID {
		respondWithError(w, http.StatusForbidden, "Cannot list another user's orders")
		return
	}

	records, err := h.orders.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to get orders by user id via service")
		respondWithDomainError(w, err, "Failed to get orders")
		return
	}

	resp := make([]OrderResponse, 0, len(records))
	for i := range records {
		resp = append(resp, toOrderResponse(&records[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}
