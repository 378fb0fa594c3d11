package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

const userIDHeader = "X-User-ID"

// maxUploadBody leaves room for base64 inflation of a 5MB file plus the
// JSON envelope.
const maxUploadBody = 8 << 20

type SessionOpener interface {
	Open(ctx context.Context, userID uuid.UUID, productID string) (*checkout.Session, error)
}

type QuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100000"`
}

type VariantRequest struct {
	Variant string `json:"variant" validate:"max=64"`
}

type FileRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
	Data     string `json:"data" validate:"required"`
}

type ShippingRequest struct {
	Carrier string `json:"carrier" validate:"required,max=32"`
}

type PaymentMethodRequest struct {
	Method string `json:"method" validate:"required,max=32"`
}

type SubmitResponse struct {
	OrderID      string                       `json:"order_id"`
	Status       string                       `json:"status"`
	Quantity     int                          `json:"quantity"`
	Subtotal     int64                        `json:"subtotal"`
	ShippingCost int64                        `json:"shipping_cost"`
	Total        int64                        `json:"total"`
	Shipping     shipping.Offer               `json:"shipping"`
	Distribution []checkout.DistributionEntry `json:"distribution"`
	SubmittedAt  time.Time                    `json:"submitted_at"`
}

type CheckoutHandler struct {
	sessions SessionOpener
	validate *validator.Validate
}

func NewCheckoutHandler(sessions SessionOpener) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		validate: validator.New(),
	}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Route("/checkout/{productID}", func(r chi.Router) {
		r.Get("/", h.handleGetView)
		r.Delete("/", h.handleLeave)
		r.Put("/quantity", h.handleSetQuantity)
		r.Put("/variant", h.handleSelectVariant)
		r.Post("/images", h.handleAddImage)
		r.Delete("/images/{imageID}", h.handleRemoveImage)
		r.Get("/previews/{handle}", h.handleGetPreview)
		r.Put("/shipping", h.handleSelectShipping)
		r.Post("/refresh-shipping", h.handleRefreshShipping)
		r.Put("/payment-method", h.handleSelectPaymentMethod)
		r.Post("/proof", h.handleUploadProof)
		r.Post("/submit", h.handleSubmit)
	})
}

func userFromRequest(r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.FromString(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// openSession resolves the caller's session for the product in the URL. It
// writes the error response itself when it returns nil.
func (h *CheckoutHandler) openSession(w http.ResponseWriter, r *http.Request) *checkout.Session {
	userID, ok := userFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid "+userIDHeader+" header")
		return nil
	}

	productID := chi.URLParam(r, "productID")
	session, err := h.sessions.Open(r.Context(), userID, productID)
	if err != nil {
		log.Error().Err(err).Str("product_id", productID).Stringer("user_id", userID).Msg("Failed to open checkout session")
		respondWithDomainError(w, err, "Failed to open checkout")
		return nil
	}
	return session
}

func (h *CheckoutHandler) handleGetView(w http.ResponseWriter, r *http.Request) {
	session := h.openSession(w, r)
	if session == nil {
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

func (h *CheckoutHandler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if err := session.SetQuantity(r.Context(), req.Quantity); err != nil {
		respondWithDomainError(w, err, "Failed to update quantity")
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

func (h *CheckoutHandler) handleSelectVariant(w http.ResponseWriter, r *http.Request) {
	var req VariantRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if err := session.SelectVariant(r.Context(), req.Variant); err != nil {
		respondWithDomainError(w, err, "Failed to select variant")
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

func (h *CheckoutHandler) handleAddImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	var req FileRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if _, err := session.AddImage(r.Context(), req.Filename, req.Data); err != nil {
		log.Warn().Err(err).Str("filename", req.Filename).Msg("Rejected image upload")
		respondWithDomainError(w, err, "Failed to add image")
		return
	}
	respondWithJSON(w, http.StatusCreated, session.View())
}

func (h *CheckoutHandler) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if err := session.RemoveImage(r.Context(), chi.URLParam(r, "imageID")); err != nil {
		respondWithDomainError(w, err, "Failed to remove image")
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

func (h *CheckoutHandler) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	data, ok := session.Preview(chi.URLParam(r, "handle"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "Preview not found")
		return
	}

	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write preview")
	}
}

func (h *CheckoutHandler) handleSelectShipping(w http.ResponseWriter, r *http.Request) {
	var req ShippingRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if err := session.SelectShipping(r.Context(), req.Carrier); err != nil {
		respondWithDomainError(w, err, "Failed to select courier")
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

// handleRefreshShipping reloads the customer profile and schedules a new
// quote. The response shows the loading state; clients poll the view.
func (h *CheckoutHandler) handleRefreshShipping(w http.ResponseWriter, r *http.Request) {
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if err := session.RefreshShipping(r.Context()); err != nil {
		respondWithDomainError(w, err, "Failed to refresh shipping")
		return
	}
	respondWithJSON(w, http.StatusAccepted, session.View())
}

func (h *CheckoutHandler) handleSelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req PaymentMethodRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if err := session.SelectPaymentMethod(r.Context(), req.Method); err != nil {
		respondWithDomainError(w, err, "Failed to select payment method")
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

func (h *CheckoutHandler) handleUploadProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	var req FileRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if _, err := session.UploadProof(r.Context(), req.Filename, req.Data); err != nil {
		log.Warn().Err(err).Str("filename", req.Filename).Msg("Rejected payment proof")
		respondWithDomainError(w, err, "Failed to upload payment proof")
		return
	}
	respondWithJSON(w, http.StatusCreated, session.View())
}

func (h *CheckoutHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	record, err := session.Submit(r.Context())
	if err != nil {
		if _, ok := checkout.AsValidation(err); !ok {
			log.Error().Err(err).Msg("Failed to submit order")
		}
		respondWithDomainError(w, err, "Failed to submit order")
		return
	}

	respondWithJSON(w, http.StatusCreated, SubmitResponse{
		OrderID:      record.ID,
		Status:       record.Status,
		Quantity:     record.Quantity,
		Subtotal:     record.Subtotal,
		ShippingCost: record.ShippingCost,
		Total:        record.Total,
		Shipping:     record.Shipping,
		Distribution: record.Distribution,
		SubmittedAt:  record.SubmittedAt,
	})
}

func (h *CheckoutHandler) handleLeave(w http.ResponseWriter, r *http.Request) {
	session := h.openSession(w, r)
	if session == nil {
		return
	}

	if err := session.Leave(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to leave checkout")
		respondWithDomainError(w, err, "Failed to leave checkout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
