package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
	"github.com/vasiliy-maslov/accessory-checkout/internal/order"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Retry bool   `json:"retry,omitempty"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError sends a JSON error
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	if ve, ok := checkout.AsValidation(err); ok {
		switch ve.Code {
		case checkout.ErrInvalidEncoding.Code, checkout.ErrUnsupportedFileType.Code:
			return http.StatusBadRequest
		case checkout.ErrFileTooLarge.Code:
			return http.StatusRequestEntityTooLarge
		case checkout.ErrImageNotFound.Code:
			return http.StatusNotFound
		case checkout.ErrShippingPending.Code:
			return http.StatusConflict
		default:
			return http.StatusUnprocessableEntity
		}
	}

	switch {
	case errors.Is(err, checkout.ErrProductNotFound), errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrDraftClearFailed):
		return http.StatusServiceUnavailable
	case checkout.IsTransient(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError turns checkout and order errors into a client
// message. Internal details never leave the server.
func respondWithDomainError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)

	if ve, ok := checkout.AsValidation(err); ok {
		respondWithJSON(w, code, ErrorResponse{Error: ve.Message, Code: ve.Code})
		return
	}

	resp := ErrorResponse{Error: fallback}
	switch {
	case errors.Is(err, checkout.ErrProductNotFound):
		resp.Error = "Product not found"
	case errors.Is(err, order.ErrOrderNotFound):
		resp.Error = "Order not found"
	case errors.Is(err, checkout.ErrSessionClosed):
		resp.Error = "Checkout session has ended, reload to start again"
	case errors.Is(err, checkout.ErrDraftClearFailed):
		resp.Error = "Could not discard the draft, please try again"
		resp.Retry = true
	case checkout.IsTransient(err):
		resp.Error = "A dependency is unavailable, please try again"
		resp.Retry = true
	}
	respondWithJSON(w, code, resp)
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "min", "gte":
			details[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max", "lte":
			details[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "uuid4", "uuid":
			details[field] = "must be a valid UUID"
		default:
			details[field] = fmt.Sprintf("failed on %s", fe.Tag())
		}
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body is too large")
			return false
		}
		log.Warn().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload %v", err))
		return false
	}

	if err := v.Struct(dst); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if ok {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}

	return true
}
