package checkout

import (
	"errors"
	"fmt"
)

// ValidationError is an incomplete or invalid user input. It is never retried.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrVariantRequired       = &ValidationError{Code: "variant_required", Message: "please choose a product variant"}
	ErrAddressRequired       = &ValidationError{Code: "address_required", Message: "please add a delivery address to your profile"}
	ErrImagesRequired        = &ValidationError{Code: "images_required", Message: msgNoImages}
	ErrCourierRequired       = &ValidationError{Code: "courier_required", Message: "please choose a shipping courier"}
	ErrShippingPending       = &ValidationError{Code: "shipping_pending", Message: "shipping rates are being recalculated, please wait"}
	ErrPaymentMethodRequired = &ValidationError{Code: "payment_method_required", Message: "please choose a payment method"}
	ErrPaymentProofRequired  = &ValidationError{Code: "payment_proof_required", Message: "please upload the payment proof"}
	ErrQuantityBelowMinimum  = &ValidationError{Code: "quantity_below_minimum", Message: "quantity is below the minimum order"}

	ErrImageLimitReached    = &ValidationError{Code: "image_limit_reached", Message: "image limit reached for this quantity"}
	ErrFileTooLarge         = &ValidationError{Code: "file_too_large", Message: "file is too large"}
	ErrUnsupportedFileType  = &ValidationError{Code: "unsupported_file_type", Message: "only JPEG, PNG and WebP images are accepted"}
	ErrInvalidEncoding      = &ValidationError{Code: "invalid_encoding", Message: "file payload is not valid base64"}
	ErrUnknownVariant       = &ValidationError{Code: "unknown_variant", Message: "variant does not exist for this product"}
	ErrUnknownCourier       = &ValidationError{Code: "unknown_courier", Message: "courier is not among the current offers"}
	ErrUnknownPaymentMethod = &ValidationError{Code: "unknown_payment_method", Message: "payment method is not supported"}
	ErrImageNotFound        = &ValidationError{Code: "image_not_found", Message: "image not found"}
)

var (
	ErrProductNotFound  = errors.New("checkout: product not found")
	ErrSessionClosed    = errors.New("checkout: session is closed")
	ErrDraftClearFailed = errors.New("checkout: failed to clear draft")
)

// TransientError is an I/O failure the user may retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("checkout: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// AsValidation extracts the ValidationError wrapped in err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
