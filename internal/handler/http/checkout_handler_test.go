package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout/checkouttest"
	checkoutHttp "github.com/vasiliy-maslov/accessory-checkout/internal/handler/http"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

type checkoutFixture struct {
	env     *checkouttest.Env
	manager *checkout.Manager
	router  *chi.Mux
	userID  uuid.UUID
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	env := checkouttest.NewEnv()
	userID := uuid.Must(uuid.NewV4())

	env.Catalog.Products["keychain"] = &checkout.Product{
		ID:       "keychain",
		Name:     "Acrylic Keychain",
		Price:    15000,
		Variants: []checkout.Variant{{Name: "single", Price: 15000}, {Name: "double", Price: 18000}},
	}
	env.Customers.Put(&checkout.Customer{
		ID:        userID,
		Name:      "Dewi",
		Addresses: []checkout.Address{{Street: "Jl. Gejayan 4", CityID: "501"}},
	})
	env.Rates.Offers = []shipping.Offer{
		{Carrier: "jne", DisplayName: "JNE", Service: "REG", Cost: 9000, EstimatedDays: "1-2"},
		{Carrier: "tiki", DisplayName: "TIKI", Service: "ECO", Cost: 12000, EstimatedDays: "3-4"},
	}

	manager := checkout.NewManager(checkout.Settings{MinQuantity: 5, DebounceDelay: 10 * time.Millisecond}, env.Deps())
	t.Cleanup(manager.CloseAll)

	router := chi.NewRouter()
	checkoutHttp.NewCheckoutHandler(manager).RegisterRoutes(router)

	return &checkoutFixture{env: env, manager: manager, router: router, userID: userID}
}

func (f *checkoutFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", f.userID.String())

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) checkout.View {
	t.Helper()
	var v checkout.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "Failed to decode response body")
	return v
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) checkoutHttp.ErrorResponse {
	t.Helper()
	var e checkoutHttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&e))
	return e
}

func (f *checkoutFixture) waitShippingReady(t *testing.T) checkout.View {
	t.Helper()
	var v checkout.View
	require.Eventually(t, func() bool {
		rr := f.do(t, http.MethodGet, "/checkout/keychain", nil)
		if rr.Code != http.StatusOK {
			return false
		}
		v = decodeView(t, rr)
		return v.Shipping.Status == checkout.ShippingReady
	}, 2*time.Second, 10*time.Millisecond)
	return v
}

func pngUpload() checkoutHttp.FileRequest {
	return checkoutHttp.FileRequest{Filename: "ref.png", Data: checkouttest.Base64(checkouttest.PNG)}
}

func TestCheckoutHandler_FullFlow(t *testing.T) {
	f := newCheckoutFixture(t)

	v := f.waitShippingReady(t)
	assert.Equal(t, 5, v.Quantity)
	require.NotNil(t, v.Shipping.Selected)
	assert.Equal(t, "jne", v.Shipping.Selected.Carrier)

	rr := f.do(t, http.MethodPut, "/checkout/keychain/variant", checkoutHttp.VariantRequest{Variant: "single"})
	require.Equal(t, http.StatusOK, rr.Code)

	for i := 0; i < 5; i++ {
		rr = f.do(t, http.MethodPost, "/checkout/keychain/images", pngUpload())
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
	v = decodeView(t, rr)
	assert.Len(t, v.Images, 5)
	assert.True(t, v.ImageLimitReached)

	rr = f.do(t, http.MethodPost, "/checkout/keychain/images", pngUpload())
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, checkout.ErrImageLimitReached.Code, decodeError(t, rr).Code)

	rr = f.do(t, http.MethodPut, "/checkout/keychain/payment-method", checkoutHttp.PaymentMethodRequest{Method: "bank_transfer"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodPost, "/checkout/keychain/proof", checkoutHttp.FileRequest{Filename: "transfer.jpg", Data: checkouttest.Base64(checkouttest.JPEG)})
	require.Equal(t, http.StatusCreated, rr.Code)
	v = decodeView(t, rr)
	require.NotNil(t, v.PaymentProof)
	assert.Equal(t, "image/jpeg", v.PaymentProof.MIMEType)
	assert.Equal(t, int64(84000), v.Total)

	rr = f.do(t, http.MethodPost, "/checkout/keychain/submit", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp checkoutHttp.SubmitResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, checkout.StatusPending, resp.Status)
	assert.Equal(t, int64(75000), resp.Subtotal)
	assert.Equal(t, int64(84000), resp.Total)
	assert.Len(t, resp.Distribution, 5)

	require.Len(t, f.env.Sink.Submitted(), 1)
	_, ok := f.env.Drafts.Load(t.Context(), "keychain")
	assert.False(t, ok, "draft is cleared after submit")
}

func TestCheckoutHandler_SubmitIncomplete(t *testing.T) {
	f := newCheckoutFixture(t)
	f.waitShippingReady(t)

	rr := f.do(t, http.MethodPost, "/checkout/keychain/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	e := decodeError(t, rr)
	assert.Equal(t, checkout.ErrVariantRequired.Code, e.Code)
	assert.Equal(t, checkout.ErrVariantRequired.Message, e.Error)
}

func TestCheckoutHandler_QuantityRules(t *testing.T) {
	f := newCheckoutFixture(t)

	rr := f.do(t, http.MethodPut, "/checkout/keychain/quantity", checkoutHttp.QuantityRequest{Quantity: 3})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, checkout.ErrQuantityBelowMinimum.Code, decodeError(t, rr).Code)

	rr = f.do(t, http.MethodPut, "/checkout/keychain/quantity", map[string]int{"quantity": 0})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var verr checkoutHttp.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&verr))
	assert.Equal(t, "is required", verr.Details["quantity"])

	rr = f.do(t, http.MethodPut, "/checkout/keychain/quantity", map[string]interface{}{"quantity": 8, "extra": true})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPut, "/checkout/keychain/quantity", checkoutHttp.QuantityRequest{Quantity: 8})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 8, decodeView(t, rr).Quantity)
}

func TestCheckoutHandler_UploadRejections(t *testing.T) {
	f := newCheckoutFixture(t)

	tests := []struct {
		name     string
		body     checkoutHttp.FileRequest
		wantCode int
		wantErr  string
	}{
		{
			name:     "bad_base64",
			body:     checkoutHttp.FileRequest{Filename: "x.png", Data: "%%%not-base64"},
			wantCode: http.StatusBadRequest,
			wantErr:  checkout.ErrInvalidEncoding.Code,
		},
		{
			name:     "not_an_image",
			body:     checkoutHttp.FileRequest{Filename: "notes.txt", Data: checkouttest.Base64([]byte("just some plain text"))},
			wantCode: http.StatusBadRequest,
			wantErr:  checkout.ErrUnsupportedFileType.Code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/checkout/keychain/images", tt.body)
			require.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rr).Code)
		})
	}
}

func TestCheckoutHandler_RemoveImageAndPreview(t *testing.T) {
	f := newCheckoutFixture(t)

	rr := f.do(t, http.MethodPost, "/checkout/keychain/images", pngUpload())
	require.Equal(t, http.StatusCreated, rr.Code)
	v := decodeView(t, rr)
	require.Len(t, v.Images, 1)
	img := v.Images[0]
	require.NotEmpty(t, img.Preview)

	rr = f.do(t, http.MethodGet, "/checkout/keychain/previews/"+img.Preview, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, checkouttest.PNG, rr.Body.Bytes())

	rr = f.do(t, http.MethodDelete, "/checkout/keychain/images/"+img.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeView(t, rr).Images)

	rr = f.do(t, http.MethodGet, "/checkout/keychain/previews/"+img.Preview, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "preview is released with its image")

	rr = f.do(t, http.MethodDelete, "/checkout/keychain/images/"+img.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckoutHandler_ShippingSelection(t *testing.T) {
	f := newCheckoutFixture(t)
	f.waitShippingReady(t)

	rr := f.do(t, http.MethodPut, "/checkout/keychain/shipping", checkoutHttp.ShippingRequest{Carrier: "tiki"})
	require.Equal(t, http.StatusOK, rr.Code)
	v := decodeView(t, rr)
	require.NotNil(t, v.Shipping.Selected)
	assert.Equal(t, "tiki", v.Shipping.Selected.Carrier)

	rr = f.do(t, http.MethodPut, "/checkout/keychain/shipping", checkoutHttp.ShippingRequest{Carrier: "sicepat"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, checkout.ErrUnknownCourier.Code, decodeError(t, rr).Code)

	rr = f.do(t, http.MethodPost, "/checkout/keychain/refresh-shipping", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	v = f.waitShippingReady(t)
	assert.Equal(t, "tiki", v.Shipping.Selected.Carrier, "selection survives a refresh")
}

func TestCheckoutHandler_Leave(t *testing.T) {
	f := newCheckoutFixture(t)

	rr := f.do(t, http.MethodPut, "/checkout/keychain/quantity", checkoutHttp.QuantityRequest{Quantity: 9})
	require.Equal(t, http.StatusOK, rr.Code)

	f.env.Drafts.SetFailClear(true)
	rr = f.do(t, http.MethodDelete, "/checkout/keychain", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.True(t, decodeError(t, rr).Retry)

	f.env.Drafts.SetFailClear(false)
	rr = f.do(t, http.MethodDelete, "/checkout/keychain", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/checkout/keychain", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, decodeView(t, rr).Quantity, "a fresh session starts from the minimum")
}

func TestCheckoutHandler_OpenErrors(t *testing.T) {
	f := newCheckoutFixture(t)

	rr := f.do(t, http.MethodGet, "/checkout/unknown", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Product not found", decodeError(t, rr).Error)

	req := httptest.NewRequest(http.MethodGet, "/checkout/keychain", nil)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/checkout/keychain", nil)
	req.Header.Set("X-User-ID", "not-a-uuid")
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	f.env.Catalog.Err = checkouttest.ErrUnavailable
	rr = f.do(t, http.MethodGet, "/checkout/other", nil)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.True(t, decodeError(t, rr).Retry)
}
