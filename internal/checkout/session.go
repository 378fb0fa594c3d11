package checkout

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

const (
	DefaultDebounceDelay = 500 * time.Millisecond
	DefaultIdleTimeout   = 30 * time.Minute
)

var DefaultPaymentMethods = []string{"bank_transfer", "qris", "e_wallet"}

type ShippingStatus string

const (
	ShippingIdle    ShippingStatus = "idle"
	ShippingLoading ShippingStatus = "loading"
	ShippingReady   ShippingStatus = "ready"
	ShippingError   ShippingStatus = "error"
)

type Settings struct {
	MinQuantity    int
	MaxFileSize    int64
	DebounceDelay  time.Duration
	RefreshTimeout time.Duration
	// IdleTimeout closes sessions nobody has opened for that long.
	IdleTimeout    time.Duration
	PaymentMethods []string
	FallbackOrigin Origin
}

func (s Settings) withDefaults() Settings {
	if s.MinQuantity <= 0 {
		s.MinQuantity = DefaultMinQuantity
	}
	if s.MaxFileSize <= 0 {
		s.MaxFileSize = DefaultMaxFileSize
	}
	if s.DebounceDelay <= 0 {
		s.DebounceDelay = DefaultDebounceDelay
	}
	if s.RefreshTimeout <= 0 {
		s.RefreshTimeout = 30 * time.Second
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if len(s.PaymentMethods) == 0 {
		s.PaymentMethods = DefaultPaymentMethods
	}
	return s
}

type Deps struct {
	Products  ProductCatalog
	Store     StoreProfile
	Customers CustomerProfile
	Rates     RateAggregator
	Orders    OrderSink
	// Drafts returns the draft store of one user.
	Drafts func(userID uuid.UUID) DraftStore
}

// Session is the single writer of one user's draft for one product.
type Session struct {
	mu sync.Mutex

	userID    uuid.UUID
	settings  Settings
	deps      Deps
	drafts    DraftStore
	assembler *Assembler
	previews  *Previews
	debouncer *shipping.Debouncer

	product  *Product
	customer *Customer
	origin   Origin
	draft    DraftOrder

	offers         []shipping.Offer
	shippingStatus ShippingStatus
	shippingErr    string
	// carrier the user last chose; reapplied when fresh offers arrive
	preferredCarrier string

	closed bool
}

// StartSession loads the product and any saved draft, then schedules the
// first shipping lookup. Only a product lookup failure aborts the start.
func StartSession(ctx context.Context, userID uuid.UUID, productID string, settings Settings, deps Deps) (*Session, error) {
	settings = settings.withDefaults()

	product, err := deps.Products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Str("product_id", productID).Msg("checkout: failed to load product")
		return nil, &TransientError{Op: "load product", Err: err}
	}

	s := &Session{
		userID:         userID,
		settings:       settings,
		deps:           deps,
		drafts:         deps.Drafts(userID),
		assembler:      NewAssembler(settings.MinQuantity),
		previews:       NewPreviews(),
		debouncer:      shipping.NewDebouncer(settings.DebounceDelay),
		product:        product,
		shippingStatus: ShippingIdle,
		offers:         []shipping.Offer{},
	}

	s.origin = s.loadOrigin(ctx)

	customer, err := deps.Customers.GetCustomer(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("checkout: customer profile unavailable, will retry on submit")
	} else {
		s.customer = customer
	}

	draft, ok := s.drafts.Load(ctx, product.ID)
	if ok && draft.SubmittedOrderID != "" {
		log.Info().Str("product_id", product.ID).Str("order_id", draft.SubmittedOrderID).Msg("checkout: discarding draft of an already submitted order")
		if !s.drafts.Clear(ctx, product.ID) {
			log.Warn().Str("product_id", product.ID).Msg("checkout: submitted draft still not cleared, overwriting it")
		}
		ok = false
	}
	if !ok {
		draft = DraftOrder{Quantity: settings.MinQuantity}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft = s.normalizeDraft(draft)
	s.scheduleShippingLocked()
	s.persistLocked(ctx)

	log.Info().
		Stringer("user_id", userID).
		Str("product_id", product.ID).
		Bool("restored", ok).
		Int("quantity", s.draft.Quantity).
		Int("images", len(s.draft.Images)).
		Msg("checkout: session started")

	return s, nil
}

func (s *Session) loadOrigin(ctx context.Context) Origin {
	if s.deps.Store == nil {
		return s.settings.FallbackOrigin
	}
	origin, err := s.deps.Store.GetOrigin(ctx)
	if err != nil || origin.LocationID == "" {
		log.Warn().Err(err).Str("fallback_location", s.settings.FallbackOrigin.LocationID).Msg("checkout: store origin unavailable, using fallback")
		return s.settings.FallbackOrigin
	}
	return origin
}

// normalizeDraft makes a restored draft consistent with the current product
// and settings, and creates preview handles for its images.
func (s *Session) normalizeDraft(d DraftOrder) DraftOrder {
	if d.Quantity < s.settings.MinQuantity {
		d.Quantity = s.settings.MinQuantity
	}

	if d.Variant != nil {
		if v, ok := s.product.FindVariant(d.Variant.Name); ok {
			d.Variant = &v
		} else {
			d.Variant = nil
		}
	}

	if d.PaymentMethod != "" && !s.paymentMethodAllowed(d.PaymentMethod) {
		d.PaymentMethod = ""
	}

	images := make([]UploadedImage, 0, len(d.Images))
	for _, img := range d.Images {
		raw, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			log.Warn().Err(err).Str("image_id", img.ID).Msg("checkout: dropping unreadable image from restored draft")
			continue
		}
		img.Preview = s.previews.Create(raw)
		images = append(images, img)
	}
	d.Images = s.trimImagesLocked(d.Quantity, images)

	return d
}

func (s *Session) paymentMethodAllowed(method string) bool {
	for _, m := range s.settings.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// trimImagesLocked reconciles images against quantity and releases the
// previews of whatever was dropped.
func (s *Session) trimImagesLocked(quantity int, images []UploadedImage) []UploadedImage {
	kept, dropped := Reconcile(quantity, images)
	for _, img := range dropped {
		s.previews.Release(img.Preview)
	}
	if len(dropped) > 0 {
		log.Info().Int("quantity", quantity).Int("dropped", len(dropped)).Msg("checkout: trimmed images to quantity")
	}
	return kept
}

func (s *Session) persistLocked(ctx context.Context) {
	s.draft.UpdatedAt = time.Now().UTC()

	stored := s.draft
	stored.Images = make([]UploadedImage, len(s.draft.Images))
	for i, img := range s.draft.Images {
		img.Preview = ""
		stored.Images[i] = img
	}

	if !s.drafts.Save(ctx, s.product.ID, stored) {
		log.Warn().Str("product_id", s.product.ID).Msg("checkout: draft not persisted, continuing without a durable draft")
	}
}

func (s *Session) destinationLocked() string {
	address, ok := s.customer.DeliveryAddress()
	if !ok {
		return ""
	}
	return address.CityID
}

// scheduleShippingLocked (re)starts the debounced shipping lookup for the
// current origin, destination and quantity. Offers quoted for the previous
// inputs are dropped at once; only the carrier choice is remembered.
func (s *Session) scheduleShippingLocked() {
	if s.draft.Shipping != nil {
		s.preferredCarrier = s.draft.Shipping.Carrier
	}
	s.draft.Shipping = nil
	s.offers = []shipping.Offer{}

	destination := s.destinationLocked()
	if s.origin.LocationID == "" || destination == "" {
		s.shippingStatus = ShippingIdle
		return
	}

	req := shipping.Request{
		Origin:      s.origin.LocationID,
		Destination: destination,
		WeightGrams: s.product.ShippingWeight(s.draft.Quantity),
	}

	s.shippingStatus = ShippingLoading
	s.shippingErr = ""
	s.debouncer.Trigger(func(tok shipping.Token) {
		s.fetchShipping(tok, req)
	})
}

func (s *Session) fetchShipping(tok shipping.Token, req shipping.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), s.settings.RefreshTimeout)
	defer cancel()

	offers, err := s.deps.Rates.Aggregate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !tok.Current() {
		log.Debug().Str("product_id", s.product.ID).Msg("checkout: discarding superseded shipping result")
		return
	}

	if err != nil || len(offers) == 0 {
		if err == nil {
			err = shipping.ErrNoCarrierAvailable
		}
		log.Warn().Err(err).Str("product_id", s.product.ID).Msg("checkout: shipping rates unavailable")
		s.offers = []shipping.Offer{}
		s.shippingStatus = ShippingError
		s.shippingErr = "shipping rates are unavailable, please try again"
		s.draft.Shipping = nil
		s.persistLocked(context.WithoutCancel(ctx))
		return
	}

	s.offers = offers
	s.shippingStatus = ShippingReady
	s.shippingErr = ""

	selected := offers[0]
	for _, o := range offers {
		if o.Carrier == s.preferredCarrier {
			selected = o
			break
		}
	}
	s.draft.Shipping = &selected
	s.persistLocked(context.WithoutCancel(ctx))
}

func (s *Session) checkOpenLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// SetQuantity updates the ordered quantity. Images beyond the new quantity
// are dropped in the same step, so no reader ever sees more images than units.
func (s *Session) SetQuantity(ctx context.Context, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if quantity < s.settings.MinQuantity {
		return fmt.Errorf("%w: got %d, minimum is %d", ErrQuantityBelowMinimum, quantity, s.settings.MinQuantity)
	}
	if quantity == s.draft.Quantity {
		return nil
	}

	s.draft.Quantity = quantity
	s.draft.Images = s.trimImagesLocked(quantity, s.draft.Images)
	s.scheduleShippingLocked()
	s.persistLocked(ctx)

	return nil
}

// SelectVariant picks a variant by name. An empty name clears the selection.
func (s *Session) SelectVariant(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}

	if name == "" {
		s.draft.Variant = nil
		s.persistLocked(ctx)
		return nil
	}

	v, ok := s.product.FindVariant(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	s.draft.Variant = &v
	s.persistLocked(ctx)

	return nil
}

func (s *Session) AddImage(ctx context.Context, filename, payload string) (UploadedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return UploadedImage{}, err
	}
	if IsLimitReached(s.draft.Quantity, len(s.draft.Images)) {
		return UploadedImage{}, ErrImageLimitReached
	}

	img, raw, err := NewUploadedImage(filename, payload, s.settings.MaxFileSize)
	if err != nil {
		return UploadedImage{}, err
	}
	img.Preview = s.previews.Create(raw)

	s.draft.Images = append(s.draft.Images, img)
	s.persistLocked(ctx)

	return img, nil
}

func (s *Session) RemoveImage(ctx context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}

	for i, img := range s.draft.Images {
		if img.ID != imageID {
			continue
		}
		s.previews.Release(img.Preview)
		images := make([]UploadedImage, 0, len(s.draft.Images)-1)
		images = append(images, s.draft.Images[:i]...)
		images = append(images, s.draft.Images[i+1:]...)
		s.draft.Images = images
		s.persistLocked(ctx)
		return nil
	}

	return fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
}

// SelectShipping selects the current offer of the given carrier.
func (s *Session) SelectShipping(ctx context.Context, carrier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if s.shippingStatus == ShippingLoading {
		return ErrShippingPending
	}

	for _, o := range s.offers {
		if o.Carrier == carrier {
			offer := o
			s.draft.Shipping = &offer
			s.preferredCarrier = carrier
			s.persistLocked(ctx)
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownCourier, carrier)
}

func (s *Session) SelectPaymentMethod(ctx context.Context, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if !s.paymentMethodAllowed(method) {
		return fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}

	s.draft.PaymentMethod = method
	s.persistLocked(ctx)

	return nil
}

func (s *Session) UploadProof(ctx context.Context, filename, payload string) (PaymentProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return PaymentProof{}, err
	}

	proof, err := NewPaymentProof(filename, payload, s.settings.MaxFileSize, time.Now().UTC())
	if err != nil {
		return PaymentProof{}, err
	}
	s.draft.PaymentProof = &proof
	s.persistLocked(ctx)

	return proof, nil
}

// RefreshShipping reloads the customer profile, so a newly added address is
// picked up, and schedules a new shipping lookup.
func (s *Session) RefreshShipping(ctx context.Context) error {
	customer, err := s.deps.Customers.GetCustomer(ctx, s.userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", s.userID).Msg("checkout: customer profile unavailable")
	} else {
		s.customer = customer
	}

	s.scheduleShippingLocked()
	s.persistLocked(ctx)
	return nil
}

// Submit assembles the order, hands it to the order sink and clears the
// draft. The session is closed afterwards.
func (s *Session) Submit(ctx context.Context) (*OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return nil, err
	}

	if s.customer == nil {
		customer, err := s.deps.Customers.GetCustomer(ctx, s.userID)
		if err != nil {
			return nil, &TransientError{Op: "load customer", Err: err}
		}
		s.customer = customer
	}

	draft := s.draft
	if s.shippingStatus != ShippingReady {
		draft.Shipping = nil
	}
	record, err := s.assembler.Assemble(s.product, s.customer, draft)
	if err != nil {
		if errors.Is(err, ErrCourierRequired) && s.shippingStatus == ShippingLoading {
			return nil, ErrShippingPending
		}
		return nil, err
	}

	if _, err := s.deps.Orders.Submit(ctx, record); err != nil {
		log.Error().Err(err).Str("order_id", record.ID).Msg("checkout: failed to submit order")
		return nil, &TransientError{Op: "submit order", Err: err}
	}

	if !s.drafts.Clear(ctx, s.product.ID) {
		log.Warn().Str("product_id", s.product.ID).Str("order_id", record.ID).Msg("checkout: order submitted but draft was not cleared, marking it submitted")
		s.draft.SubmittedOrderID = record.ID
		s.persistLocked(ctx)
	}
	s.closeLocked()

	log.Info().
		Str("order_id", record.ID).
		Stringer("user_id", s.userID).
		Int64("total", record.Total).
		Msg("checkout: order submitted")

	return record, nil
}

// Leave abandons the checkout. The draft is cleared and the session closed
// together: if the draft cannot be cleared the session stays open untouched.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if !s.drafts.Clear(ctx, s.product.ID) {
		return ErrDraftClearFailed
	}
	s.closeLocked()
	return nil
}

// Close ends the session and keeps the draft for the next visit.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closeLocked()
	}
}

func (s *Session) closeLocked() {
	s.closed = true
	s.debouncer.Stop()
	s.previews.ReleaseAll()
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Preview(handle string) ([]byte, bool) {
	return s.previews.Get(handle)
}

func (s *Session) PreviewCount() int {
	return s.previews.Len()
}
