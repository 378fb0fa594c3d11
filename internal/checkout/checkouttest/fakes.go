// Package checkouttest provides in-memory collaborators for checkout tests.
package checkouttest

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

// Minimal file headers mimetype recognises.
var (
	PNG  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	JPEG = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 32)...)
)

func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

type Catalog struct {
	Products map[string]*checkout.Product
	Err      error
}

func (c *Catalog) GetByID(_ context.Context, id string) (*checkout.Product, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	p, ok := c.Products[id]
	if !ok {
		return nil, checkout.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

type Store struct {
	Origin checkout.Origin
	Err    error
}

func (s *Store) GetOrigin(context.Context) (checkout.Origin, error) {
	return s.Origin, s.Err
}

type Customers struct {
	mu        sync.Mutex
	Customers map[uuid.UUID]*checkout.Customer
	Err       error
}

func (c *Customers) GetCustomer(_ context.Context, userID uuid.UUID) (*checkout.Customer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	cust, ok := c.Customers[userID]
	if !ok {
		return &checkout.Customer{ID: userID}, nil
	}
	cp := *cust
	return &cp, nil
}

func (c *Customers) Put(cust *checkout.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Customers == nil {
		c.Customers = make(map[uuid.UUID]*checkout.Customer)
	}
	c.Customers[cust.ID] = cust
}

// Rates answers with Offers unless Fn is set.
type Rates struct {
	mu       sync.Mutex
	Offers   []shipping.Offer
	Err      error
	Fn       func(ctx context.Context, req shipping.Request) ([]shipping.Offer, error)
	Requests []shipping.Request
}

func (r *Rates) Aggregate(ctx context.Context, req shipping.Request) ([]shipping.Offer, error) {
	r.mu.Lock()
	r.Requests = append(r.Requests, req)
	fn, offers, err := r.Fn, r.Offers, r.Err
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return []shipping.Offer{}, err
	}
	out := make([]shipping.Offer, len(offers))
	copy(out, offers)
	return out, nil
}

func (r *Rates) SetFn(fn func(ctx context.Context, req shipping.Request) ([]shipping.Offer, error)) {
	r.mu.Lock()
	r.Fn = fn
	r.mu.Unlock()
}

func (r *Rates) Calls() []shipping.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shipping.Request, len(r.Requests))
	copy(out, r.Requests)
	return out
}

type Sink struct {
	mu     sync.Mutex
	Orders []*checkout.OrderRecord
	Err    error
}

func (s *Sink) Submit(_ context.Context, order *checkout.OrderRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.Orders = append(s.Orders, order)
	return order.ID, nil
}

func (s *Sink) Submitted() []*checkout.OrderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*checkout.OrderRecord(nil), s.Orders...)
}

var ErrUnavailable = errors.New("checkouttest: unavailable")

// Drafts is an in-memory DraftStore whose writes can be made to fail.
type Drafts struct {
	mu        sync.Mutex
	drafts    map[string]checkout.DraftOrder
	FailSave  bool
	FailClear bool
	Saves     int
}

func NewDrafts() *Drafts {
	return &Drafts{drafts: make(map[string]checkout.DraftOrder)}
}

func (d *Drafts) Load(_ context.Context, productID string) (checkout.DraftOrder, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	draft, ok := d.drafts[productID]
	return draft, ok
}

func (d *Drafts) Save(_ context.Context, productID string, draft checkout.DraftOrder) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailSave {
		return false
	}
	d.Saves++
	d.drafts[productID] = draft
	return true
}

func (d *Drafts) Clear(_ context.Context, productID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailClear {
		return false
	}
	delete(d.drafts, productID)
	return true
}

func (d *Drafts) SetFailClear(fail bool) {
	d.mu.Lock()
	d.FailClear = fail
	d.mu.Unlock()
}

// Env bundles a ready-to-use set of collaborators.
type Env struct {
	Catalog   *Catalog
	Store     *Store
	Customers *Customers
	Rates     *Rates
	Sink      *Sink
	Drafts    *Drafts
}

func NewEnv() *Env {
	return &Env{
		Catalog:   &Catalog{Products: map[string]*checkout.Product{}},
		Store:     &Store{Origin: checkout.Origin{LocationID: "501", City: "Yogyakarta", Province: "DI Yogyakarta"}},
		Customers: &Customers{},
		Rates:     &Rates{},
		Sink:      &Sink{},
		Drafts:    NewDrafts(),
	}
}

func (e *Env) Deps() checkout.Deps {
	return checkout.Deps{
		Products:  e.Catalog,
		Store:     e.Store,
		Customers: e.Customers,
		Rates:     e.Rates,
		Orders:    e.Sink,
		Drafts:    func(uuid.UUID) checkout.DraftStore { return e.Drafts },
	}
}
