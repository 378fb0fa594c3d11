package checkout

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

const StatusPending = "pending"

type Variant struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Variants    []Variant `json:"variants"`
	Images      []string  `json:"images"`
	WeightGrams int       `json:"weight_grams"`
}

func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

func (p *Product) FindVariant(name string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// UnitPrice is the selected variant's price for products with variants,
// the base price otherwise.
func (p *Product) UnitPrice(selected *Variant) int64 {
	if p.HasVariants() {
		if selected == nil {
			return 0
		}
		return selected.Price
	}
	return p.Price
}

// ShippingWeight returns zero when the product weight is unknown so the
// aggregator falls back to its default.
func (p *Product) ShippingWeight(quantity int) int {
	if p.WeightGrams <= 0 || quantity <= 0 {
		return 0
	}
	return p.WeightGrams * quantity
}

type UploadedImage struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
	Preview  string `json:"-"`
}

type PaymentProof struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MIMEType   string    `json:"mime_type"`
	Data       string    `json:"data"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DraftOrder is the persisted, not yet submitted checkout state of one product.
type DraftOrder struct {
	Quantity      int             `json:"quantity"`
	Variant       *Variant        `json:"variant,omitempty"`
	Images        []UploadedImage `json:"images"`
	Shipping      *shipping.Offer `json:"shipping,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	PaymentProof  *PaymentProof   `json:"payment_proof,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
	// SubmittedOrderID marks a draft whose order went through but which
	// could not be cleared. Such a draft is never restored.
	SubmittedOrderID string `json:"submitted_order_id,omitempty"`
}

type Address struct {
	Label      string `json:"label,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	CityID     string `json:"city_id,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	IsPrimary  bool   `json:"is_primary"`
}

type Customer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Addresses []Address `json:"addresses"`
}

// DeliveryAddress picks the primary address, or the first one when none is
// flagged primary.
func (c *Customer) DeliveryAddress() (Address, bool) {
	if c == nil || len(c.Addresses) == 0 {
		return Address{}, false
	}
	for _, a := range c.Addresses {
		if a.IsPrimary {
			return a, true
		}
	}
	return c.Addresses[0], true
}

// Origin is where parcels ship from.
type Origin struct {
	LocationID string `json:"location_id"`
	City       string `json:"city"`
	Province   string `json:"province"`
}

type ProductSnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Image       string `json:"image,omitempty"`
}

type CustomerSnapshot struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone"`
	Email   string    `json:"email"`
	Address Address   `json:"address"`
}

// OrderRecord is the finalized order. Nothing in this package mutates it
// after Assemble returns.
type OrderRecord struct {
	ID            string              `json:"id"`
	Product       ProductSnapshot     `json:"product"`
	Quantity      int                 `json:"quantity"`
	Variant       *Variant            `json:"variant,omitempty"`
	UnitPrice     int64               `json:"unit_price"`
	Subtotal      int64               `json:"subtotal"`
	Shipping      shipping.Offer      `json:"shipping"`
	ShippingCost  int64               `json:"shipping_cost"`
	Total         int64               `json:"total"`
	PaymentMethod string              `json:"payment_method"`
	PaymentProof  PaymentProof        `json:"payment_proof"`
	Customer      CustomerSnapshot    `json:"customer"`
	Distribution  []DistributionEntry `json:"distribution"`
	Images        []UploadedImage     `json:"images"`
	SubmittedAt   time.Time           `json:"submitted_at"`
	Status        string              `json:"status"`
}
