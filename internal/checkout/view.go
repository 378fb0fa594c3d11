package checkout

import (
	"time"

	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
)

type ImageView struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
	Preview  string `json:"preview"`
}

type ProofView struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MIMEType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type ShippingView struct {
	Status   ShippingStatus   `json:"status"`
	Offers   []shipping.Offer `json:"offers"`
	Selected *shipping.Offer  `json:"selected,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// View is a consistent snapshot of a session for rendering.
type View struct {
	ProductID         string              `json:"product_id"`
	ProductName       string              `json:"product_name"`
	Variants          []Variant           `json:"variants"`
	Quantity          int                 `json:"quantity"`
	MinQuantity       int                 `json:"min_quantity"`
	Variant           *Variant            `json:"variant,omitempty"`
	Images            []ImageView         `json:"images"`
	ImageLimitReached bool                `json:"image_limit_reached"`
	ImageMessage      string              `json:"image_message,omitempty"`
	Distribution      []DistributionEntry `json:"distribution"`
	Origin            Origin              `json:"origin"`
	Shipping          ShippingView        `json:"shipping"`
	PaymentMethods    []string            `json:"payment_methods"`
	PaymentMethod     string              `json:"payment_method,omitempty"`
	PaymentProof      *ProofView          `json:"payment_proof,omitempty"`
	UnitPrice         int64               `json:"unit_price"`
	Subtotal          int64               `json:"subtotal"`
	Total             int64               `json:"total"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	images := make([]ImageView, len(s.draft.Images))
	for i, img := range s.draft.Images {
		images[i] = ImageView{
			ID:       img.ID,
			Filename: img.Filename,
			Size:     img.Size,
			MIMEType: img.MIMEType,
			Preview:  img.Preview,
		}
	}

	offers := make([]shipping.Offer, len(s.offers))
	copy(offers, s.offers)

	v := View{
		ProductID:         s.product.ID,
		ProductName:       s.product.Name,
		Variants:          s.product.Variants,
		Quantity:          s.draft.Quantity,
		MinQuantity:       s.settings.MinQuantity,
		Images:            images,
		ImageLimitReached: IsLimitReached(s.draft.Quantity, len(images)),
		ImageMessage:      ImageMessage(s.draft.Quantity, len(images)),
		Distribution:      Distribute(s.draft.Quantity, len(images)),
		Origin:            s.origin,
		Shipping: ShippingView{
			Status: s.shippingStatus,
			Offers: offers,
			Error:  s.shippingErr,
		},
		PaymentMethods: s.settings.PaymentMethods,
		PaymentMethod:  s.draft.PaymentMethod,
		UpdatedAt:      s.draft.UpdatedAt,
	}

	if s.draft.Variant != nil {
		variant := *s.draft.Variant
		v.Variant = &variant
	}
	if s.draft.Shipping != nil {
		selected := *s.draft.Shipping
		v.Shipping.Selected = &selected
	}
	if p := s.draft.PaymentProof; p != nil {
		v.PaymentProof = &ProofView{
			ID:         p.ID,
			Filename:   p.Filename,
			Size:       p.Size,
			MIMEType:   p.MIMEType,
			UploadedAt: p.UploadedAt,
		}
	}

	v.UnitPrice = s.product.UnitPrice(s.draft.Variant)
	v.Subtotal = v.UnitPrice * int64(s.draft.Quantity)
	v.Total = v.Subtotal
	if s.draft.Shipping != nil {
		v.Total += s.draft.Shipping.Cost
	}

	return v
}
