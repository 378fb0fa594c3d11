package checkout

import (
	"fmt"
	"strings"
	"time"
)

const DefaultMinQuantity = 5

// Assembler validates a draft and turns it into an OrderRecord. It has no
// side effects.
type Assembler struct {
	minQuantity int
	now         func() time.Time
	newOrderID  func() string
}

func NewAssembler(minQuantity int) *Assembler {
	if minQuantity <= 0 {
		minQuantity = 1
	}
	return &Assembler{
		minQuantity: minQuantity,
		now:         func() time.Time { return time.Now().UTC() },
		newOrderID:  func() string { return "ORD-" + newID() },
	}
}

// Assemble checks, in order: variant, delivery address, images, courier,
// payment method, payment proof, and finally the minimum quantity. The first
// failed check is returned.
func (a *Assembler) Assemble(product *Product, customer *Customer, draft DraftOrder) (*OrderRecord, error) {
	if product == nil {
		return nil, ErrProductNotFound
	}

	var variant *Variant
	if product.HasVariants() {
		if draft.Variant == nil {
			return nil, ErrVariantRequired
		}
		v, ok := product.FindVariant(draft.Variant.Name)
		if !ok {
			return nil, ErrVariantRequired
		}
		variant = &v
	}

	address, ok := customer.DeliveryAddress()
	if !ok {
		return nil, ErrAddressRequired
	}

	if len(draft.Images) == 0 {
		return nil, ErrImagesRequired
	}

	if draft.Shipping == nil {
		return nil, ErrCourierRequired
	}

	if strings.TrimSpace(draft.PaymentMethod) == "" {
		return nil, ErrPaymentMethodRequired
	}

	if draft.PaymentProof == nil {
		return nil, ErrPaymentProofRequired
	}

	if draft.Quantity < a.minQuantity {
		return nil, fmt.Errorf("%w: got %d, minimum is %d", ErrQuantityBelowMinimum, draft.Quantity, a.minQuantity)
	}

	images, _ := Reconcile(draft.Quantity, draft.Images)
	imagesCopy := make([]UploadedImage, len(images))
	for i, img := range images {
		img.Preview = ""
		imagesCopy[i] = img
	}

	unitPrice := product.UnitPrice(variant)
	subtotal := unitPrice * int64(draft.Quantity)
	offer := *draft.Shipping

	var cover string
	if len(product.Images) > 0 {
		cover = product.Images[0]
	}

	return &OrderRecord{
		ID: a.newOrderID(),
		Product: ProductSnapshot{
			ID:          product.ID,
			Name:        product.Name,
			Description: product.Description,
			Price:       product.Price,
			Image:       cover,
		},
		Quantity:      draft.Quantity,
		Variant:       variant,
		UnitPrice:     unitPrice,
		Subtotal:      subtotal,
		Shipping:      offer,
		ShippingCost:  offer.Cost,
		Total:         subtotal + offer.Cost,
		PaymentMethod: draft.PaymentMethod,
		PaymentProof:  *draft.PaymentProof,
		Customer: CustomerSnapshot{
			ID:      customer.ID,
			Name:    customer.Name,
			Phone:   customer.Phone,
			Email:   customer.Email,
			Address: address,
		},
		Distribution: Distribute(draft.Quantity, len(imagesCopy)),
		Images:       imagesCopy,
		SubmittedAt:  a.now(),
		Status:       StatusPending,
	}, nil
}
