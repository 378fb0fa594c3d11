package checkout_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

func images(n int) []checkout.UploadedImage {
	out := make([]checkout.UploadedImage, n)
	for i := range out {
		out[i] = checkout.UploadedImage{ID: fmt.Sprintf("img-%d", i+1)}
	}
	return out
}

func ids(imgs []checkout.UploadedImage) []string {
	out := make([]string, len(imgs))
	for i, img := range imgs {
		out[i] = img.ID
	}
	return out
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		quantity    int
		images      int
		wantKept    []string
		wantDropped []string
	}{
		{name: "under_limit", quantity: 5, images: 3, wantKept: []string{"img-1", "img-2", "img-3"}, wantDropped: []string{}},
		{name: "at_limit", quantity: 2, images: 2, wantKept: []string{"img-1", "img-2"}, wantDropped: []string{}},
		{name: "trims_most_recent", quantity: 2, images: 4, wantKept: []string{"img-1", "img-2"}, wantDropped: []string{"img-3", "img-4"}},
		{name: "negative_quantity_drops_all", quantity: -1, images: 2, wantKept: []string{}, wantDropped: []string{"img-1", "img-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, dropped := checkout.Reconcile(tt.quantity, images(tt.images))
			assert.Equal(t, tt.wantKept, ids(kept))
			assert.Equal(t, tt.wantDropped, ids(dropped))
		})
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	for quantity := 0; quantity <= 6; quantity++ {
		for n := 0; n <= 8; n++ {
			once, _ := checkout.Reconcile(quantity, images(n))
			twice, droppedAgain := checkout.Reconcile(quantity, once)
			assert.Equal(t, ids(once), ids(twice), "q=%d n=%d", quantity, n)
			assert.Empty(t, droppedAgain, "q=%d n=%d", quantity, n)
		}
	}
}

func TestReconcile_DoesNotAliasInput(t *testing.T) {
	in := images(4)
	kept, _ := checkout.Reconcile(2, in)
	kept[0].ID = "changed"
	assert.Equal(t, "img-1", in[0].ID)
}

func TestImagePolicy(t *testing.T) {
	assert.False(t, checkout.IsLimitReached(5, 4))
	assert.True(t, checkout.IsLimitReached(5, 5))
	assert.True(t, checkout.IsLimitReached(5, 6))

	assert.Equal(t, checkout.ErrImagesRequired.Message, checkout.ImageMessage(5, 0))
	assert.Equal(t, "image limit reached: 5 of 5 uploaded", checkout.ImageMessage(5, 5))
	assert.Empty(t, checkout.ImageMessage(5, 3))
}
