package checkout

import "fmt"

const msgNoImages = "please upload at least one reference image"

// Reconcile trims images so there are never more than quantity of them.
// The most recently added images go first. Calling it again on kept is a
// no-op.
func Reconcile(quantity int, images []UploadedImage) (kept, dropped []UploadedImage) {
	if quantity < 0 {
		quantity = 0
	}
	if len(images) <= quantity {
		return images, nil
	}

	kept = make([]UploadedImage, quantity)
	copy(kept, images[:quantity])
	dropped = make([]UploadedImage, len(images)-quantity)
	copy(dropped, images[quantity:])

	return kept, dropped
}

func IsLimitReached(quantity, imageCount int) bool {
	return imageCount >= quantity
}

// ImageMessage is the hint shown next to the image uploader: a prompt when
// nothing is uploaded, a notice once the limit is reached, empty otherwise.
func ImageMessage(quantity, imageCount int) string {
	switch {
	case imageCount == 0:
		return msgNoImages
	case IsLimitReached(quantity, imageCount):
		return fmt.Sprintf("image limit reached: %d of %d uploaded", imageCount, quantity)
	default:
		return ""
	}
}
