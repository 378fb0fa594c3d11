package checkout

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

const DefaultMaxFileSize int64 = 5 << 20

var acceptedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

type decodedFile struct {
	raw      []byte
	mimeType string
}

// decodeImage accepts plain base64 or a data URL. The MIME type is sniffed
// from the bytes; whatever the client claims is ignored.
func decodeImage(payload string, maxSize int64) (decodedFile, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return decodedFile{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(raw) == 0 {
		return decodedFile{}, fmt.Errorf("%w: empty file", ErrInvalidEncoding)
	}
	if maxSize > 0 && int64(len(raw)) > maxSize {
		return decodedFile{}, fmt.Errorf("%w: %d bytes, limit is %d", ErrFileTooLarge, len(raw), maxSize)
	}

	mt := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mt.String(), acceptedImageTypes...) {
		return decodedFile{}, fmt.Errorf("%w: got %s", ErrUnsupportedFileType, mt.String())
	}

	return decodedFile{raw: raw, mimeType: mt.String()}, nil
}

func newID() string {
	return ulid.Make().String()
}

// NewUploadedImage validates a reference image upload.
func NewUploadedImage(filename, payload string, maxSize int64) (UploadedImage, []byte, error) {
	f, err := decodeImage(payload, maxSize)
	if err != nil {
		return UploadedImage{}, nil, err
	}

	return UploadedImage{
		ID:       newID(),
		Filename: filename,
		Size:     int64(len(f.raw)),
		MIMEType: f.mimeType,
		Data:     base64.StdEncoding.EncodeToString(f.raw),
	}, f.raw, nil
}

// NewPaymentProof validates a payment proof upload.
func NewPaymentProof(filename, payload string, maxSize int64, uploadedAt time.Time) (PaymentProof, error) {
	f, err := decodeImage(payload, maxSize)
	if err != nil {
		return PaymentProof{}, err
	}

	return PaymentProof{
		ID:         newID(),
		Filename:   filename,
		Size:       int64(len(f.raw)),
		MIMEType:   f.mimeType,
		Data:       base64.StdEncoding.EncodeToString(f.raw),
		UploadedAt: uploadedAt,
	}, nil
}
