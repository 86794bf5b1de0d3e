package helper

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const thumbnailMaxDim = 72

// MakeThumbnail produces the small JPEG preview WhatsApp expects alongside an
// outgoing image message. WebP input is decoded explicitly because image's
// registry does not cover it.
func MakeThumbnail(data []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	if strings.EqualFold(mimeType, "image/webp") {
		img, err = webp.Decode(bytes.NewReader(data))
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailMaxDim, thumbnailMaxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// IsImageMime reports whether the mime type should be sent as an image
// message rather than a document.
func IsImageMime(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}
