package ai

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"yolodetect/internal/config"
)

// DecodeImage decodes JPEG, PNG, GIF, BMP, TIFF or WebP bytes. Images whose
// header declares more than maxPixels pixels are rejected before any pixel
// data is allocated; maxPixels <= 0 means config.DefaultMaxImagePixels.
func DecodeImage(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, &InputError{Reason: "empty upload"}
	}
	if maxPixels <= 0 {
		maxPixels = config.DefaultMaxImagePixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &InputError{Reason: "image has no pixels"}
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, &InputError{Reason: fmt.Sprintf("image of %dx%d exceeds the %d pixel limit", cfg.Width, cfg.Height, maxPixels)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}

	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &InputError{Reason: "image has no pixels"}
	}
	return img, nil
}

func decodeError(err error) *InputError {
	if errors.Is(err, image.ErrFormat) {
		return &InputError{Reason: "unsupported or unrecognized image format"}
	}
	return &InputError{Reason: "corrupt image data", Err: err}
}
