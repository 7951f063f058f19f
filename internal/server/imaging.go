package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var errImageTooLarge = errors.New("image too large")

// processUpload validates an uploaded image and downsizes it when one side
// exceeds maxDim. Images larger than maxUploadDim on either side are rejected.
// Resized images are re-encoded as PNG; others are kept byte for byte.
func processUpload(data []byte, maxDim, maxUploadDim int) ([]byte, string, image.Point, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", image.Point{}, fmt.Errorf("invalid image format: %w", err)
	}
	if cfg.Width > maxUploadDim || cfg.Height > maxUploadDim {
		return nil, "", image.Point{}, fmt.Errorf("%w: dimensions exceed %dx%d", errImageTooLarge, maxUploadDim, maxUploadDim)
	}
	size := image.Pt(cfg.Width, cfg.Height)
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return data, "image/" + format, size, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", image.Point{}, fmt.Errorf("failed to load image: %w", err)
	}
	w, h := fitWithin(cfg.Width, cfg.Height, maxDim)
	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	out, err := encodePNG(resized)
	if err != nil {
		return nil, "", image.Point{}, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return out, "image/png", image.Pt(w, h), nil
}

// fitWithin scales (w, h) down so the longest side equals limit, keeping the ratio.
func fitWithin(w, h, limit int) (int, int) {
	if w >= h {
		return limit, max(h*limit/w, 1)
	}
	return max(w*limit/h, 1), limit
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
