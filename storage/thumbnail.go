package storage

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"io"

	"golang.org/x/image/draw"
)

// MaxPixels bounds the decoded size of an image, so a small file with a
// forged header cannot force a huge allocation.
const MaxPixels = 50_000_000

var (
	ErrEmptyImage    = errors.New("storage: image has no pixels")
	ErrTooManyPixels = errors.New("storage: image dimensions exceed the pixel limit")
)

// Thumbnail decodes r and returns a JPEG that fits in a max x max box.
// Images already smaller than the box keep their size.
func Thumbnail(r io.Reader, max int) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if tooManyPixels(cfg.Width, cfg.Height) {
		return nil, ErrTooManyPixels
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}
	if max <= 0 {
		max = 256
	}

	nw, nh := w, h
	if w > h {
		if w > max {
			nw = max
			nh = int(float64(h) * (float64(max) / float64(w)))
		}
	} else if h > max {
		nh = max
		nw = int(float64(w) * (float64(max) / float64(h)))
	}
	nw, nh = atLeastOne(nw), atLeastOne(nh)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func tooManyPixels(w, h int) bool {
	return int64(w)*int64(h) > MaxPixels
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
