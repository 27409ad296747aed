package storage

import (
	"fmt"
	"image"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

type Probe struct {
	ContentType string
	Extension   string
	Width       int
	Height      int
}

func (p *Probe) IsImage() bool {
	return strings.HasPrefix(p.ContentType, "image/")
}

// Oversized reports whether the probed dimensions exceed MaxPixels.
func (p *Probe) Oversized() bool {
	return tooManyPixels(p.Width, p.Height)
}

// ProbeFile sniffs the content type of r and, for decodable images, its
// dimensions. r is rewound before returning.
func ProbeFile(r io.ReadSeeker) (*Probe, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	p := &Probe{
		ContentType: mt.String(),
		Extension:   mt.Extension(),
	}
	if p.IsImage() {
		if cfg, _, err := image.DecodeConfig(r); err == nil {
			p.Width, p.Height = cfg.Width, cfg.Height
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return p, nil
}
