// Package media validates, downscales and stores uploaded images.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

var (
	ErrEmpty             = errors.New("image is empty")
	ErrTooLarge          = errors.New("image is too large")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

const jpegQuality = 88

// Processed is an image ready to store.
type Processed struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

type Processor struct {
	MaxBytes int64
	MaxWidth int
}

func NewProcessor(maxBytes int64, maxWidth int) Processor {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if maxWidth <= 0 {
		maxWidth = 1920
	}
	return Processor{MaxBytes: maxBytes, MaxWidth: maxWidth}
}

// Validate checks size and format without decoding the full image.
func (p Processor) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > p.MaxBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, p.MaxBytes)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	switch format {
	case "jpeg", "png", "gif":
		return format, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Process downscales images wider than MaxWidth and re-encodes them.
// JPEG stays JPEG; PNG and GIF become PNG.
func (p Processor) Process(data []byte) (Processed, error) {
	format, err := p.Validate(data)
	if err != nil {
		return Processed{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Processed{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if img.Bounds().Dx() > p.MaxWidth {
		img = imaging.Resize(img, p.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	out := Processed{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if format == "jpeg" {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
		out.ContentType, out.Ext = "image/jpeg", ".jpg"
	} else {
		err = png.Encode(&buf, img)
		out.ContentType, out.Ext = "image/png", ".png"
	}
	if err != nil {
		return Processed{}, fmt.Errorf("encode image: %w", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}
