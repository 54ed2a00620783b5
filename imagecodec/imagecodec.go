// Package imagecodec turns fetched bytes into decoded images.
package imagecodec

import (
	"bytes"
	"image"

	// Formats served by photo feeds. Registration makes image.Decode
	// recognise them.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/pkg/errors"

	"github.com/IvanBrykalov/thumbcache/photoerr"
)

// Decoder decodes raw image bytes. Failures are *photoerr.DecodeError.
type Decoder interface {
	Decode(source string, data []byte) (image.Image, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(source string, data []byte) (image.Image, error)

// Decode calls f.
func (f DecoderFunc) Decode(source string, data []byte) (image.Image, error) {
	return f(source, data)
}

// Standard decodes every format registered with the image package
// (JPEG, PNG, GIF and WebP here). MaxPixels > 0 rejects images whose
// declared dimensions exceed it before any pixel data is decoded.
type Standard struct {
	MaxPixels int64
}

var _ Decoder = Standard{}

// Decode sniffs the format and decodes data.
func (d Standard) Decode(source string, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, photoerr.Decode(source, errors.New("empty payload"))
	}
	if d.MaxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, photoerr.Decode(source, err)
		}
		if int64(cfg.Width)*int64(cfg.Height) > d.MaxPixels {
			return nil, photoerr.Decode(source, errors.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, d.MaxPixels))
		}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, photoerr.Decode(source, errors.Wrapf(err, "format %q", format))
	}
	return img, nil
}

// Format reports the registered format name of data, or "" if unknown.
func Format(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return format
}
