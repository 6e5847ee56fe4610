// Package payload decodes captured frames handed over by the UI collaborator.
// A payload is either raw base64 or a data URI of the form
// "data:image/<subtype>;base64,<data>".
package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	// Decoders registered for format sniffing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrMalformedPayload is returned when a payload is not decodable image data.
var ErrMalformedPayload = errors.New("malformed image payload")

// MaxEncodedSize bounds the length of an encoded payload.
const MaxEncodedSize = 64 * 1024 * 1024

var dataURIPrefix = regexp.MustCompile(`(?i)^data:image/[a-z0-9.+-]+;base64,`)

// Image is a decoded payload.
type Image struct {
	Data []byte
	// Format is the name reported by image.DecodeConfig ("jpeg", "png", ...),
	// empty when verification is disabled.
	Format string
	Width  int
	Height int
}

// Decoder turns payload strings into raw image bytes.
type Decoder struct {
	verifyImage bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithImageVerification controls whether decoded bytes must be a recognised
// image. It is enabled by default.
func WithImageVerification(enabled bool) Option {
	return func(d *Decoder) {
		d.verifyImage = enabled
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{verifyImage: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode strips an optional data URI prefix and base64-decodes the rest.
func (d *Decoder) Decode(s string) (Image, error) {
	if len(s) > MaxEncodedSize {
		return Image{}, fmt.Errorf("%w: payload exceeds %d bytes", ErrMalformedPayload, MaxEncodedSize)
	}
	s = strings.TrimSpace(s)
	s = dataURIPrefix.ReplaceAllString(s, "")
	s = stripWhitespace(s)
	if s == "" {
		return Image{}, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	data, err := decodeBase64(s)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	img := Image{Data: data}
	if !d.verifyImage {
		return img, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: not a recognised image: %v", ErrMalformedPayload, err)
	}
	img.Format = format
	img.Width = cfg.Width
	img.Height = cfg.Height
	return img, nil
}

// decodeBase64 accepts both padded and unpadded standard encodings.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// stripWhitespace removes line breaks that MIME-style encoders insert.
func stripWhitespace(s string) string {
	if !strings.ContainsAny(s, " \t\r\n") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
