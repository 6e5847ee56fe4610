package payload

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestDecoder_Decode(t *testing.T) {
	jpg := encodeJPEG(t)
	pngData := encodePNG(t)
	b64 := base64.StdEncoding.EncodeToString(jpg)

	tests := []struct {
		name       string
		input      string
		wantData   []byte
		wantFormat string
	}{
		{name: "raw base64", input: b64, wantData: jpg, wantFormat: "jpeg"},
		{name: "jpeg data uri", input: "data:image/jpeg;base64," + b64, wantData: jpg, wantFormat: "jpeg"},
		{name: "uppercase data uri", input: "DATA:IMAGE/JPEG;BASE64," + b64, wantData: jpg, wantFormat: "jpeg"},
		{name: "png data uri", input: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData), wantData: pngData, wantFormat: "png"},
		{name: "unpadded", input: base64.RawStdEncoding.EncodeToString(jpg), wantData: jpg, wantFormat: "jpeg"},
		{name: "surrounding whitespace", input: "  \n" + b64 + "\n", wantData: jpg, wantFormat: "jpeg"},
		{name: "wrapped lines", input: b64[:20] + "\r\n" + b64[20:], wantData: jpg, wantFormat: "jpeg"},
	}

	d := NewDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := d.Decode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, img.Data)
			assert.Equal(t, tt.wantFormat, img.Format)
		})
	}
}

func TestDecoder_Decode_Dimensions(t *testing.T) {
	img, err := NewDecoder().Decode(base64.StdEncoding.EncodeToString(encodeJPEG(t)))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
}

func TestDecoder_Decode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "whitespace only", input: "   "},
		{name: "prefix only", input: "data:image/jpeg;base64,"},
		{name: "invalid characters", input: "not base64 at all!!"},
		{name: "valid base64 but not an image", input: base64.StdEncoding.EncodeToString([]byte("hello world"))},
		{name: "non-image data uri", input: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("x"))},
	}

	d := NewDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(tt.input)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestDecoder_WithoutVerification(t *testing.T) {
	raw := []byte("arbitrary bytes")
	d := NewDecoder(WithImageVerification(false))

	img, err := d.Decode("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, img.Data)
	assert.Empty(t, img.Format)

	_, err = d.Decode("%%%")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecoder_RejectsOversizedPayload(t *testing.T) {
	d := NewDecoder(WithImageVerification(false))
	_, err := d.Decode(strings.Repeat("A", MaxEncodedSize+4))
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Contains(t, err.Error(), "exceeds")
}
