package detect

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Artem468/hakaton-ml-lep/internal/model"
)

func encodeTestImage(t *testing.T, w, h int, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDecodeImageFormats(t *testing.T) {
	jpg := encodeTestImage(t, 10, 10, func(b *bytes.Buffer, i image.Image) error { return jpeg.Encode(b, i, nil) })
	_, format, err := DecodeImage(jpg)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	pngData := encodeTestImage(t, 10, 10, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) })
	_, format, err = DecodeImage(pngData)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	_, _, err = DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestAnnotateDrawsBoxes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	out := Annotate(src, []model.Detection{
		{Class: "insulator", Confidence: 0.9, BBox: [4]float64{10, 10, 50, 50}},
	})

	assert.Equal(t, boxColor, out.NRGBAAt(10, 10))
	assert.Equal(t, boxColor, out.NRGBAAt(30, 10))
	assert.Equal(t, boxColor, out.NRGBAAt(10, 30))
	// Interior stays untouched.
	assert.NotEqual(t, boxColor, out.NRGBAAt(30, 30))
	// Source image is not mutated.
	assert.NotEqual(t, boxColor, src.NRGBAAt(10, 10))
}

func TestAnnotateClipsOutOfBoundsBox(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	out := Annotate(src, []model.Detection{
		{BBox: [4]float64{-10, -10, 500, 500}},
	})
	assert.Equal(t, 20, out.Bounds().Dx())
}

func TestPreviewBounds(t *testing.T) {
	large := image.NewNRGBA(image.Rect(0, 0, 2048, 1024))
	p := Preview(large)
	assert.Equal(t, 512, p.Bounds().Dx())
	assert.Equal(t, 256, p.Bounds().Dy(), "aspect ratio preserved")

	small := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	p = Preview(small)
	assert.Equal(t, 100, p.Bounds().Dx(), "no upscaling")
	assert.Equal(t, 80, p.Bounds().Dy())
}

func TestEncodeContentType(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	data, ct, err := Encode(img, "png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.NotEmpty(t, data)

	// Unknown formats fall back to JPEG.
	data, ct, err = Encode(img, "webp2000")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
	assert.NotEmpty(t, data)
}
