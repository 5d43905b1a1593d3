package detect

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/Artem468/hakaton-ml-lep/internal/model"
)

// Preview bounds; aspect ratio is preserved and images are never upscaled.
const previewMaxSize = 512

const boxThickness = 3

var boxColor = color.NRGBA{R: 255, G: 64, B: 64, A: 255}

// DefaultFormat is used when the source encoding cannot be determined.
const DefaultFormat = "jpeg"

// DecodeImage decodes an image and reports its encoded format, falling back
// to DefaultFormat when the decoder cannot name it.
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if format == "" {
		format = DefaultFormat
	}
	return img, format, nil
}

// Annotate returns a copy of the image with every detection drawn as a box
// overlay. The original is left untouched.
func Annotate(img image.Image, detections []model.Detection) *image.NRGBA {
	out := imaging.Clone(img)
	for _, d := range detections {
		strokeRect(out,
			image.Rect(int(d.BBox[0]), int(d.BBox[1]), int(d.BBox[2]), int(d.BBox[3])),
		)
	}
	return out
}

// Preview scales the image down to fit the preview bounds.
func Preview(img image.Image) *image.NRGBA {
	return imaging.Fit(img, previewMaxSize, previewMaxSize, imaging.Lanczos)
}

// Encode serializes the image in the named format, defaulting to JPEG for
// unknown names. The returned content type matches the encoding.
func Encode(img image.Image, format string) ([]byte, string, error) {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		f = imaging.JPEG
		format = DefaultFormat
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), "image/" + format, nil
}

// strokeRect draws the rectangle's edges onto dst, clipped to its bounds.
func strokeRect(dst *image.NRGBA, r image.Rectangle) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(dst, x, r.Min.Y+t)
			setPixel(dst, x, r.Max.Y-1-t)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPixel(dst, r.Min.X+t, y)
			setPixel(dst, r.Max.X-1-t, y)
		}
	}
}

func setPixel(dst *image.NRGBA, x, y int) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetNRGBA(x, y, boxColor)
	}
}
