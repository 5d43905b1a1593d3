// Package gps extracts capture coordinates from image EXIF metadata.
package gps

import (
	"bytes"
	"math/rand"

	"github.com/rwcarlsen/goexif/exif"
)

// FallbackConfig controls placeholder coordinate generation for images that
// carry no GPS metadata. It is a demonstration stand-in, not a real position
// source, and stays disabled unless explicitly switched on.
type FallbackConfig struct {
	Enabled bool
	BaseLat float64
	BaseLon float64
}

// Extractor resolves an image's coordinates from embedded EXIF data.
type Extractor struct {
	fallback FallbackConfig
}

func NewExtractor(fallback FallbackConfig) *Extractor {
	return &Extractor{fallback: fallback}
}

// Coordinates returns the decimal-degree position embedded in the image, with
// southern and western hemispheres negative. When the image has no usable fix
// it returns nils, unless the placeholder fallback is enabled, in which case
// a jittered position around the configured base point is generated.
func (e *Extractor) Coordinates(imageData []byte) (lat, lon *float64) {
	x, err := exif.Decode(bytes.NewReader(imageData))
	if err == nil {
		if la, lo, err := x.LatLong(); err == nil {
			return &la, &lo
		}
	}

	if e.fallback.Enabled {
		la := e.fallback.BaseLat + (rand.Float64()-0.5)*0.1
		lo := e.fallback.BaseLon + (rand.Float64()-0.5)*0.1
		return &la, &lo
	}
	return nil, nil
}
