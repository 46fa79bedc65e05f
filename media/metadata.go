package media

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/rwcarlsen/goexif/exif"
)

// ExtractMetadata reads dimensions and, when present, the EXIF GPS position
// and capture time from in-memory image bytes. Missing EXIF is not an error.
func ExtractMetadata(data []byte) (*Metadata, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	w, h := config.Width, config.Height
	meta := &Metadata{Width: &w, Height: &h}

	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// file might just lack EXIF data
		return meta, nil
	}

	if lat, lng, err := exifData.LatLong(); err == nil && validCoordinates(lat, lng) {
		meta.Latitude = &lat
		meta.Longitude = &lng
	}

	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}

	return meta, nil
}

func validCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
