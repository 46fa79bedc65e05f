package media

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const SightingFileExtension = ".jpg"

// Processor handles image normalisation and persistence for the
// registration and camera workflows. It relies on a Store implementation for
// saving the results.
type Processor struct {
	store Store
	log   *zap.Logger
}

func NewProcessor(store Store, log *zap.Logger) *Processor {
	return &Processor{store: store, log: log}
}

// SaveReferenceImage stores the uploaded registration photo unchanged under a
// generated name and returns that name.
func (p *Processor) SaveReferenceImage(data []byte) (string, error) {
	fileUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for reference image: %w", err)
	}
	targetFilename := fileUUID.String() + ImageExtension(data)

	savedName, err := p.store.Save(AssetTypeUpload, targetFilename, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to save reference image via store: %w", err)
	}
	p.log.Info("saved reference image", zap.String("filename", savedName))
	return savedName, nil
}

// DeleteReferenceImage removes a stored registration photo.
func (p *Processor) DeleteReferenceImage(filename string) error {
	return p.store.Delete(AssetTypeUpload, filename)
}

// LoadReferenceImage reads a stored registration photo back into memory.
func (p *Processor) LoadReferenceImage(filename string) ([]byte, error) {
	return ReadAll(p.store, AssetTypeUpload, filename)
}

// PrepareProbe downscales img to fit inside the configured box, never
// enlarging it, and re-encodes it as JPEG.
func (p *Processor) PrepareProbe(img image.Image, opts ProbeOptions) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() > opts.MaxWidth || b.Dy() > opts.MaxHeight {
		img = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
	}
	return EncodeJPEG(img, opts.Quality)
}

// FitLongestSide computes dimensions where the longest side is at most maxSize.
func FitLongestSide(width, height, maxSize int) (int, int) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height
	}
	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(math.Round(float64(height) * (float64(maxSize) / float64(width))))
	} else {
		newHeight = maxSize
		newWidth = int(math.Round(float64(width) * (float64(maxSize) / float64(height))))
	}
	return max(1, newWidth), max(1, newHeight)
}

// SaveSightingImage stores the camera capture that produced a match as JPEG
// and returns its filename.
func (p *Processor) SaveSightingImage(img image.Image, maxSize, quality int) (string, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return "", fmt.Errorf("invalid sighting image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	newWidth, newHeight := FitLongestSide(bounds.Dx(), bounds.Dy(), maxSize)
	if newWidth != bounds.Dx() || newHeight != bounds.Dy() {
		img = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, img, imaging.JPEG, imaging.JPEGQuality(quality))
		if err != nil {
			p.log.Error("failed to encode sighting image", zap.Error(err))
			writer.CloseWithError(fmt.Errorf("sighting encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	sightingUUID, err := uuid.NewRandom()
	if err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("failed to generate UUID for sighting image: %w", err)
	}
	targetFilename := sightingUUID.String() + SightingFileExtension

	savedName, err := p.store.Save(AssetTypeSighting, targetFilename, reader)
	if err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("failed to save sighting image via store: %w", err)
	}

	p.log.Info("saved sighting image", zap.String("filename", savedName))
	return savedName, nil
}

// DeleteSightingImage removes a stored sighting capture.
func (p *Processor) DeleteSightingImage(filename string) error {
	return p.store.Delete(AssetTypeSighting, filename)
}
