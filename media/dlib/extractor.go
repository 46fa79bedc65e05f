// Package dlib extracts 128-D face embeddings with dlib's ResNet model via go-face.
package dlib

import (
	"context"
	"errors"
	"fmt"
	"sync"

	face "github.com/Kagami/go-face"
	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/models"
)

// ModelName is stored next to every embedding this backend produces.
const ModelName = "dlib_face_recognition_resnet_model_v1"

// normalisedJPEGQuality is used when re-encoding non-JPEG input for dlib.
const normalisedJPEGQuality = 95

// Extractor implements media.FaceExtractor. go-face only reads JPEG, so input
// is decoded with imaging (which also applies EXIF orientation) and re-encoded.
type Extractor struct {
	mu  sync.Mutex
	rec *face.Recognizer
	log *zap.Logger
}

// NewExtractor loads shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat from modelsDir.
func NewExtractor(modelsDir string, log *zap.Logger) (*Extractor, error) {
	log.Info("loading dlib face models", zap.String("path", modelsDir))
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelsDir, err)
	}
	return &Extractor{rec: rec, log: log}, nil
}

func (e *Extractor) ModelName() string {
	return ModelName
}

func (e *Extractor) ExtractAll(ctx context.Context, image []byte) ([]models.Embedding, error) {
	img, err := media.DecodeImage(image)
	if err != nil {
		return nil, err
	}
	jpeg, err := media.EncodeJPEG(img, normalisedJPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrInvalidImage, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.rec == nil {
		e.mu.Unlock()
		return nil, errors.New("dlib extractor is closed")
	}
	faces, err := e.rec.Recognize(jpeg)
	e.mu.Unlock()
	if err != nil {
		var loadErr face.ImageLoadError
		if errors.As(err, &loadErr) {
			return nil, fmt.Errorf("%w: %v", media.ErrInvalidImage, err)
		}
		return nil, fmt.Errorf("dlib recognition failed: %w", err)
	}

	embeddings := make([]models.Embedding, 0, len(faces))
	for _, f := range faces {
		embedding := make(models.Embedding, len(f.Descriptor))
		copy(embedding, f.Descriptor[:])
		if err := embedding.Validate(); err != nil {
			return nil, err
		}
		embeddings = append(embeddings, embedding)
	}

	e.log.Debug("extracted face embeddings", zap.Int("faces", len(embeddings)))
	return embeddings, nil
}

func (e *Extractor) ExtractPrimary(ctx context.Context, image []byte) (models.Embedding, bool, error) {
	all, err := e.ExtractAll(ctx, image)
	if err != nil {
		return nil, false, err
	}
	embedding, ok := media.PrimaryEmbedding(all)
	return embedding, ok, nil
}

func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return nil
}
