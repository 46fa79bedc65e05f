package media

import (
	"context"

	"github.com/camden-git/missingpersons/models"
)

// FaceExtractor turns image bytes into face embeddings.
//
// ExtractAll returns one embedding per detected face, in detector order. An
// image without faces yields an empty slice and a nil error. Undecodable input
// yields an error wrapping ErrInvalidImage.
type FaceExtractor interface {
	ExtractAll(ctx context.Context, image []byte) ([]models.Embedding, error)
	ExtractPrimary(ctx context.Context, image []byte) (models.Embedding, bool, error)
	// ModelName identifies the model that produced the embeddings; embeddings
	// from different models are never compared.
	ModelName() string
	Close() error
}

// PrimaryEmbedding picks the first face found by ExtractAll.
func PrimaryEmbedding(embeddings []models.Embedding) (models.Embedding, bool) {
	if len(embeddings) == 0 {
		return nil, false
	}
	return embeddings[0], true
}
