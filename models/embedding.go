package models

import (
	"errors"
	"fmt"
	"math"
)

// EmbeddingDimension is the length of every face embedding handled by the service.
// Both extractor backends produce 128 values.
const EmbeddingDimension = 128

// ErrInvalidEmbedding is returned when an embedding does not have EmbeddingDimension values.
var ErrInvalidEmbedding = errors.New("invalid embedding")

// Embedding is a facial feature vector for a single detected face.
type Embedding []float32

// Validate checks the dimensionality of the embedding.
func (e Embedding) Validate() error {
	if len(e) != EmbeddingDimension {
		return fmt.Errorf("%w: expected %d values, got %d", ErrInvalidEmbedding, EmbeddingDimension, len(e))
	}
	return nil
}

// EncodeEmbedding converts an embedding to a little-endian float32 BLOB
func EncodeEmbedding(embedding Embedding) []byte {
	if len(embedding) == 0 {
		return nil
	}

	data := make([]byte, len(embedding)*4) // 4 bytes per float32
	for i, val := range embedding {
		offset := i * 4
		bits := math.Float32bits(val)
		data[offset] = byte(bits)
		data[offset+1] = byte(bits >> 8)
		data[offset+2] = byte(bits >> 16)
		data[offset+3] = byte(bits >> 24)
	}
	return data
}

// DecodeEmbedding converts BLOB data back to an embedding and validates its size
func DecodeEmbedding(data []byte) (Embedding, error) {
	if len(data) != EmbeddingDimension*4 {
		return nil, fmt.Errorf("%w: blob has %d bytes", ErrInvalidEmbedding, len(data))
	}

	embedding := make(Embedding, len(data)/4)
	for i := 0; i < len(embedding); i++ {
		offset := i * 4
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding, nil
}
