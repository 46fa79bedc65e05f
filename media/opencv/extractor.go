// Package opencv extracts face embeddings with OpenCV's DNN module: an SSD
// res10 detector followed by the OpenFace nn4.small2 embedding network.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/models"
)

const ModelName = "openface_nn4_small2_v1"

const (
	embeddingInputSize    = 96
	normalisedJPEGQuality = 95
)

// Extractor implements media.FaceExtractor on top of gocv.
type Extractor struct {
	mu       sync.Mutex
	detector *faceDetector
	embedder gocv.Net
	closed   bool
	log      *zap.Logger
}

func NewExtractor(detectorConfigPath, detectorModelPath, embeddingModelPath string, log *zap.Logger) (*Extractor, error) {
	detector, err := newFaceDetector(detectorConfigPath, detectorModelPath, log)
	if err != nil {
		return nil, err
	}

	embedder := gocv.ReadNet(embeddingModelPath, "")
	if embedder.Empty() {
		detector.Close()
		return nil, fmt.Errorf("failed to load face embedding network from %s", embeddingModelPath)
	}
	preferCUDA(&embedder, log.With(zap.String("net", "embedder")))

	log.Info("loaded opencv face models",
		zap.String("detector", detectorModelPath),
		zap.String("embedder", embeddingModelPath))
	return &Extractor{detector: detector, embedder: embedder, log: log}, nil
}

func (e *Extractor) ModelName() string {
	return ModelName
}

func (e *Extractor) ExtractAll(ctx context.Context, data []byte) ([]models.Embedding, error) {
	img, err := media.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	jpeg, err := media.EncodeJPEG(img, normalisedJPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrInvalidImage, err)
	}

	mat, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: opencv could not decode image", media.ErrInvalidImage)
	}
	defer mat.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("opencv extractor is closed")
	}

	detections := e.detector.detect(mat)
	embeddings := make([]models.Embedding, 0, len(detections))
	for _, d := range detections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		region := mat.Region(image.Rect(d.X, d.Y, d.X+d.W, d.Y+d.H))
		embedding := e.embed(region)
		region.Close()
		if embedding == nil {
			continue
		}
		if err := embedding.Validate(); err != nil {
			return nil, fmt.Errorf("embedding network produced unexpected output: %w", err)
		}
		embeddings = append(embeddings, embedding)
	}

	e.log.Debug("extracted face embeddings", zap.Int("faces", len(embeddings)))
	return embeddings, nil
}

func (e *Extractor) ExtractPrimary(ctx context.Context, data []byte) (models.Embedding, bool, error) {
	all, err := e.ExtractAll(ctx, data)
	if err != nil {
		return nil, false, err
	}
	embedding, ok := media.PrimaryEmbedding(all)
	return embedding, ok, nil
}

// embed runs the embedding network on a BGR face crop
func (e *Extractor) embed(face gocv.Mat) models.Embedding {
	if face.Empty() || face.Cols() < 10 || face.Rows() < 10 {
		return nil
	}

	blob := gocv.BlobFromImage(face, 1.0/255.0, image.Pt(embeddingInputSize, embeddingInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.embedder.SetInput(blob, "")
	output := e.embedder.Forward("")
	defer output.Close()

	flattened := output.Reshape(1, 1)
	defer flattened.Close()

	embedding := make(models.Embedding, flattened.Cols())
	for i := range embedding {
		embedding[i] = flattened.GetFloatAt(0, i)
	}
	return normalize(embedding)
}

// normalize scales the embedding to unit length
func normalize(embedding models.Embedding) models.Embedding {
	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}
	for i, v := range embedding {
		embedding[i] = float32(float64(v) / norm)
	}
	return embedding
}

func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.embedder.Close()
	return e.detector.Close()
}
