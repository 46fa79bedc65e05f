package opencv

import (
	"fmt"
	"image"
	"sort"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// detection is a face bounding box in pixel coordinates
type detection struct {
	X          int
	Y          int
	W          int
	H          int
	Confidence float32
}

// faceDetector wraps the res10 SSD face detector
type faceDetector struct {
	net gocv.Net

	inputSizeW    int
	inputSizeH    int
	scaleFactor   float64
	meanVal       gocv.Scalar
	confThreshold float32
}

func newFaceDetector(configPath, modelPath string, log *zap.Logger) (*faceDetector, error) {
	if configPath == "" || modelPath == "" {
		return nil, fmt.Errorf("face detector config and model paths are required")
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load face detection network: config=%s, model=%s", configPath, modelPath)
	}
	preferCUDA(&net, log.With(zap.String("net", "detector")))

	return &faceDetector{
		net:           net,
		inputSizeW:    300,
		inputSizeH:    300,
		scaleFactor:   1.0,
		meanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		confThreshold: 0.5,
	}, nil
}

func (d *faceDetector) Close() error {
	return d.net.Close()
}

// detect returns faces ordered by confidence, highest first
func (d *faceDetector) detect(img gocv.Mat) []detection {
	if img.Empty() {
		return nil
	}

	imgHeight := float32(img.Rows())
	imgWidth := float32(img.Cols())

	blob := gocv.BlobFromImage(img, d.scaleFactor, image.Pt(d.inputSizeW, d.inputSizeH), d.meanVal, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	detectionsMat := d.net.Forward("")
	defer detectionsMat.Close()

	sizes := detectionsMat.Size()
	if len(sizes) != 4 || sizes[2] == 0 {
		return nil
	}
	numDetections := sizes[2]

	// reshape the output to 2D: [N, 7]
	detectionsData := detectionsMat.Reshape(1, numDetections)
	defer detectionsData.Close()

	results := []detection{}
	for i := 0; i < numDetections; i++ {
		confidence := detectionsData.GetFloatAt(i, 2)
		if confidence <= d.confThreshold {
			continue
		}

		xMin := max(0, detectionsData.GetFloatAt(i, 3)*imgWidth)
		yMin := max(0, detectionsData.GetFloatAt(i, 4)*imgHeight)
		xMax := min(imgWidth, detectionsData.GetFloatAt(i, 5)*imgWidth)
		yMax := min(imgHeight, detectionsData.GetFloatAt(i, 6)*imgHeight)

		if xMax > xMin && yMax > yMin {
			results = append(results, detection{
				X:          int(xMin),
				Y:          int(yMin),
				W:          int(xMax - xMin),
				H:          int(yMax - yMin),
				Confidence: confidence,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results
}

func preferCUDA(net *gocv.Net, log *zap.Logger) {
	backendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	targetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if backendErr == nil && targetErr == nil {
		log.Info("using CUDA backend")
		return
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	log.Info("CUDA unavailable, using CPU backend")
}
