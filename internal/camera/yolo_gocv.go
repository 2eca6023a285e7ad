//go:build gocv

package camera

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/banshee-data/fcw/internal/detect"
)

// YOLODetector runs a YOLOv8 ONNX model through OpenCV's DNN module.
type YOLODetector struct {
	net       gocv.Net
	cfg       YOLOConfig
	mu        sync.Mutex
	inputSize image.Point
}

func NewYOLODetector(cfg YOLOConfig) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLODetector{
		net:       net,
		cfg:       cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect implements detect.Detector. Boxes are in source image pixels.
func (d *YOLODetector) Detect(f detect.Frame) ([]detect.Detection, error) {
	if len(f.JPEG) == 0 {
		return f.Detections, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(f.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", f.Seq, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("decode frame %d: empty image", f.Seq)
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// Output shape is [1, 4+classes, anchors].
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected YOLO output shape %v", sizes)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read YOLO output: %w", err)
	}

	cands := decodeYOLOv8(data, sizes[1], sizes[2], d.cfg, float32(img.Cols()), float32(img.Rows()))
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i], scores[i] = c.box, c.score
	}
	keep := gocv.NMSBoxes(boxes, scores, d.cfg.ConfidenceThresh, d.cfg.NMSThresh)

	dets := make([]detect.Detection, 0, len(keep))
	for _, idx := range keep {
		dets = append(dets, toDetection(cands[idx]))
	}
	return dets, nil
}

func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
