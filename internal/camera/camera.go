// Package camera captures frames from a video device and runs a YOLOv8 ONNX
// detector over them. Both need OpenCV and are only built with the gocv
// build tag; without it the constructors return ErrUnavailable.
package camera

import (
	"errors"
	"image"

	"github.com/banshee-data/fcw/internal/detect"
)

// ErrUnavailable is returned when the binary was built without gocv.
var ErrUnavailable = errors.New("camera: built without gocv support (rebuild with -tags gocv)")

// Config describes a capture source.
type Config struct {
	// Device is a numeric device index ("0") or a video file / stream URL.
	Device      string
	Width       int // requested capture size; zero keeps the device default
	Height      int
	JPEGQuality int
}

func DefaultConfig() Config {
	return Config{Device: "0", Width: 640, Height: 480, JPEGQuality: 90}
}

// YOLOConfig holds detector configuration.
type YOLOConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

// DefaultYOLOConfig returns defaults for a 640x640 YOLOv8n export.
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// candidate is a pre-NMS box in source image pixels.
type candidate struct {
	box     image.Rectangle
	score   float32
	classID int
}

// decodeYOLOv8 reads a YOLOv8 output tensor laid out as attrs x n (attrs =
// 4 box values + one score per class, n anchors), keeping anchors whose best
// class score reaches thresh. Boxes are scaled from the network input size
// to imgW x imgH.
func decodeYOLOv8(data []float32, attrs, n int, cfg YOLOConfig, imgW, imgH float32) []candidate {
	if attrs <= 4 || n <= 0 || len(data) < attrs*n {
		return nil
	}
	sx := imgW / float32(cfg.InputWidth)
	sy := imgH / float32(cfg.InputHeight)

	var out []candidate
	for i := 0; i < n; i++ {
		best, bestID := float32(0), 0
		for c := 4; c < attrs; c++ {
			if s := data[c*n+i]; s > best {
				best, bestID = s, c-4
			}
		}
		if best < cfg.ConfidenceThresh {
			continue
		}
		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]
		out = append(out, candidate{
			box: image.Rect(
				int((cx-w/2)*sx), int((cy-h/2)*sy),
				int((cx+w/2)*sx), int((cy+h/2)*sy),
			),
			score:   best,
			classID: bestID,
		})
	}
	return out
}

// toDetection converts a kept candidate to the decision core's model.
func toDetection(c candidate) detect.Detection {
	label := "unknown"
	if c.classID >= 0 && c.classID < len(COCOClasses) {
		label = COCOClasses[c.classID]
	}
	return detect.Detection{
		Box: detect.BBox{
			X1: float64(c.box.Min.X), Y1: float64(c.box.Min.Y),
			X2: float64(c.box.Max.X), Y2: float64(c.box.Max.Y),
		},
		Label:      label,
		Confidence: float64(c.score),
	}
}

// COCOClasses contains the 80 COCO class names in model output order.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
