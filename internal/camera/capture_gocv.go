//go:build gocv

package camera

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/banshee-data/fcw/internal/detect"
	"github.com/banshee-data/fcw/internal/timeutil"
)

// Producer captures frames from a video device and offers them JPEG-encoded.
type Producer struct {
	cfg   Config
	clock timeutil.Clock

	mu      sync.Mutex
	capture *gocv.VideoCapture
	file    bool
}

// NewProducer opens the capture device. A numeric Device is a camera index;
// anything else is opened as a file or stream.
func NewProducer(cfg Config, clock timeutil.Clock) (*Producer, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var (
		capture *gocv.VideoCapture
		err     error
		file    bool
	)
	if id, convErr := strconv.Atoi(cfg.Device); convErr == nil {
		capture, err = gocv.OpenVideoCapture(id)
	} else {
		capture, err = gocv.VideoCaptureFile(cfg.Device)
		file = true
	}
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", cfg.Device, err)
	}
	if cfg.Width > 0 && cfg.Height > 0 && !file {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	return &Producer{cfg: cfg, clock: clock, capture: capture, file: file}, nil
}

// Run implements detect.Producer. A read failure on a device is fatal; the
// end of a video file returns detect.ErrSourceClosed.
func (p *Producer) Run(ctx context.Context, sink detect.Sink) error {
	img := gocv.NewMat()
	defer img.Close()

	var seq uint64
	for ctx.Err() == nil {
		p.mu.Lock()
		capture := p.capture
		ok := capture != nil && capture.Read(&img)
		p.mu.Unlock()

		if capture == nil {
			return detect.ErrSourceClosed
		}
		if !ok || img.Empty() {
			if p.file {
				return detect.ErrSourceClosed
			}
			return fmt.Errorf("camera %q: frame read failed", p.cfg.Device)
		}

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), p.cfg.JPEGQuality})
		if err != nil {
			return fmt.Errorf("camera %q: encode frame: %w", p.cfg.Device, err)
		}
		jpeg := append([]byte(nil), buf.GetBytes()...)
		buf.Close()

		seq++
		sink.Offer(detect.Frame{Seq: seq, Timestamp: p.clock.Now(), JPEG: jpeg})
	}
	return nil
}

// Close releases the device. Run returns detect.ErrSourceClosed afterwards.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capture == nil {
		return nil
	}
	err := p.capture.Close()
	p.capture = nil
	return err
}
