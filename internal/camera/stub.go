//go:build !gocv

package camera

import (
	"context"

	"github.com/banshee-data/fcw/internal/detect"
	"github.com/banshee-data/fcw/internal/timeutil"
)

// Producer is unavailable without gocv.
type Producer struct{}

func NewProducer(Config, timeutil.Clock) (*Producer, error) { return nil, ErrUnavailable }

func (*Producer) Run(context.Context, detect.Sink) error { return ErrUnavailable }

func (*Producer) Close() error { return nil }

// YOLODetector is unavailable without gocv.
type YOLODetector struct{}

func NewYOLODetector(YOLOConfig) (*YOLODetector, error) { return nil, ErrUnavailable }

func (*YOLODetector) Detect(detect.Frame) ([]detect.Detection, error) { return nil, ErrUnavailable }

func (*YOLODetector) Close() error { return nil }
