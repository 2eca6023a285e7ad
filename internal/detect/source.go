package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/banshee-data/fcw/internal/timeutil"
)

// ErrSourceClosed is returned by a Producer whose underlying device or stream
// went away. The decision loop treats it as a normal end of input.
var ErrSourceClosed = errors.New("detect: source closed")

// Detector turns a frame into detections.
type Detector interface {
	Detect(Frame) ([]Detection, error)
}

// Precomputed is the Detector for producers that already attach detections to
// each frame (replays, external inference services).
type Precomputed struct{}

// Detect returns the detections carried on the frame.
func (Precomputed) Detect(f Frame) ([]Detection, error) {
	return f.Detections, nil
}

// Sink accepts frames without blocking. Offer reports whether the frame was
// queued.
type Sink interface {
	Offer(Frame) bool
}

// Producer pushes frames into a Sink until the context is cancelled or the
// source fails. A nil return means the source ended normally.
type Producer interface {
	Run(ctx context.Context, sink Sink) error
}

// replayLine is one JSON line of a detection replay file.
type replayLine struct {
	T          float64     `json:"t"` // unix seconds; 0 means "use the clock"
	Detections []Detection `json:"detections"`
}

// ReplayProducer replays recorded detections, one JSON object per line.
type ReplayProducer struct {
	r        io.Reader
	clock    timeutil.Clock
	interval time.Duration
}

// NewReplayProducer creates a producer reading from r. A positive interval
// paces frames on the clock; zero offers them back to back.
func NewReplayProducer(r io.Reader, clock timeutil.Clock, interval time.Duration) *ReplayProducer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ReplayProducer{r: r, clock: clock, interval: interval}
}

// Run implements Producer. A malformed line is a fatal source error.
func (p *ReplayProducer) Run(ctx context.Context, sink Sink) error {
	scan := bufio.NewScanner(p.r)
	scan.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var tick timeutil.Ticker
	if p.interval > 0 {
		tick = p.clock.NewTicker(p.interval)
		defer tick.Stop()
	}

	var seq uint64
	lineNo := 0
	for scan.Scan() {
		lineNo++
		raw := scan.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line replayLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("replay line %d: %w", lineNo, err)
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C():
			}
		} else if ctx.Err() != nil {
			return nil
		}

		seq++
		ts := p.clock.Now()
		if line.T > 0 {
			sec, frac := math.Modf(line.T)
			ts = time.Unix(int64(sec), int64(frac*1e9))
		}
		// Drops are counted and logged by the sink.
		sink.Offer(Frame{Seq: seq, Timestamp: ts, Detections: line.Detections})
	}
	if err := scan.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("replay read: %w", err)
	}
	return nil
}
