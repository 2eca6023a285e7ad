package radar

import (
	"context"
	"log"
	"sync"

	"github.com/banshee-data/fcw/internal/serialmux"
)

// SetupCommands switch the radar to JSON batch output.
var SetupCommands = []string{"OJ"}

// LineSource is the part of a serial mux the radar reader needs.
type LineSource interface {
	Subscribe() (string, <-chan string)
	Unsubscribe(string)
}

// SerialSource keeps the newest batch read from a serial radar. Each batch
// is handed out by Latest at most once, so a stalled radar yields no returns
// rather than stale ones.
type SerialSource struct {
	lines  LineSource
	status *serialmux.DeviceStatus

	mu      sync.Mutex
	latest  []Return
	fresh   bool
	batches uint64
	errors  uint64
}

// NewSerialSource reads batches from lines. status, if non-nil, receives
// status lines.
func NewSerialSource(lines LineSource, status *serialmux.DeviceStatus) *SerialSource {
	return &SerialSource{lines: lines, status: status}
}

// Run consumes lines until ctx is done or the subscription closes.
func (s *SerialSource) Run(ctx context.Context) error {
	id, ch := s.lines.Subscribe()
	defer s.lines.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(line)
		}
	}
}

func (s *SerialSource) handle(line string) {
	switch serialmux.ClassifyPayload(line) {
	case serialmux.EventTypeReturns:
		returns, err := ParseBatch(line)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.errors++
			log.Printf("[Radar] bad batch: %v", err)
			return
		}
		s.latest, s.fresh = returns, true
		s.batches++
	case serialmux.EventTypeStatus:
		if s.status == nil {
			return
		}
		if err := s.status.HandleStatusLine(line); err != nil {
			log.Printf("[Radar] bad status line: %v", err)
		}
	default:
		log.Printf("[Radar] unknown line: %q", line)
	}
}

// Latest returns the newest unread batch, or nil.
func (s *SerialSource) Latest() []Return {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return nil
	}
	s.fresh = false
	return s.latest
}

// Stats returns the number of batches accepted and rejected.
func (s *SerialSource) Stats() (batches, errors uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches, s.errors
}
