package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/banshee-data/fcw/internal/detect"
)

// QueueStats is a point-in-time view of a FrameQueue.
type QueueStats struct {
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
}

// FrameQueue is the bounded hand-off between a frame producer and the
// decision loop. Offer never blocks: when the queue is full the incoming
// frame is dropped and counted.
type FrameQueue struct {
	ch       chan detect.Frame
	accepted atomic.Uint64
	dropped  atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewFrameQueue creates a queue holding up to capacity frames (minimum 1).
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameQueue{ch: make(chan detect.Frame, capacity)}
}

// Offer implements detect.Sink.
func (q *FrameQueue) Offer(f detect.Frame) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return false
	}
	select {
	case q.ch <- f:
		q.accepted.Add(1)
		return true
	default:
		n := q.dropped.Add(1)
		if n == 1 || n%50 == 0 {
			opsf("frame queue full (capacity %d): dropped frame %d, %d dropped so far", cap(q.ch), f.Seq, n)
		}
		return false
	}
}

// Frames is closed once Close has been called and the queue has drained.
func (q *FrameQueue) Frames() <-chan detect.Frame {
	return q.ch
}

// Close stops accepting frames. Safe to call more than once.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

func (q *FrameQueue) Stats() QueueStats {
	return QueueStats{
		Accepted: q.accepted.Load(),
		Dropped:  q.dropped.Load(),
		Depth:    len(q.ch),
		Capacity: cap(q.ch),
	}
}
