// Package tracking associates per-frame detections with persistent tracks and
// derives the camera closing-rate signal from bounding-box width changes.
package tracking

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/fcw/internal/config"
	"github.com/banshee-data/fcw/internal/detect"
	"github.com/banshee-data/fcw/internal/distance"
)

// Association selects how detections are matched to existing tracks.
type Association string

const (
	// AssociationIoU matches by bounding-box overlap with optimal assignment.
	AssociationIoU Association = config.AssociationIoU
	// AssociationPosition keys tracks on the truncated top-left corner. A
	// moving object gets a new track almost every frame in this mode.
	AssociationPosition Association = config.AssociationPosition
)

// Config holds tracker parameters.
type Config struct {
	Association  Association
	IoUThreshold float64 // minimum overlap for a match
	MaxMisses    int     // consecutive unmatched cycles before a track expires
	Distance     distance.Config
}

// DefaultConfig returns the stock tracker configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Association:  Association(cfg.GetAssociation()),
		IoUThreshold: cfg.GetIoUThreshold(),
		MaxMisses:    cfg.GetMaxMisses(),
		Distance:     distance.ConfigFromTuning(cfg),
	}
}

// Track is a tracked object as of its most recent observation.
type Track struct {
	ID    int64
	Key   string // positional key; empty in IoU mode
	Label string
	Box   detect.BBox
	Width float64 // last bbox width, px

	FirstSeen time.Time
	LastSeen  time.Time

	// Distance is only meaningful when DistanceValid is set.
	Distance      float64
	DistanceValid bool

	// Velocity is the bbox width rate in px/s. Threat assessment consumes it
	// as m/s.
	Velocity float64

	Age    int // cycles observed
	Misses int // consecutive unmatched cycles
}

// Tracker owns all live tracks. Tracks live in an arena of slots; expired
// slots are reused, IDs are never reused.
type Tracker struct {
	mu sync.Mutex

	cfg    Config
	slots  []*Track
	free   []int
	byKey  map[string]int
	nextID int64
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	if cfg.MaxMisses < 1 {
		cfg.MaxMisses = 1
	}
	return &Tracker{
		cfg:    cfg,
		byKey:  make(map[string]int),
		nextID: 1,
	}
}

// PositionKey is the legacy track key: the top-left corner truncated to
// whole pixels.
func PositionKey(b detect.BBox) string {
	return fmt.Sprintf("%d_%d", int(b.X1), int(b.Y1))
}

// Update associates dets observed at ts with the live tracks, creates tracks
// for unmatched detections and ages out tracks that went unmatched. It returns
// the tracks matched or created this cycle, once each, in the order of their
// first detection. In positional mode a later detection with the same key
// replaces the earlier one's box.
func (t *Tracker) Update(dets []detect.Detection, ts time.Time) []Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	var assigned []int
	if t.cfg.Association == AssociationPosition {
		assigned = t.associateByKey(dets)
	} else {
		assigned = t.associateByIoU(dets)
	}

	touched := make(map[int]bool, len(dets))
	order := make([]int, 0, len(dets))
	for i, det := range dets {
		slot := assigned[i]
		if slot < 0 && t.cfg.Association == AssociationPosition {
			// A key repeated within one frame lands on the track the
			// earlier detection created.
			if s, ok := t.byKey[PositionKey(det.Box)]; ok {
				slot = s
			}
		}
		switch {
		case slot < 0:
			slot = t.create(det, ts)
		case touched[slot]:
			t.replace(t.slots[slot], det)
			continue
		default:
			t.observe(t.slots[slot], det, ts)
		}
		touched[slot] = true
		order = append(order, slot)
	}

	out := make([]Track, 0, len(order))
	for _, slot := range order {
		out = append(out, *t.slots[slot])
	}

	for slot, tr := range t.slots {
		if tr == nil || touched[slot] {
			continue
		}
		tr.Misses++
		if tr.Misses >= t.cfg.MaxMisses {
			t.expire(slot)
		}
	}
	return out
}

// associateByKey returns the slot for each detection whose positional key is
// already tracked, or -1.
func (t *Tracker) associateByKey(dets []detect.Detection) []int {
	assigned := make([]int, len(dets))
	for i, det := range dets {
		slot, ok := t.byKey[PositionKey(det.Box)]
		if !ok {
			assigned[i] = -1
			continue
		}
		assigned[i] = slot
	}
	return assigned
}

// associateByIoU builds a detection×track cost matrix of 1-IoU, forbidding
// pairs below the IoU threshold or with different labels, and solves it.
func (t *Tracker) associateByIoU(dets []detect.Detection) []int {
	assigned := make([]int, len(dets))
	for i := range assigned {
		assigned[i] = -1
	}

	live := make([]int, 0, len(t.slots))
	for slot, tr := range t.slots {
		if tr != nil {
			live = append(live, slot)
		}
	}
	if len(dets) == 0 || len(live) == 0 {
		return assigned
	}

	cost := make([][]float64, len(dets))
	for i, det := range dets {
		cost[i] = make([]float64, len(live))
		for j, slot := range live {
			tr := t.slots[slot]
			iou := det.Box.IoU(tr.Box)
			if tr.Label != det.Label || iou < t.cfg.IoUThreshold || iou == 0 {
				cost[i][j] = Forbidden
				continue
			}
			cost[i][j] = 1 - iou
		}
	}

	for i, col := range HungarianAssign(cost) {
		if col >= 0 {
			assigned[i] = live[col]
		}
	}
	return assigned
}

func (t *Tracker) create(det detect.Detection, ts time.Time) int {
	tr := &Track{
		ID:        t.nextID,
		Label:     det.Label,
		FirstSeen: ts,
	}
	t.nextID++
	if t.cfg.Association == AssociationPosition {
		tr.Key = PositionKey(det.Box)
	}
	t.apply(tr, det, ts, 0)

	var slot int
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[slot] = tr
	} else {
		slot = len(t.slots)
		t.slots = append(t.slots, tr)
	}
	if tr.Key != "" {
		t.byKey[tr.Key] = slot
	}
	return slot
}

func (t *Tracker) observe(tr *Track, det detect.Detection, ts time.Time) {
	var velocity float64
	if dt := ts.Sub(tr.LastSeen).Seconds(); dt > 0 {
		velocity = (det.Box.Width() - tr.Width) / dt
	}
	t.apply(tr, det, ts, velocity)
}

// replace overwrites the box of a track already updated this cycle, keeping
// its age and velocity.
func (t *Tracker) replace(tr *Track, det detect.Detection) {
	age := tr.Age
	t.apply(tr, det, tr.LastSeen, tr.Velocity)
	tr.Age = age
}

func (t *Tracker) apply(tr *Track, det detect.Detection, ts time.Time, velocity float64) {
	tr.Box = det.Box
	tr.Width = det.Box.Width()
	tr.LastSeen = ts
	tr.Velocity = velocity
	tr.Age++
	tr.Misses = 0
	d, err := t.cfg.Distance.Estimate(tr.Width)
	tr.Distance, tr.DistanceValid = d, err == nil
}

func (t *Tracker) expire(slot int) {
	tr := t.slots[slot]
	if s, ok := t.byKey[tr.Key]; ok && s == slot {
		delete(t.byKey, tr.Key)
	}
	t.slots[slot] = nil
	t.free = append(t.free, slot)
}

// Live returns copies of every live track ordered by slot.
func (t *Tracker) Live() []Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Track, 0, len(t.slots))
	for _, tr := range t.slots {
		if tr != nil {
			out = append(out, *tr)
		}
	}
	return out
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) - len(t.free)
}

// Reset drops every track. IDs keep increasing.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots = nil
	t.free = nil
	t.byKey = make(map[string]int)
}
