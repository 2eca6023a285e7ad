// Package pipeline is the composition root of the decision core. It pulls
// frames from a producer through a bounded queue, runs detection, tracking,
// fusion, threat assessment and the control law once per frame, and hands
// each resulting Cycle to the configured sinks.
//
// None of the stage packages import pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/fcw/internal/config"
	"github.com/banshee-data/fcw/internal/control"
	"github.com/banshee-data/fcw/internal/detect"
	"github.com/banshee-data/fcw/internal/fusion"
	"github.com/banshee-data/fcw/internal/radar"
	"github.com/banshee-data/fcw/internal/threat"
	"github.com/banshee-data/fcw/internal/timeutil"
	"github.com/banshee-data/fcw/internal/tracking"
	"github.com/banshee-data/fcw/internal/units"
)

// Config holds the resolved settings for every stage.
type Config struct {
	Tracking tracking.Config
	Fusion   fusion.Config
	Control  control.Config

	MinConfidence   float64
	TrackedClasses  []string // FCW considers these
	FollowClasses   []string // ACC follows these
	ProximityRadius float64  // metres
	InitialSpeed    float64  // m/s
	QueueSize       int
	StatsInterval   time.Duration // zero disables periodic stats
}

// DefaultConfig returns the stock pipeline configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Tracking:        tracking.ConfigFromTuning(cfg),
		Fusion:          fusion.ConfigFromTuning(cfg),
		Control:         control.ConfigFromTuning(cfg),
		MinConfidence:   cfg.GetMinConfidence(),
		TrackedClasses:  cfg.GetTrackedClasses(),
		FollowClasses:   cfg.GetFollowClasses(),
		ProximityRadius: cfg.GetProximityRadius(),
		InitialSpeed:    cfg.GetInitialSpeed(),
		QueueSize:       cfg.GetFrameQueueSize(),
		StatsInterval:   cfg.GetCycleLogInterval(),
	}
}

// Cycle is everything decided for one frame.
type Cycle struct {
	Seq       uint64
	Timestamp time.Time

	Detections []detect.Detection // after confidence and class filtering
	Tracks     []tracking.Track
	Radar      []radar.Return
	Objects    []fusion.Object

	FCWThreat threat.Threat // over TrackedClasses
	ACCThreat threat.Threat // over FollowClasses
	Proximity bool

	PrevSpeed  float64
	State      control.VehicleState
	ACC        control.ACCState
	FCW        control.FCWState
	BrakeEvent bool
	Command    control.Command

	DroppedFrames uint64
}

// CycleSink consumes finished cycles. Errors are logged and do not stop the
// loop.
type CycleSink interface {
	HandleCycle(ctx context.Context, c Cycle) error
}

// SinkFunc adapts a function to CycleSink.
type SinkFunc func(ctx context.Context, c Cycle) error

func (f SinkFunc) HandleCycle(ctx context.Context, c Cycle) error { return f(ctx, c) }

// Stats summarises a running Core.
type Stats struct {
	Cycles      uint64     `json:"cycles"`
	BrakeEvents uint64     `json:"brake_events"`
	SinkErrors  uint64     `json:"sink_errors"`
	Queue       QueueStats `json:"queue"`
}

// Core owns the per-run state: tracker, control law and queue. Step is not
// safe for concurrent use; Run calls it from a single goroutine.
type Core struct {
	cfg      Config
	detector detect.Detector
	radar    radar.Source
	clock    timeutil.Clock
	sinks    []CycleSink

	tracker *tracking.Tracker
	law     *control.Law

	queue       atomic.Pointer[FrameQueue]
	cycles      atomic.Uint64
	brakeEvents atomic.Uint64
	sinkErrors  atomic.Uint64
}

// NewCore builds a Core. A nil detector uses the detections carried on each
// frame, a nil radar source fuses camera-only and a nil clock uses wall time.
func NewCore(cfg Config, detector detect.Detector, rs radar.Source, clock timeutil.Clock, sinks ...CycleSink) *Core {
	if detector == nil {
		detector = detect.Precomputed{}
	}
	if rs == nil {
		rs = radar.None{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Core{
		cfg:      cfg,
		detector: detector,
		radar:    rs,
		clock:    clock,
		sinks:    sinks,
		tracker:  tracking.NewTracker(cfg.Tracking),
		law:      control.NewLaw(cfg.Control, cfg.InitialSpeed),
	}
}

// State returns the vehicle state after the most recent cycle.
func (c *Core) State() control.VehicleState { return c.law.State() }

func (c *Core) Stats() Stats {
	s := Stats{
		Cycles:      c.cycles.Load(),
		BrakeEvents: c.brakeEvents.Load(),
		SinkErrors:  c.sinkErrors.Load(),
	}
	if q := c.queue.Load(); q != nil {
		s.Queue = q.Stats()
	}
	return s
}

// Step runs one synchronous decision cycle over the detections carried on
// frame and the given radar returns.
func (c *Core) Step(frame detect.Frame, returns []radar.Return) Cycle {
	ts := frame.Timestamp
	if ts.IsZero() {
		ts = c.clock.Now()
	}
	dets := detect.Filter(frame.Detections, c.cfg.MinConfidence, c.cfg.TrackedClasses)
	tracks := c.tracker.Update(dets, ts)
	objects := fusion.Fuse(tracks, returns, c.cfg.Fusion)

	prev := c.law.State().Speed
	fcwThreat := threat.Assess(objects, prev)
	accThreat := threat.AssessClasses(objects, prev, c.cfg.FollowClasses)
	decision := c.law.Step(accThreat, fcwThreat)

	cy := Cycle{
		Seq:        frame.Seq,
		Timestamp:  ts,
		Detections: dets,
		Tracks:     tracks,
		Radar:      returns,
		Objects:    objects,
		FCWThreat:  fcwThreat,
		ACCThreat:  accThreat,
		Proximity:  threat.Proximity(objects, c.cfg.ProximityRadius),
		PrevSpeed:  prev,
		State:      decision.State,
		ACC:        decision.ACC,
		FCW:        decision.FCW,
		BrakeEvent: decision.BrakeEvent,
		Command:    decision.Command,
	}

	c.cycles.Add(1)
	if cy.BrakeEvent {
		c.brakeEvents.Add(1)
		opsf("BRAKE cycle %d: %s at %.1fm ttc=%.2fs speed %s -> %s",
			cy.Seq, fcwThreat.Object.Label, fcwThreat.Object.Distance, fcwThreat.TTC,
			units.FormatSpeed(prev, units.KPH), units.FormatSpeed(cy.State.Speed, units.KPH))
	}
	tracef("cycle %d: objects=%d speed=%.2f target=%.2f acc=%s fcw=%s ttc=%s throttle=%.3f brake=%.3f",
		cy.Seq, len(objects), cy.State.Speed, cy.State.TargetSpeed, cy.ACC, cy.FCW,
		formatTTC(fcwThreat.TTC), cy.Command.Throttle, cy.Command.Brake)
	return cy
}

// Run drives the loop until the producer ends, a fatal error occurs or ctx
// is cancelled. Producer and detector failures are returned; a normal end of
// input and cancellation return nil. Frames already queued when the producer
// ends are still processed.
func (c *Core) Run(ctx context.Context, producer detect.Producer) error {
	q := NewFrameQueue(c.cfg.QueueSize)
	c.queue.Store(q)

	diagf("run start: queue=%d association=%s min_conf=%.2f tracked=%v follow=%v initial_speed=%.2f",
		q.Stats().Capacity, c.cfg.Tracking.Association, c.cfg.MinConfidence,
		c.cfg.TrackedClasses, c.cfg.FollowClasses, c.law.State().Speed)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer q.Close()
		err := producer.Run(gctx, q)
		switch {
		case err == nil, errors.Is(err, detect.ErrSourceClosed):
			return nil
		case errors.Is(err, context.Canceled) && gctx.Err() != nil:
			return nil
		default:
			opsf("frame source failed: %v", err)
			return fmt.Errorf("frame source: %w", err)
		}
	})
	g.Go(func() error {
		return c.consume(gctx, q)
	})

	err := g.Wait()
	s := c.Stats()
	diagf("run end: cycles=%d brake_events=%d dropped=%d sink_errors=%d",
		s.Cycles, s.BrakeEvents, s.Queue.Dropped, s.SinkErrors)
	return err
}

func (c *Core) consume(ctx context.Context, q *FrameQueue) error {
	var statsC <-chan time.Time
	if c.cfg.StatsInterval > 0 {
		tick := c.clock.NewTicker(c.cfg.StatsInterval)
		defer tick.Stop()
		statsC = tick.C()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-statsC:
			s := c.Stats()
			diagf("stats: cycles=%d brake_events=%d queue=%d/%d dropped=%d speed=%.2f",
				s.Cycles, s.BrakeEvents, s.Queue.Depth, s.Queue.Capacity, s.Queue.Dropped, c.law.State().Speed)
		case frame, ok := <-q.Frames():
			if !ok {
				return nil
			}
			dets, err := c.detector.Detect(frame)
			if err != nil {
				opsf("detector failed on frame %d: %v", frame.Seq, err)
				return fmt.Errorf("detect frame %d: %w", frame.Seq, err)
			}
			frame.Detections = dets

			cy := c.Step(frame, c.radar.Latest())
			cy.DroppedFrames = q.Stats().Dropped
			c.dispatch(ctx, cy)
		}
	}
}

func (c *Core) dispatch(ctx context.Context, cy Cycle) {
	for _, s := range c.sinks {
		if err := s.HandleCycle(ctx, cy); err != nil {
			n := c.sinkErrors.Add(1)
			if n == 1 || n%100 == 0 {
				opsf("sink error on cycle %d (%d total): %v", cy.Seq, n, err)
			}
		}
	}
}

func formatTTC(ttc float64) string {
	if math.IsInf(ttc, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2fs", ttc)
}
