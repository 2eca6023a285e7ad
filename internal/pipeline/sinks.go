package pipeline

import (
	"context"
	"math"

	"github.com/banshee-data/fcw/internal/actuation"
	"github.com/banshee-data/fcw/internal/db"
	"github.com/banshee-data/fcw/internal/telemetry"
	"github.com/banshee-data/fcw/internal/units"
)

// ActuatorSink applies each cycle's command.
func ActuatorSink(a actuation.Actuator) CycleSink {
	return SinkFunc(func(ctx context.Context, c Cycle) error {
		return a.Apply(ctx, c.Command)
	})
}

// SnapshotPublisher is satisfied by *telemetry.Publisher.
type SnapshotPublisher interface {
	Publish(telemetry.Snapshot) error
}

// TelemetrySink publishes a snapshot of each cycle.
func TelemetrySink(p SnapshotPublisher) CycleSink {
	return SinkFunc(func(_ context.Context, c Cycle) error {
		return p.Publish(SnapshotFromCycle(c))
	})
}

// SnapshotFromCycle builds the dashboard view of a cycle. The threat shown
// is the FCW threat.
func SnapshotFromCycle(c Cycle) telemetry.Snapshot {
	s := telemetry.Snapshot{
		Seq:              c.Seq,
		Timestamp:        c.Timestamp,
		SpeedMps:         c.State.Speed,
		SpeedKph:         units.ConvertSpeed(math.Abs(c.State.Speed), units.KPH),
		TargetSpeedMps:   c.State.TargetSpeed,
		TargetSpeedKph:   units.ConvertSpeed(math.Abs(c.State.TargetSpeed), units.KPH),
		BrakeActive:      c.State.BrakeActive,
		ACCState:         string(c.ACC),
		FCWState:         string(c.FCW),
		ProximityWarning: c.Proximity,
		Objects:          make([]telemetry.Object, 0, len(c.Objects)),
		Throttle:         c.Command.Throttle,
		Brake:            c.Command.Brake,
		DroppedFrames:    c.DroppedFrames,
	}
	if c.FCWThreat.Present {
		ttc := c.FCWThreat.TTC
		s.ThreatLabel = c.FCWThreat.Object.Label
		s.ThreatDistanceM = c.FCWThreat.Object.Distance
		s.ThreatTTC = &ttc
	}
	for _, o := range c.Objects {
		s.Objects = append(s.Objects, telemetry.Object{
			TrackID:     o.TrackID,
			Label:       o.Label,
			DistanceM:   o.Distance,
			VelocityMps: o.Velocity,
			AngleDeg:    o.Angle,
			Source:      string(o.Source),
		})
	}
	return s
}

// CycleRecorder is satisfied by *db.DB.
type CycleRecorder interface {
	RecordCycle(runID string, c db.CycleRow) error
	RecordBrakeEvent(runID string, e db.BrakeEvent) error
}

// RecorderSink stores every cycle, and every brake event, under runID.
func RecorderSink(store CycleRecorder, runID string) CycleSink {
	return SinkFunc(func(_ context.Context, c Cycle) error {
		if err := store.RecordCycle(runID, CycleRowFromCycle(c)); err != nil {
			return err
		}
		if !c.BrakeEvent {
			return nil
		}
		return store.RecordBrakeEvent(runID, db.BrakeEvent{
			Seq:             c.Seq,
			Timestamp:       c.Timestamp,
			SpeedBeforeMps:  c.PrevSpeed,
			SpeedAfterMps:   c.State.Speed,
			ThreatLabel:     c.FCWThreat.Object.Label,
			ThreatDistanceM: c.FCWThreat.Object.Distance,
			ThreatTTC:       c.FCWThreat.TTC,
		})
	})
}

// CycleRowFromCycle flattens a cycle for the run store.
func CycleRowFromCycle(c Cycle) db.CycleRow {
	row := db.CycleRow{
		Seq:              c.Seq,
		Timestamp:        c.Timestamp,
		SpeedMps:         c.State.Speed,
		TargetSpeedMps:   c.State.TargetSpeed,
		BrakeActive:      c.State.BrakeActive,
		ACCState:         string(c.ACC),
		FCWState:         string(c.FCW),
		ProximityWarning: c.Proximity,
		Throttle:         c.Command.Throttle,
		Brake:            c.Command.Brake,
		ObjectCount:      len(c.Objects),
		DroppedFrames:    c.DroppedFrames,
	}
	if c.FCWThreat.Present {
		d, ttc := c.FCWThreat.Object.Distance, c.FCWThreat.TTC
		row.ThreatLabel = c.FCWThreat.Object.Label
		row.ThreatDistanceM = &d
		row.ThreatTTC = &ttc
	}
	return row
}
