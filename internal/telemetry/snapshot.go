// Package telemetry streams per-cycle decision snapshots to dashboards and
// loggers over gRPC.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Object is one fused object as shown on the dashboard.
type Object struct {
	TrackID     int64   `json:"track_id"`
	Label       string  `json:"label"`
	DistanceM   float64 `json:"distance_m"`
	VelocityMps float64 `json:"velocity_mps"`
	AngleDeg    float64 `json:"angle_deg"`
	Source      string  `json:"source"`
}

// Snapshot is the telemetry view of one decision cycle. ThreatTTC is nil
// when there is no threat (TTC +Inf).
type Snapshot struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`

	SpeedMps       float64 `json:"speed_mps"`
	SpeedKph       float64 `json:"speed_kph"`
	TargetSpeedMps float64 `json:"target_speed_mps"`
	TargetSpeedKph float64 `json:"target_speed_kph"`
	BrakeActive    bool    `json:"brake_active"`
	ACCState       string  `json:"acc_state"`
	FCWState       string  `json:"fcw_state"`

	ThreatLabel     string   `json:"threat_label,omitempty"`
	ThreatDistanceM float64  `json:"threat_distance_m,omitempty"`
	ThreatTTC       *float64 `json:"threat_ttc_s"`

	ProximityWarning bool     `json:"proximity_warning"`
	Objects          []Object `json:"objects"`

	Throttle      float64 `json:"throttle"`
	Brake         float64 `json:"brake"`
	DroppedFrames uint64  `json:"dropped_frames"`
}

// ToStruct converts the snapshot to its wire form.
func (s Snapshot) ToStruct() (*structpb.Struct, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes a wire snapshot.
func FromStruct(st *structpb.Struct) (Snapshot, error) {
	var s Snapshot
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return s, fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
