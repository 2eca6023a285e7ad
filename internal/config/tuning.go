package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Association modes accepted by the "association" key.
const (
	AssociationIoU      = "iou"
	AssociationPosition = "position"
)

// TuningConfig is the root configuration for the decision core. Every field is
// optional: a nil field falls back to the literal default in its getter, so a
// partial JSON file is always safe to load.
type TuningConfig struct {
	// Camera model
	FocalLengthPx *float64 `json:"focal_length_px,omitempty"`
	KnownWidthM   *float64 `json:"known_width_m,omitempty"`
	WidthEpsilon  *float64 `json:"width_epsilon_px,omitempty"`
	ImageWidthPx  *int     `json:"image_width_px,omitempty"`

	// Detection filtering
	MinConfidence  *float64 `json:"min_confidence,omitempty"`
	TrackedClasses []string `json:"tracked_classes,omitempty"`
	FollowClasses  []string `json:"follow_classes,omitempty"`

	// Tracker
	Association  *string  `json:"association,omitempty"`
	IoUThreshold *float64 `json:"iou_threshold,omitempty"`
	MaxMisses    *int     `json:"max_misses,omitempty"`

	// Fusion
	MatchThresholdPx *float64 `json:"match_threshold_px,omitempty"`

	// Control law
	SafeTimeGap       *float64 `json:"safe_time_gap_s,omitempty"`
	MaxSpeed          *float64 `json:"max_speed_mps,omitempty"`
	MinSpeed          *float64 `json:"min_speed_mps,omitempty"`
	Acceleration      *float64 `json:"acceleration_mps,omitempty"`
	Deceleration      *float64 `json:"deceleration_mps,omitempty"`
	BrakeThresholdTTC *float64 `json:"brake_threshold_ttc_s,omitempty"`
	BrakeDecrement    *float64 `json:"brake_decrement_mps,omitempty"`
	InitialSpeed      *float64 `json:"initial_speed_mps,omitempty"`

	// Proximity warning
	ProximityRadius *float64 `json:"proximity_radius_m,omitempty"`

	// Loop
	FrameQueueSize   *int    `json:"frame_queue_size,omitempty"`
	CycleLogInterval *string `json:"cycle_log_interval,omitempty"` // duration string like "5s"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set explicitly to
// its default value. Useful for writing out a complete file.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		FocalLengthPx:     ptrFloat64(c.GetFocalLengthPx()),
		KnownWidthM:       ptrFloat64(c.GetKnownWidthM()),
		WidthEpsilon:      ptrFloat64(c.GetWidthEpsilon()),
		ImageWidthPx:      ptrInt(c.GetImageWidthPx()),
		MinConfidence:     ptrFloat64(c.GetMinConfidence()),
		TrackedClasses:    c.GetTrackedClasses(),
		FollowClasses:     c.GetFollowClasses(),
		Association:       ptrString(c.GetAssociation()),
		IoUThreshold:      ptrFloat64(c.GetIoUThreshold()),
		MaxMisses:         ptrInt(c.GetMaxMisses()),
		MatchThresholdPx:  ptrFloat64(c.GetMatchThresholdPx()),
		SafeTimeGap:       ptrFloat64(c.GetSafeTimeGap()),
		MaxSpeed:          ptrFloat64(c.GetMaxSpeed()),
		MinSpeed:          ptrFloat64(c.GetMinSpeed()),
		Acceleration:      ptrFloat64(c.GetAcceleration()),
		Deceleration:      ptrFloat64(c.GetDeceleration()),
		BrakeThresholdTTC: ptrFloat64(c.GetBrakeThresholdTTC()),
		BrakeDecrement:    ptrFloat64(c.GetBrakeDecrement()),
		InitialSpeed:      ptrFloat64(c.GetInitialSpeed()),
		ProximityRadius:   ptrFloat64(c.GetProximityRadius()),
		FrameQueueSize:    ptrInt(c.GetFrameQueueSize()),
		CycleLogInterval:  ptrString(c.GetCycleLogInterval().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their getter defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseTuningConfig(data)
}

// ParseTuningConfig parses and validates a JSON document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up to the repository root. Panics if the file cannot be loaded;
// intended for tests.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/tools/speed-report/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath)
}

// Validate checks the set fields for values the decision core cannot run with.
func (c *TuningConfig) Validate() error {
	if c.FocalLengthPx != nil && *c.FocalLengthPx <= 0 {
		return fmt.Errorf("focal_length_px must be positive, got %f", *c.FocalLengthPx)
	}
	if c.KnownWidthM != nil && *c.KnownWidthM <= 0 {
		return fmt.Errorf("known_width_m must be positive, got %f", *c.KnownWidthM)
	}
	if c.WidthEpsilon != nil && *c.WidthEpsilon < 0 {
		return fmt.Errorf("width_epsilon_px must be non-negative, got %g", *c.WidthEpsilon)
	}
	if c.ImageWidthPx != nil && *c.ImageWidthPx <= 0 {
		return fmt.Errorf("image_width_px must be positive, got %d", *c.ImageWidthPx)
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
	}
	if c.Association != nil {
		switch *c.Association {
		case AssociationIoU, AssociationPosition:
		default:
			return fmt.Errorf("association must be %q or %q, got %q", AssociationIoU, AssociationPosition, *c.Association)
		}
	}
	if c.IoUThreshold != nil && (*c.IoUThreshold <= 0 || *c.IoUThreshold > 1) {
		return fmt.Errorf("iou_threshold must be in (0, 1], got %f", *c.IoUThreshold)
	}
	if c.MaxMisses != nil && *c.MaxMisses < 1 {
		return fmt.Errorf("max_misses must be at least 1, got %d", *c.MaxMisses)
	}
	if c.MatchThresholdPx != nil && *c.MatchThresholdPx < 0 {
		return fmt.Errorf("match_threshold_px must be non-negative, got %f", *c.MatchThresholdPx)
	}
	if c.SafeTimeGap != nil && *c.SafeTimeGap <= 0 {
		return fmt.Errorf("safe_time_gap_s must be positive, got %f", *c.SafeTimeGap)
	}
	if c.GetMinSpeed() < 0 {
		return fmt.Errorf("min_speed_mps must be non-negative, got %f", c.GetMinSpeed())
	}
	if c.GetMaxSpeed() < c.GetMinSpeed() {
		return fmt.Errorf("max_speed_mps (%f) must not be below min_speed_mps (%f)", c.GetMaxSpeed(), c.GetMinSpeed())
	}
	if c.Acceleration != nil && *c.Acceleration <= 0 {
		return fmt.Errorf("acceleration_mps must be positive, got %f", *c.Acceleration)
	}
	if c.Deceleration != nil && *c.Deceleration == 0 {
		return fmt.Errorf("deceleration_mps must be non-zero")
	}
	if c.BrakeThresholdTTC != nil && *c.BrakeThresholdTTC < 0 {
		return fmt.Errorf("brake_threshold_ttc_s must be non-negative, got %f", *c.BrakeThresholdTTC)
	}
	if c.BrakeDecrement != nil && *c.BrakeDecrement < 0 {
		return fmt.Errorf("brake_decrement_mps must be non-negative, got %f", *c.BrakeDecrement)
	}
	if c.InitialSpeed != nil && *c.InitialSpeed < 0 {
		return fmt.Errorf("initial_speed_mps must be non-negative, got %f", *c.InitialSpeed)
	}
	if c.ProximityRadius != nil && *c.ProximityRadius < 0 {
		return fmt.Errorf("proximity_radius_m must be non-negative, got %f", *c.ProximityRadius)
	}
	if c.FrameQueueSize != nil && *c.FrameQueueSize < 1 {
		return fmt.Errorf("frame_queue_size must be at least 1, got %d", *c.FrameQueueSize)
	}
	if c.CycleLogInterval != nil && *c.CycleLogInterval != "" {
		if _, err := time.ParseDuration(*c.CycleLogInterval); err != nil {
			return fmt.Errorf("invalid cycle_log_interval '%s': %w", *c.CycleLogInterval, err)
		}
	}
	return nil
}

// GetFocalLengthPx returns the focal_length_px value or the default.
func (c *TuningConfig) GetFocalLengthPx() float64 {
	if c.FocalLengthPx == nil {
		return 700
	}
	return *c.FocalLengthPx
}

// GetKnownWidthM returns the known_width_m value or the default.
func (c *TuningConfig) GetKnownWidthM() float64 {
	if c.KnownWidthM == nil {
		return 2.0
	}
	return *c.KnownWidthM
}

// GetWidthEpsilon returns the width_epsilon_px value or the default.
func (c *TuningConfig) GetWidthEpsilon() float64 {
	if c.WidthEpsilon == nil {
		return 1e-6
	}
	return *c.WidthEpsilon
}

// GetImageWidthPx returns the image_width_px value or the default.
func (c *TuningConfig) GetImageWidthPx() int {
	if c.ImageWidthPx == nil {
		return 640
	}
	return *c.ImageWidthPx
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.5
	}
	return *c.MinConfidence
}

// GetTrackedClasses returns the tracked_classes value or the default.
func (c *TuningConfig) GetTrackedClasses() []string {
	if len(c.TrackedClasses) == 0 {
		return []string{"car", "truck", "bus", "person"}
	}
	return append([]string(nil), c.TrackedClasses...)
}

// GetFollowClasses returns the follow_classes value or the default.
func (c *TuningConfig) GetFollowClasses() []string {
	if len(c.FollowClasses) == 0 {
		return []string{"car", "truck", "bus"}
	}
	return append([]string(nil), c.FollowClasses...)
}

// GetAssociation returns the association value or the default.
func (c *TuningConfig) GetAssociation() string {
	if c.Association == nil || *c.Association == "" {
		return AssociationIoU
	}
	return *c.Association
}

// GetIoUThreshold returns the iou_threshold value or the default.
func (c *TuningConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold == nil {
		return 0.3
	}
	return *c.IoUThreshold
}

// GetMaxMisses returns the max_misses value or the default.
func (c *TuningConfig) GetMaxMisses() int {
	if c.MaxMisses == nil {
		return 5
	}
	return *c.MaxMisses
}

// GetMatchThresholdPx returns the match_threshold_px value or the default.
func (c *TuningConfig) GetMatchThresholdPx() float64 {
	if c.MatchThresholdPx == nil {
		return 50
	}
	return *c.MatchThresholdPx
}

// GetSafeTimeGap returns the safe_time_gap_s value or the default.
func (c *TuningConfig) GetSafeTimeGap() float64 {
	if c.SafeTimeGap == nil {
		return 2
	}
	return *c.SafeTimeGap
}

// GetMaxSpeed returns the max_speed_mps value or the default.
func (c *TuningConfig) GetMaxSpeed() float64 {
	if c.MaxSpeed == nil {
		return 30
	}
	return *c.MaxSpeed
}

// GetMinSpeed returns the min_speed_mps value or the default.
func (c *TuningConfig) GetMinSpeed() float64 {
	if c.MinSpeed == nil {
		return 0
	}
	return *c.MinSpeed
}

// GetAcceleration returns the acceleration_mps value or the default.
func (c *TuningConfig) GetAcceleration() float64 {
	if c.Acceleration == nil {
		return 1.5
	}
	return *c.Acceleration
}

// GetDeceleration returns the deceleration_mps value or the default.
// The sign is kept as configured; consumers use its magnitude.
func (c *TuningConfig) GetDeceleration() float64 {
	if c.Deceleration == nil {
		return -3.0
	}
	return *c.Deceleration
}

// GetBrakeThresholdTTC returns the brake_threshold_ttc_s value or the default.
func (c *TuningConfig) GetBrakeThresholdTTC() float64 {
	if c.BrakeThresholdTTC == nil {
		return 3
	}
	return *c.BrakeThresholdTTC
}

// GetBrakeDecrement returns the brake_decrement_mps value or the default.
func (c *TuningConfig) GetBrakeDecrement() float64 {
	if c.BrakeDecrement == nil {
		return 5
	}
	return *c.BrakeDecrement
}

// GetInitialSpeed returns the initial_speed_mps value or the default.
func (c *TuningConfig) GetInitialSpeed() float64 {
	if c.InitialSpeed == nil {
		return 0
	}
	return *c.InitialSpeed
}

// GetProximityRadius returns the proximity_radius_m value or the default.
func (c *TuningConfig) GetProximityRadius() float64 {
	if c.ProximityRadius == nil {
		return 15
	}
	return *c.ProximityRadius
}

// GetFrameQueueSize returns the frame_queue_size value or the default.
func (c *TuningConfig) GetFrameQueueSize() int {
	if c.FrameQueueSize == nil {
		return 10
	}
	return *c.FrameQueueSize
}

// GetCycleLogInterval parses and returns the cycle_log_interval as a time.Duration.
func (c *TuningConfig) GetCycleLogInterval() time.Duration {
	if c.CycleLogInterval == nil || *c.CycleLogInterval == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.CycleLogInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
