package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetFocalLengthPx(); got != 700 {
		t.Errorf("GetFocalLengthPx() = %f, want 700", got)
	}
	if got := cfg.GetKnownWidthM(); got != 2.0 {
		t.Errorf("GetKnownWidthM() = %f, want 2.0", got)
	}
	if got := cfg.GetSafeTimeGap(); got != 2 {
		t.Errorf("GetSafeTimeGap() = %f, want 2", got)
	}
	if got := cfg.GetMaxSpeed(); got != 30 {
		t.Errorf("GetMaxSpeed() = %f, want 30", got)
	}
	if got := cfg.GetMinSpeed(); got != 0 {
		t.Errorf("GetMinSpeed() = %f, want 0", got)
	}
	if got := cfg.GetAcceleration(); got != 1.5 {
		t.Errorf("GetAcceleration() = %f, want 1.5", got)
	}
	if got := cfg.GetDeceleration(); got != -3.0 {
		t.Errorf("GetDeceleration() = %f, want -3.0", got)
	}
	if got := cfg.GetBrakeThresholdTTC(); got != 3 {
		t.Errorf("GetBrakeThresholdTTC() = %f, want 3", got)
	}
	if got := cfg.GetMatchThresholdPx(); got != 50 {
		t.Errorf("GetMatchThresholdPx() = %f, want 50", got)
	}
	if got := cfg.GetFrameQueueSize(); got != 10 {
		t.Errorf("GetFrameQueueSize() = %d, want 10", got)
	}
	if got := cfg.GetAssociation(); got != AssociationIoU {
		t.Errorf("GetAssociation() = %q, want %q", got, AssociationIoU)
	}
	if got := cfg.GetCycleLogInterval(); got != 5*time.Second {
		t.Errorf("GetCycleLogInterval() = %v, want 5s", got)
	}
	if got := strings.Join(cfg.GetFollowClasses(), ","); got != "car,truck,bus" {
		t.Errorf("GetFollowClasses() = %q", got)
	}
	if got := strings.Join(cfg.GetTrackedClasses(), ","); got != "car,truck,bus,person" {
		t.Errorf("GetTrackedClasses() = %q", got)
	}
}

func TestDefaultTuningConfigMatchesGetters(t *testing.T) {
	cfg := DefaultTuningConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultTuningConfig() failed validation: %v", err)
	}
	if cfg.MaxSpeed == nil || *cfg.MaxSpeed != 30 {
		t.Errorf("Expected MaxSpeed 30, got %v", cfg.MaxSpeed)
	}
	if cfg.CycleLogInterval == nil || *cfg.CycleLogInterval != "5s" {
		t.Errorf("Expected CycleLogInterval '5s', got %v", cfg.CycleLogInterval)
	}
}

func TestGetClassesReturnsCopy(t *testing.T) {
	cfg := &TuningConfig{FollowClasses: []string{"car"}}
	got := cfg.GetFollowClasses()
	got[0] = "bus"
	if cfg.FollowClasses[0] != "car" {
		t.Errorf("GetFollowClasses leaked the backing slice")
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "focal_length_px": 800,
  "max_speed_mps": 25,
  "association": "position",
  "cycle_log_interval": "250ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetFocalLengthPx() != 800 {
		t.Errorf("GetFocalLengthPx() = %f, want 800", cfg.GetFocalLengthPx())
	}
	if cfg.GetMaxSpeed() != 25 {
		t.Errorf("GetMaxSpeed() = %f, want 25", cfg.GetMaxSpeed())
	}
	if cfg.GetAssociation() != AssociationPosition {
		t.Errorf("GetAssociation() = %q, want %q", cfg.GetAssociation(), AssociationPosition)
	}
	if cfg.GetCycleLogInterval() != 250*time.Millisecond {
		t.Errorf("GetCycleLogInterval() = %v, want 250ms", cfg.GetCycleLogInterval())
	}
	// Unset fields keep their defaults.
	if cfg.GetKnownWidthM() != 2.0 {
		t.Errorf("GetKnownWidthM() = %f, want default 2.0", cfg.GetKnownWidthM())
	}
}

func TestLoadTuningConfigRejectsBadFiles(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", "{}", ".json extension"},
		{"malformed json", "bad.json", "{not json", "failed to parse"},
		{"negative focal length", "focal.json", `{"focal_length_px": -1}`, "focal_length_px"},
		{"max below min", "speed.json", `{"max_speed_mps": 5, "min_speed_mps": 10}`, "max_speed_mps"},
		{"unknown association", "assoc.json", `{"association": "greedy"}`, "association"},
		{"zero deceleration", "decel.json", `{"deceleration_mps": 0}`, "deceleration_mps"},
		{"bad duration", "dur.json", `{"cycle_log_interval": "soon"}`, "cycle_log_interval"},
		{"confidence out of range", "conf.json", `{"min_confidence": 1.5}`, "min_confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadTuningConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetFocalLengthPx() != 700 {
		t.Errorf("defaults file focal_length_px = %f, want 700", cfg.GetFocalLengthPx())
	}
	if cfg.GetBrakeThresholdTTC() != 3 {
		t.Errorf("defaults file brake_threshold_ttc_s = %f, want 3", cfg.GetBrakeThresholdTTC())
	}
}
