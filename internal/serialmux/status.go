package serialmux

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"sync"

	"tailscale.com/tsweb"
)

// DeviceStatus accumulates the key/value pairs reported on status lines.
type DeviceStatus struct {
	mu     sync.Mutex
	values map[string]any
	lines  int
}

// NewDeviceStatus creates an empty status record.
func NewDeviceStatus() *DeviceStatus {
	return &DeviceStatus{values: make(map[string]any)}
}

// HandleStatusLine merges a JSON status object into the record.
func (d *DeviceStatus) HandleStatusLine(payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return fmt.Errorf("failed to unmarshal status line: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	maps.Copy(d.values, values)
	d.lines++
	return nil
}

// Snapshot returns a copy of the current values and the number of status
// lines seen.
func (d *DeviceStatus) Snapshot() (map[string]any, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.values), d.lines
}

// AttachAdminRoutes serves the record as JSON at /debug/<name>-status.
func (d *DeviceStatus) AttachAdminRoutes(mux *http.ServeMux, name string) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc(name+"-status", "last status reported by the "+name+" device", func(w http.ResponseWriter, r *http.Request) {
		values, lines := d.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"lines": lines, "values": values})
	})
}
