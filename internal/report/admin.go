package report

import (
	"bytes"
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/fcw/internal/db"
	"github.com/banshee-data/fcw/internal/httputil"
)

// RunStore is the read side of the run store.
type RunStore interface {
	Runs(limit int) ([]db.Run, error)
	Cycles(runID string, limit int) ([]db.CycleRow, error)
}

// AttachAdminRoutes mounts the run charts on the tsweb debug surface:
// /debug/speed-chart, /debug/speed-plot.png and /debug/run-summary. Each
// takes an optional ?run=<id> and defaults to the newest run.
func AttachAdminRoutes(mux *http.ServeMux, store RunStore) {
	debug := tsweb.Debugger(mux)

	debug.Handle("speed-chart", "Speed, target and TTC chart for a run (?run=)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID, cycles, ok := loadRun(w, r, store)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := RenderSpeedChart(&buf, "Run "+runID, cycles); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("render chart: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}))

	debug.Handle("speed-plot.png", "Speed profile PNG for a run (?run=)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID, cycles, ok := loadRun(w, r, store)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := WritePlotPNG(&buf, "Run "+runID, cycles); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("render plot: %v", err))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))

	debug.Handle("run-summary", "Summary statistics for a run as JSON (?run=)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID, cycles, ok := loadRun(w, r, store)
		if !ok {
			return
		}
		httputil.WriteJSONOK(w, struct {
			RunID   string  `json:"run_id"`
			Summary Summary `json:"summary"`
		}{runID, Summarise(cycles)})
	}))
}

// loadRun resolves ?run= (or the newest run) and its cycles, writing an HTTP
// error and returning ok=false when there is nothing to show.
func loadRun(w http.ResponseWriter, r *http.Request, store RunStore) (runID string, cycles []db.CycleRow, ok bool) {
	runID = r.URL.Query().Get("run")
	if runID == "" {
		runs, err := store.Runs(1)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("list runs: %v", err))
			return "", nil, false
		}
		if len(runs) == 0 {
			httputil.NotFound(w, "no runs recorded")
			return "", nil, false
		}
		runID = runs[0].RunID
	}
	cycles, err := store.Cycles(runID, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load cycles: %v", err))
		return "", nil, false
	}
	if len(cycles) == 0 {
		httputil.NotFound(w, fmt.Sprintf("run %q has no cycles", runID))
		return "", nil, false
	}
	return runID, cycles, true
}
