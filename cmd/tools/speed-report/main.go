// Command speed-report renders the speed profile of a recorded run as an
// image and writes its summary statistics as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/fcw/internal/db"
	"github.com/banshee-data/fcw/internal/fsutil"
	"github.com/banshee-data/fcw/internal/report"
	"github.com/banshee-data/fcw/internal/security"
)

// Config holds the command-line settings.
type Config struct {
	DBPath    string
	RunID     string // empty selects the newest run
	OutputDir string
	Format    string // png, svg or pdf
}

// Result is written to <output>/<run>-summary.json.
type Result struct {
	RunID   string         `json:"run_id"`
	Source  string         `json:"source"`
	Plot    string         `json:"plot"`
	Summary report.Summary `json:"summary"`
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.DBPath, "db", "fcw.db", "SQLite run store")
	flag.StringVar(&cfg.RunID, "run", "", "Run ID (newest run when empty)")
	flag.StringVar(&cfg.OutputDir, "out", ".", "Output directory")
	flag.StringVar(&cfg.Format, "format", "png", "Plot format: png, svg or pdf")
	list := flag.Bool("list", false, "List recorded runs and exit")
	flag.Parse()

	store, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	if *list {
		runs, err := store.Runs(0)
		if err != nil {
			log.Fatalf("list runs: %v", err)
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %s\n", r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Source)
		}
		return
	}

	res, err := generate(store, cfg)
	if err != nil {
		log.Fatalf("speed-report: %v", err)
	}
	log.Printf("run %s: %d cycles, %d brake events, plot %s",
		res.RunID, res.Summary.Cycles, res.Summary.BrakeEvents, res.Plot)
}

func generate(store *db.DB, cfg Config) (*Result, error) {
	switch cfg.Format {
	case "png", "svg", "pdf":
	default:
		return nil, fmt.Errorf("unsupported format %q", cfg.Format)
	}

	var run *db.Run
	runs, err := store.Runs(0)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if cfg.RunID == "" || runs[i].RunID == cfg.RunID {
			run = &runs[i]
			break
		}
	}
	if run == nil {
		if cfg.RunID == "" {
			return nil, fmt.Errorf("no runs in %s", store.Path())
		}
		return nil, fmt.Errorf("run %q not found", cfg.RunID)
	}

	cycles, err := store.Cycles(run.RunID, 0)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, err
	}
	base := security.SanitizeFilename(run.RunID)
	res := &Result{
		RunID:   run.RunID,
		Source:  run.Source,
		Plot:    filepath.Join(cfg.OutputDir, base+"-speed."+cfg.Format),
		Summary: report.Summarise(cycles),
	}
	summaryPath := filepath.Join(cfg.OutputDir, base+"-summary.json")
	for _, p := range []string{res.Plot, summaryPath} {
		if err := security.ValidatePathWithinDirectory(p, cfg.OutputDir); err != nil {
			return nil, err
		}
	}
	title := fmt.Sprintf("Run %s (%s)", run.RunID, run.Source)
	if err := report.SavePlot(res.Plot, title, cycles); err != nil {
		return nil, fmt.Errorf("plot: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(summaryPath, append(data, '\n'), 0o644); err != nil {
		return nil, err
	}
	return res, nil
}
