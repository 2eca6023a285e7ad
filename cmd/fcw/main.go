package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/fcw/internal/actuation"
	"github.com/banshee-data/fcw/internal/camera"
	"github.com/banshee-data/fcw/internal/config"
	"github.com/banshee-data/fcw/internal/db"
	"github.com/banshee-data/fcw/internal/detect"
	"github.com/banshee-data/fcw/internal/fsutil"
	"github.com/banshee-data/fcw/internal/httputil"
	"github.com/banshee-data/fcw/internal/pipeline"
	"github.com/banshee-data/fcw/internal/radar"
	"github.com/banshee-data/fcw/internal/report"
	"github.com/banshee-data/fcw/internal/serialmux"
	"github.com/banshee-data/fcw/internal/telemetry"
	"github.com/banshee-data/fcw/internal/timeutil"
	"github.com/banshee-data/fcw/internal/version"
)

var (
	configPath     = flag.String("config", "", "Tuning config JSON (defaults built in when empty)")
	detectionsPath = flag.String("detections", "", "Replay detections from a JSON-lines file")
	replayInterval = flag.Duration("replay-interval", 100*time.Millisecond, "Pacing between replayed frames (0 = as fast as possible)")
	cameraDevice   = flag.String("camera", "", "Camera device index or video file (requires -tags gocv)")
	modelPath      = flag.String("model", "", "YOLOv8 ONNX model for camera frames (requires -tags gocv)")
	radarMode      = flag.String("radar", "sim", "Radar source: sim, none, serial or pcap")
	radarPort      = flag.String("radar-port", "/dev/ttyUSB0", "Serial port for -radar serial")
	radarPcap      = flag.String("radar-pcap", "", "Capture file for -radar pcap")
	radarUDPPort   = flag.Int("radar-udp-port", 2368, "UDP destination port of radar packets in -radar-pcap")
	actuatorPort   = flag.String("actuator-port", "", "Serial port of the actuator controller (log commands when empty)")
	initialSpeed   = flag.Float64("initial-speed", 0, "Initial car speed in m/s (overrides initial_speed_mps)")
	dbPath         = flag.String("db", "", "SQLite run store (disabled when empty)")
	listen         = flag.String("listen", "localhost:8080", "Debug HTTP listen address (disabled when empty)")
	grpcListen     = flag.String("grpc-listen", "", "Telemetry gRPC listen address (disabled when empty)")
	lockPath       = flag.String("lock", filepath.Join(os.TempDir(), "fcw.lock"), "Single-instance lock file (disabled when empty)")
	trace          = flag.Bool("trace", false, "Log one line per decision cycle")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("fcw: %v", err)
		stop()
		os.Exit(1)
	}
	log.Printf("Graceful shutdown complete")
}

// flagWasSet reports whether name was given on the command line.
func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func run(ctx context.Context) error {
	var traceW io.Writer
	if *trace {
		traceW = os.Stderr
	}
	pipeline.SetLogWriters(os.Stderr, os.Stderr, traceW)

	if *lockPath != "" {
		lock, err := fsutil.AcquireLock(*lockPath)
		if err != nil {
			return fmt.Errorf("single-instance lock: %w", err)
		}
		defer lock.Release()
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := pipeline.ConfigFromTuning(tuning)
	if flagWasSet("initial-speed") {
		cfg.InitialSpeed = *initialSpeed
	}

	// Background routines (serial monitors, radar reader, HTTP server) stop
	// when runCtx is cancelled after the decision loop returns.
	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	mux := http.NewServeMux()

	producer, detector, source, err := openFrames(tuning)
	if err != nil {
		return err
	}
	if c, ok := producer.(io.Closer); ok {
		defer c.Close()
	}
	if c, ok := detector.(io.Closer); ok {
		defer c.Close()
	}

	radarSrc, err := openRadar(runCtx, &wg, mux)
	if err != nil {
		return err
	}

	act, err := openActuator(runCtx, &wg, mux)
	if err != nil {
		return err
	}
	defer act.Close()

	sinks := []pipeline.CycleSink{pipeline.ActuatorSink(act)}

	if *dbPath != "" {
		store, err := db.OpenDB(*dbPath)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer store.Close()

		cfgJSON, err := runConfigJSON(tuning)
		if err != nil {
			return err
		}
		runID, err := store.StartRun(time.Now(), source, cfg.InitialSpeed, cfgJSON)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.FinishRun(runID, time.Now()); err != nil {
				log.Printf("finish run %s: %v", runID, err)
			}
		}()
		log.Printf("recording run %s to %s", runID, *dbPath)

		if err := store.AttachAdminRoutes(mux); err != nil {
			return err
		}
		report.AttachAdminRoutes(mux, store)
		sinks = append(sinks, pipeline.RecorderSink(store, runID))
	}

	if *grpcListen != "" {
		tcfg := telemetry.DefaultConfig()
		tcfg.ListenAddr = *grpcListen
		pub := telemetry.NewPublisher(tcfg)
		if err := pub.Start(); err != nil {
			return fmt.Errorf("start telemetry: %w", err)
		}
		defer pub.Stop()
		sinks = append(sinks, pipeline.TelemetrySink(pub))
	}

	core := pipeline.NewCore(cfg, detector, radarSrc, timeutil.RealClock{}, sinks...)

	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.String())
	debug.KV("Frame source", source)
	debug.KV("Radar", *radarMode)
	debug.Handle("pipeline", "Decision loop counters as JSON", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, struct {
			Stats pipeline.Stats `json:"stats"`
			State any            `json:"state"`
		}{core.Stats(), core.State()})
	}))

	if *listen != "" {
		serveHTTP(runCtx, &wg, *listen, mux)
	}

	log.Printf("%s: source=%s radar=%s initial_speed=%.2f m/s", version.String(), source, *radarMode, cfg.InitialSpeed)
	err = core.Run(runCtx, producer)
	cancel()
	if err != nil {
		return fmt.Errorf("decision loop: %w", err)
	}
	return nil
}

// openFrames selects the frame producer and detector. The returned source
// name is recorded with the run.
// runConfigJSON is the tuning snapshot stored with each run.
func runConfigJSON(tuning *config.TuningConfig) ([]byte, error) {
	data, err := json.Marshal(tuning)
	if err != nil {
		return nil, fmt.Errorf("encode tuning config: %w", err)
	}
	return data, nil
}

func openFrames(tuning *config.TuningConfig) (detect.Producer, detect.Detector, string, error) {
	switch {
	case *detectionsPath != "":
		f, err := os.Open(*detectionsPath)
		if err != nil {
			return nil, nil, "", fmt.Errorf("open detections: %w", err)
		}
		p := detect.NewReplayProducer(f, timeutil.RealClock{}, *replayInterval)
		return &closingProducer{Producer: p, c: f}, detect.Precomputed{}, "replay:" + *detectionsPath, nil

	case *cameraDevice != "":
		ccfg := camera.DefaultConfig()
		ccfg.Device = *cameraDevice
		ccfg.Width = tuning.GetImageWidthPx()
		ccfg.Height = tuning.GetImageWidthPx() * 3 / 4
		p, err := camera.NewProducer(ccfg, timeutil.RealClock{})
		if err != nil {
			return nil, nil, "", err
		}
		if *modelPath == "" {
			p.Close()
			return nil, nil, "", errors.New("-camera needs -model")
		}
		ycfg := camera.DefaultYOLOConfig()
		ycfg.ModelPath = *modelPath
		d, err := camera.NewYOLODetector(ycfg)
		if err != nil {
			p.Close()
			return nil, nil, "", err
		}
		return p, d, "camera:" + *cameraDevice, nil

	default:
		return nil, nil, "", errors.New("one of -detections or -camera is required")
	}
}

// closingProducer closes the replay file when the run ends.
type closingProducer struct {
	detect.Producer
	c io.Closer
}

func (p *closingProducer) Close() error { return p.c.Close() }

func openRadar(ctx context.Context, wg *sync.WaitGroup, mux *http.ServeMux) (radar.Source, error) {
	switch *radarMode {
	case "sim":
		return radar.DefaultSimulated(), nil
	case "none":
		return radar.None{}, nil
	case "pcap":
		if *radarPcap == "" {
			return nil, errors.New("-radar pcap needs -radar-pcap")
		}
		replay, err := radar.LoadPcap(*radarPcap, *radarUDPPort)
		if err != nil {
			return nil, err
		}
		log.Printf("loaded %d radar batches from %s", replay.Remaining(), *radarPcap)
		return replay, nil
	case "serial":
		sm, err := serialmux.NewRealSerialMux("radar", *radarPort, serialmux.PortOptions{})
		if err != nil {
			return nil, fmt.Errorf("open radar port: %w", err)
		}
		if err := sm.Initialize(radar.SetupCommands...); err != nil {
			sm.Close()
			return nil, fmt.Errorf("initialise radar: %w", err)
		}
		status := serialmux.NewDeviceStatus()
		src := radar.NewSerialSource(sm, status)
		sm.AttachAdminRoutes(mux)
		status.AttachAdminRoutes(mux, "radar")

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := sm.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("radar serial monitor: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			src.Run(ctx)
			sm.Close()
		}()
		return src, nil
	default:
		return nil, fmt.Errorf("unknown -radar %q (want sim, none, serial or pcap)", *radarMode)
	}
}

func openActuator(ctx context.Context, wg *sync.WaitGroup, mux *http.ServeMux) (actuation.Actuator, error) {
	if *actuatorPort == "" {
		return actuation.NewLog(os.Stdout), nil
	}
	sm, err := serialmux.NewRealSerialMux("actuator", *actuatorPort, serialmux.PortOptions{})
	if err != nil {
		return nil, fmt.Errorf("open actuator port: %w", err)
	}
	sm.AttachAdminRoutes(mux)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sm.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("actuator serial monitor: %v", err)
		}
	}()
	return actuation.NewSerial(sm), nil
}

func serveHTTP(ctx context.Context, wg *sync.WaitGroup, addr string, mux *http.ServeMux) {
	server := &http.Server{Addr: addr, Handler: mux}
	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("debug HTTP server: %v", err)
			}
		}()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			server.Close()
		}
	}()
	log.Printf("debug HTTP on http://%s/debug/", addr)
}
