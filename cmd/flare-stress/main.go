package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"time"

	"github.com/plus3/flare/config"
	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/render"
	"github.com/plus3/flare/spatial"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML engine config. Defaults are used when empty.")
	scenarioPath := flag.String("scenario", "", "Path to a YAML scenario. A pool saturation scene is used when empty.")
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	frameRate := flag.Int("fps", 0, "Render at a fixed rate instead of as fast as possible.")
	seed := flag.Uint64("seed", 1, "Seed for scene placement.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	log, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	sc := defaultScenario()
	if *scenarioPath != "" {
		if sc, err = loadScenario(*scenarioPath); err != nil {
			log.Fatal("failed to load scenario", zap.Error(err))
		}
	}

	log.Info("starting particle stress test", zap.String("scenario", sc.Name))

	// 1. Setup the draw call database, partition, engine and renderer
	scene, renderer, recorder, err := setup(cfg, sc, log)
	if err != nil {
		log.Fatal("setup failed", zap.Error(err))
	}

	// 2. Populate the scene
	if err := scene.Populate(sc, rand.New(rand.NewPCG(*seed, *seed))); err != nil {
		log.Fatal("failed to populate scene", zap.Error(err))
	}
	log.Info("population complete",
		zap.Int("sprites", len(scene.sprites)),
		zap.Int("systems", len(scene.systems)),
		zap.Int("tiles", scene.Partition.TileCount()))

	// 3. Run the render loop
	report := &Report{
		Scenario:       sc.Name,
		Duration:       *duration,
		Config:         cfg.Engine(),
		Sprites:        len(scene.sprites),
		Systems:        len(scene.systems),
		SpawnRate:      sc.spawnRate(),
		GCPauseMetrics: *gcPauseMetrics,
	}

	runtime.ReadMemStats(&report.MemStatsStart)

	log.Info("running", zap.Duration("duration", *duration))
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	startTime := time.Now()
	if *frameRate > 0 {
		err = runPaced(ctx, renderer, report, time.Second/time.Duration(*frameRate))
	} else {
		err = runUnpaced(ctx, renderer, report)
	}
	if err != nil {
		log.Fatal("frame failed", zap.Error(err))
	}

	report.TotalTime = time.Since(startTime)
	report.FrameTime.Finalize()
	report.Renderer = renderer.Stats()
	report.SubmittedSprites = recorder.Sprites
	runtime.ReadMemStats(&report.MemStatsEnd)

	log.Info("simulation finished", zap.Int64("frames", report.Renderer.Frames))

	// 4. Generate Report to Console
	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		log.Fatal("failed to generate report", zap.Error(err))
	}
	fmt.Println("--- End of Report ---")
}

func setup(cfg *config.Config, sc *Scenario, log *zap.Logger) (*Scene, *render.Renderer, *render.Recorder, error) {
	partition, err := spatial.New(cfg.Partition(), log.Named("spatial"))
	if err != nil {
		return nil, nil, nil, err
	}
	engine, err := particle.NewEngine(cfg.Engine(), log.Named("particle"))
	if err != nil {
		return nil, nil, nil, err
	}
	engine.SetPartition(partition)

	scene := &Scene{
		DrawCalls: drawcall.NewDatabase(log.Named("drawcall")),
		Partition: partition,
		Particles: engine,
	}

	recorder := &render.Recorder{}
	renderer, err := render.NewRenderer(render.Config{
		DrawCalls:    scene.DrawCalls,
		Submitter:    recorder,
		Partition:    partition,
		Particles:    engine,
		MaxDrawCalls: cfg.Render.MaxDrawCalls,
	}, log.Named("render"))
	if err != nil {
		return nil, nil, nil, err
	}
	for _, view := range sc.views() {
		renderer.AddCamera(render.CameraFunc(func() geom.Rect { return view }))
	}
	return scene, renderer, recorder, nil
}

// runUnpaced renders back to back, feeding each frame the wall time since
// the previous one.
func runUnpaced(ctx context.Context, r *render.Renderer, report *Report) error {
	lastFrameTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			if err := frame(r, report, deltaTime); err != nil {
				return err
			}
		}
	}
}

func runPaced(ctx context.Context, r *render.Renderer, report *Report, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastFrameTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			deltaTime := now.Sub(lastFrameTime)
			lastFrameTime = now

			if err := frame(r, report, deltaTime); err != nil {
				return err
			}
		}
	}
}

func frame(r *render.Renderer, report *Report, delta time.Duration) error {
	frameStart := time.Now()
	if err := r.RenderFrame(delta); err != nil {
		return err
	}
	report.FrameTime.Samples = append(report.FrameTime.Samples, time.Since(frameStart))

	stats := r.Stats()
	report.PeakLive = max(report.PeakLive, stats.Simulation.Live)
	report.PeakBatches = max(report.PeakBatches, stats.Batches)
	return nil
}
