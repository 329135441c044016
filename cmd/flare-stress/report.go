package main

import (
	"fmt"
	"io"
	"runtime"
	"text/template"
	"time"

	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/render"
)

type Report struct {
	// Configuration
	Scenario  string
	Duration  time.Duration
	Config    particle.Config
	Sprites   int
	Systems   int
	SpawnRate float64

	// Results
	TotalTime        time.Duration
	FrameTime        Stats
	Renderer         render.RendererStats
	PeakLive         int
	PeakBatches      int
	SubmittedSprites int
	GCPauseMetrics   bool
	MemStatsStart    runtime.MemStats
	MemStatsEnd      runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		if sample < s.Min {
			s.Min = sample
		}
		if sample > s.Max {
			s.Max = sample
		}
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Particle Stress Test Report

## Test Configuration
- **Scenario:** {{.Scenario}}
- **Run Duration:** {{.Duration}}
- **Pool Size:** {{.Config.PoolSize}}
- **Buckets:** {{.Config.Buckets}} (parallelism {{.Config.MaxParallelism}})
- **Update Rate:** {{.Config.UpdateRate}}
- **Static Sprites:** {{.Sprites}}
- **Particle Systems:** {{.Systems}}
- **Requested Spawn Rate:** {{printf "%.0f" .SpawnRate}}/s

## Performance Results
- **Total Frames:** {{.Renderer.Frames}}
- **Total Test Time:** {{.TotalTime}}
- **Frame Time:**
  - **Avg:** {{.FrameTime.Avg}}
  - **Min:** {{.FrameTime.Min}}
  - **Max:** {{.FrameTime.Max}}

## Frame Stages
| Stage | Avg | Min | Max |
|-------|-----|-----|-----|
{{- range .Renderer.Stages}}
| {{.Name}} | {{.AvgDuration}} | {{.MinDuration}} | {{.MaxDuration}} |
{{- end}}

## Simulation
- **Steps:** {{.Renderer.Simulation.Steps}}
- **Peak Live Particles:** {{.PeakLive}} / {{.Renderer.Simulation.Capacity}}
- **Dropped Spawns:** {{.Renderer.Simulation.Dropped}}
- **Groups:** {{.Renderer.Simulation.Groups}}
- **Bucket Sizes (last frame):** {{.Renderer.Simulation.Buckets}}

## Rendering
- **Visible Renderables (last frame):** {{.Renderer.Visible}}
- **Peak Batches per Frame:** {{.PeakBatches}}
- **Schedule Rebuilds:** {{.Renderer.Rebuilds}}
- **Submitted Sprites:** {{.SubmittedSprites}}

## Memory Usage (MB)
- Heap Alloc:     {{mb .MemStatsStart.HeapAlloc}} (start) -> {{mb .MemStatsEnd.HeapAlloc}} (end) -> delta: {{mb (bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc)}}
- Total Alloc:    {{mb .MemStatsStart.TotalAlloc}} (start) -> {{mb .MemStatsEnd.TotalAlloc}} (end) -> delta: {{mb (bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc)}}
- Sys Memory:     {{mb .MemStatsStart.Sys}} (start) -> {{mb .MemStatsEnd.Sys}} (end) -> delta: {{mb (bsub .MemStatsEnd.Sys .MemStatsStart.Sys)}}
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}

{{if .GCPauseMetrics}}
## GC Pause Durations
- **Total GC Pause:** {{.MemStatsEnd.PauseTotalNs | ns}}
- **Num GC Cycles:** {{ usub .MemStatsEnd.NumGC .MemStatsStart.NumGC }}
{{end}}
`

	fm := template.FuncMap{
		"mb": func(v any) string {
			switch val := v.(type) {
			case uint64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			case int64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			default:
				return "N/A"
			}
		},
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
