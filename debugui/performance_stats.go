package debugui

import (
	"fmt"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/flare/render"
)

// FrameHistory is a ring of frame times in milliseconds.
type FrameHistory struct {
	samples []float32
	index   int
	filled  int
}

func NewFrameHistory(frames int) *FrameHistory {
	return &FrameHistory{samples: make([]float32, frames)}
}

// Push records one frame.
func (h *FrameHistory) Push(d time.Duration) {
	h.samples[h.index] = float32(d.Seconds() * 1000)
	h.index = (h.index + 1) % len(h.samples)
	h.filled = min(h.filled+1, len(h.samples))
}

// Average returns the mean of the recorded frames.
func (h *FrameHistory) Average() float32 {
	if h.filled == 0 {
		return 0
	}
	var total float32
	for _, ft := range h.samples {
		total += ft
	}
	return total / float32(h.filled)
}

// PerformanceStats shows frame timing, per-stage costs and simulation
// bookkeeping for a renderer.
type PerformanceStats struct {
	Renderer *render.Renderer

	history    *FrameHistory
	lastFrames int64
	lastTime   time.Time
}

func NewPerformanceStats(r *render.Renderer, historyFrames int) *PerformanceStats {
	return &PerformanceStats{
		Renderer: r,
		history:  NewFrameHistory(historyFrames),
	}
}

func (ps *PerformanceStats) Render() {
	stats := ps.Renderer.Stats()
	now := time.Now()
	if stats.Frames != ps.lastFrames && !ps.lastTime.IsZero() {
		ps.history.Push(now.Sub(ps.lastTime))
	}
	ps.lastFrames, ps.lastTime = stats.Frames, now

	imgui.SetNextWindowPosV(imgui.NewVec2(10, 10), imgui.CondOnce, imgui.NewVec2(0, 0))
	imgui.SetNextWindowSizeV(imgui.NewVec2(340, 420), imgui.CondOnce)
	if !imgui.BeginV("Performance Stats", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	avg := ps.history.Average()
	if avg > 0 {
		imgui.Text(fmt.Sprintf("Avg Frame Time: %.2f ms (%.0f FPS)", avg, 1000.0/avg))
	}
	imgui.Text(fmt.Sprintf("Frames: %d", stats.Frames))

	imgui.Separator()
	imgui.Text("Frame Time Graph (ms)")
	imgui.PlotLinesFloatPtr("##frametime", &ps.history.samples[0], int32(len(ps.history.samples)))

	imgui.Separator()
	imgui.Text(fmt.Sprintf("Visible: %d", stats.Visible))
	imgui.Text(fmt.Sprintf("Batches: %d  Sprites: %d", stats.Batches, stats.Sprites))
	imgui.Text(fmt.Sprintf("Schedule Rebuilds: %d", stats.Rebuilds))

	sim := stats.Simulation
	imgui.Separator()
	imgui.Text(fmt.Sprintf("Particles: %d / %d", sim.Live, sim.Capacity))
	imgui.ProgressBarV(float32(sim.Live)/float32(max(sim.Capacity, 1)), imgui.NewVec2(-1, 0), fmt.Sprintf("%d pooled", sim.Pooled))
	imgui.Text(fmt.Sprintf("Dropped: %d  Steps: %d", sim.Dropped, sim.Steps))
	imgui.Text(fmt.Sprintf("Systems: %d  Groups: %d", sim.Systems, sim.Groups))

	if imgui.TreeNodeStr("Frame Stages") {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("StageTable", 3, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("Stage")
			imgui.TableSetupColumn("Avg")
			imgui.TableSetupColumn("Max")
			imgui.TableHeadersRow()

			for _, st := range stats.Stages {
				imgui.TableNextRow()
				imgui.TableNextColumn()
				imgui.Text(st.Name)
				imgui.TableNextColumn()
				imgui.Text(st.AvgDuration.String())
				imgui.TableNextColumn()
				imgui.Text(st.MaxDuration.String())
			}

			imgui.EndTable()
		}
		imgui.TreePop()
	}

	if imgui.TreeNodeStr("Buckets") {
		for i, n := range sim.Buckets {
			imgui.BulletText(fmt.Sprintf("%d: %d particles", i, n))
		}
		imgui.TreePop()
	}

	imgui.End()
}
