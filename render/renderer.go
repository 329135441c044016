package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/spatial"
	"go.uber.org/zap"
)

// Camera supplies the visible region of one viewport.
type Camera interface {
	View() geom.Rect
}

// CameraFunc adapts a function to Camera.
type CameraFunc func() geom.Rect

func (f CameraFunc) View() geom.Rect { return f() }

// Stage is a step of the frame pipeline.
type Stage int

// Frame stages, in execution order.
const (
	StageCull Stage = iota
	StageLists
	StageLitQueues
	StageLighting
	StageUnlitQueues
	StageParticles
	StageUI
	StagePresent

	stageCount
)

var stageNames = [stageCount]string{
	"cull", "lists", "lit", "lighting", "unlit", "particles", "ui", "present",
}

// RendererStats provides statistics about frame execution.
type RendererStats struct {
	Frames     int64
	Rebuilds   int
	Visible    int
	Batches    int
	Sprites    int
	Stages     []StageStats
	Simulation particle.Stats
}

// StageStats provides execution statistics for one frame stage.
type StageStats struct {
	Name          string
	MinDuration   time.Duration
	MaxDuration   time.Duration
	AvgDuration   time.Duration
	LastDuration  time.Duration
	TotalDuration time.Duration
}

type stageStatsInternal struct {
	minDuration   time.Duration
	maxDuration   time.Duration
	totalDuration time.Duration
	lastDuration  time.Duration
}

// Config wires a renderer to its collaborators. DrawCalls and Submitter are
// required; Partition and Particles are optional.
type Config struct {
	DrawCalls *drawcall.Database
	Submitter Submitter
	Partition *spatial.Partition
	Particles *particle.Engine
	// MaxDrawCalls sizes the opaque lists up front.
	MaxDrawCalls int
}

// Renderer runs the per-frame pipeline: cull, build lists, submit lit
// queues, run the lighting pass, submit unlit queues, draw particles, draw
// the UI and present.
type Renderer struct {
	log       *zap.Logger
	db        *drawcall.Database
	submitter Submitter
	partition *spatial.Partition
	particles *particle.Engine
	container *Container

	cameras []Camera

	// Lighting runs between the lit and unlit queues.
	Lighting func(views []geom.Rect) error
	// UI runs after particles, before Present.
	UI func() error

	views   []geom.Rect
	found   []spatial.Object
	scratch []spatial.Object
	seen    map[spatial.Object]struct{}
	sprites []Sprite

	frames  int64
	visible int
	batches int
	drawn   int
	stats   [stageCount]stageStatsInternal
}

// NewRenderer creates a renderer. A nil logger disables logging.
func NewRenderer(cfg Config, log *zap.Logger) (*Renderer, error) {
	if cfg.DrawCalls == nil {
		return nil, errors.New("render: draw call database is required")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("render: submitter is required")
	}
	if cfg.MaxDrawCalls < 0 {
		return nil, fmt.Errorf("render: max draw calls %d", cfg.MaxDrawCalls)
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Renderer{
		log:       log,
		db:        cfg.DrawCalls,
		submitter: cfg.Submitter,
		partition: cfg.Partition,
		particles: cfg.Particles,
		container: NewContainer(cfg.MaxDrawCalls),
		seen:      make(map[spatial.Object]struct{}),
	}
	for i := range r.stats {
		r.stats[i].minDuration = time.Duration(1<<63 - 1)
	}
	return r, nil
}

// AddCamera registers a viewport.
func (r *Renderer) AddCamera(c Camera) {
	r.cameras = append(r.cameras, c)
}

// RemoveCamera unregisters a viewport. Cameras are matched with ==, so c
// must be comparable.
func (r *Renderer) RemoveCamera(c Camera) {
	for i, x := range r.cameras {
		if x == c {
			r.cameras = append(r.cameras[:i], r.cameras[i+1:]...)
			return
		}
	}
}

// Container exposes the lists built by the last frame.
func (r *Renderer) Container() *Container { return r.container }

// RenderFrame renders one frame, advancing the particle simulation by delta.
func (r *Renderer) RenderFrame(delta time.Duration) error {
	r.frames++
	r.batches, r.drawn = 0, 0
	defer r.container.Reset()

	r.views = r.views[:0]
	for _, c := range r.cameras {
		r.views = append(r.views, c.View())
	}

	start := time.Now()
	r.cull()
	if r.partition != nil {
		if r.partition.Tick(delta) {
			r.log.Debug("pruned spatial partition", zap.Int("tiles", r.partition.TileCount()))
		}
	}
	r.record(StageCull, start)

	start = time.Now()
	if r.particles != nil {
		r.particles.Begin(delta, r.views)
	}
	for _, obj := range r.found {
		r.container.Add(obj.(Renderable))
	}
	r.container.Sort()
	rebuilds := r.container.Rebuilds()
	schedule := r.container.Schedule()
	if r.container.Rebuilds() != rebuilds {
		r.log.Debug("render schedule rebuilt", zap.Int("queues", len(schedule)))
	}
	r.record(StageLists, start)

	start = time.Now()
	for _, q := range schedule {
		if q.Lit() {
			if err := r.submitQueue(q); err != nil {
				r.finalize()
				return err
			}
		}
	}
	r.record(StageLitQueues, start)

	start = time.Now()
	// The lighting pass may read particle state.
	r.finalize()
	if r.Lighting != nil {
		if err := r.Lighting(r.views); err != nil {
			return fmt.Errorf("render: lighting pass: %w", err)
		}
	}
	r.record(StageLighting, start)

	start = time.Now()
	for _, q := range schedule {
		if !q.Lit() {
			if err := r.submitQueue(q); err != nil {
				r.finalize()
				return err
			}
		}
	}
	r.record(StageUnlitQueues, start)

	start = time.Now()
	if err := r.drawParticles(); err != nil {
		return err
	}
	r.record(StageParticles, start)

	start = time.Now()
	if r.UI != nil {
		if err := r.UI(); err != nil {
			return fmt.Errorf("render: ui pass: %w", err)
		}
	}
	r.record(StageUI, start)

	start = time.Now()
	if err := r.submitter.Present(); err != nil {
		return fmt.Errorf("render: present: %w", err)
	}
	r.record(StagePresent, start)
	return nil
}

// cull collects the renderables intersecting any view, once each.
func (r *Renderer) cull() {
	clear(r.found)
	r.found = r.found[:0]
	clear(r.seen)
	if r.partition == nil {
		r.visible = 0
		return
	}

	for _, view := range r.views {
		r.scratch = r.partition.GetOverlapping(r.scratch[:0], view)
		for _, obj := range r.scratch {
			rn, ok := obj.(Renderable)
			if !ok || !rn.Bounds().Intersects(view) {
				continue
			}
			if _, dup := r.seen[obj]; dup {
				continue
			}
			r.seen[obj] = struct{}{}
			r.found = append(r.found, obj)
		}
	}
	clear(r.scratch)
	r.visible = len(r.found)
}

func (r *Renderer) submitQueue(q Queue) error {
	for id, items := range r.container.Batches(q) {
		entry, ok := r.db.Lookup(id)
		if !ok {
			r.log.Debug("skipping pruned draw call", zap.Uint32("id", uint32(id)))
			continue
		}
		r.sprites = r.sprites[:0]
		for _, it := range items {
			r.sprites = append(r.sprites, it.Sprite())
		}
		if err := r.submit(q, entry); err != nil {
			return err
		}
	}
	return nil
}

// particleQueues maps particle render types to the queue their batches are
// submitted with.
var particleQueues = [...]Queue{
	particle.RenderAlpha:      QueueOf(PhaseLit, BlendTransparent),
	particle.RenderAlphaUnlit: QueueOf(PhaseUnlit, BlendTransparent),
	particle.RenderAdditive:   QueueOf(PhaseUnlit, BlendAdditive),
}

// ParticleQueue returns the queue used for particles of render type rt.
func ParticleQueue(rt particle.RenderType) Queue {
	return particleQueues[rt]
}

func (r *Renderer) finalize() {
	if r.particles != nil {
		r.particles.Finalize()
	}
}

// drawParticles joins the simulation and submits one batch per particle
// group.
func (r *Renderer) drawParticles() error {
	if r.particles == nil {
		return nil
	}
	r.particles.Finalize()

	for g := range r.particles.Groups() {
		entry, ok := r.db.Lookup(g.DrawCall())
		if !ok {
			continue
		}
		w, h := entry.Texture.Size()
		size := geom.Vec2{X: float64(w), Y: float64(h)}

		r.sprites = r.sprites[:0]
		for p := range g.Particles() {
			r.sprites = append(r.sprites, Sprite{
				Position: p.Position,
				Size:     geom.Vec2{X: size.X * p.Scale.X, Y: size.Y * p.Scale.Y},
				Rotation: p.Rotation,
				Color:    p.Color,
			})
		}
		if len(r.sprites) == 0 {
			continue
		}
		if err := r.submit(ParticleQueue(g.RenderType()), entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) submit(q Queue, entry drawcall.Entry) error {
	err := r.submitter.Submit(Batch{Queue: q, DrawCall: entry, Sprites: r.sprites})
	if err != nil {
		return fmt.Errorf("render: submit %s draw call %d: %w", q, entry.ID, err)
	}
	r.batches++
	r.drawn += len(r.sprites)
	return nil
}

func (r *Renderer) record(stage Stage, start time.Time) {
	d := time.Since(start)
	s := &r.stats[stage]
	s.lastDuration = d
	s.totalDuration += d
	if d < s.minDuration {
		s.minDuration = d
	}
	if d > s.maxDuration {
		s.maxDuration = d
	}
}

// Run renders frames at the given interval until the context is cancelled or
// a frame fails.
func (r *Renderer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			delta := now.Sub(lastTime)
			lastTime = now
			if err := r.RenderFrame(delta); err != nil {
				return err
			}
		}
	}
}

// Stats returns statistics about frame execution.
func (r *Renderer) Stats() RendererStats {
	stats := RendererStats{
		Frames:   r.frames,
		Rebuilds: r.container.Rebuilds(),
		Visible:  r.visible,
		Batches:  r.batches,
		Sprites:  r.drawn,
		Stages:   make([]StageStats, stageCount),
	}
	if r.particles != nil {
		stats.Simulation = r.particles.Stats()
	}

	for i, internal := range r.stats {
		avg := time.Duration(0)
		if r.frames > 0 {
			avg = internal.totalDuration / time.Duration(r.frames)
		}
		stats.Stages[i] = StageStats{
			Name:          stageNames[i],
			MinDuration:   internal.minDuration,
			MaxDuration:   internal.maxDuration,
			AvgDuration:   avg,
			LastDuration:  internal.lastDuration,
			TotalDuration: internal.totalDuration,
		}
	}
	return stats
}
