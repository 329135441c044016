// Package particle implements a pooled particle simulation whose live set is
// partitioned into buckets that are updated in parallel once per fixed step.
//
// All Engine and System methods must be called from a single goroutine. The
// only concurrency is inside a simulation step, where each bucket is updated
// by its own task; tasks touch nothing but the particles of their bucket and
// their own command buffer.
package particle

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"slices"
	"time"

	"github.com/kamstrup/intmap"
	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/spatial"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("particle: invalid config")

// Config sizes the pool and the update schedule.
type Config struct {
	// PoolSize is the total number of particles that can be alive at once.
	PoolSize int
	// Buckets is the number of independent update partitions.
	Buckets int
	// MaxParallelism caps the number of buckets updated concurrently.
	MaxParallelism int
	// UpdateRate is the fixed simulation step.
	UpdateRate time.Duration
	// MaxStepsPerFrame bounds catch-up after a long frame; the remaining
	// backlog is dropped.
	MaxStepsPerFrame int
	// TimeScale multiplies the simulated time of every step.
	TimeScale float64
}

// DefaultConfig returns a 10k particle pool stepped at 144Hz.
func DefaultConfig() Config {
	return Config{
		PoolSize:         10000,
		Buckets:          8,
		MaxParallelism:   runtime.GOMAXPROCS(0),
		UpdateRate:       time.Second / 144,
		MaxStepsPerFrame: 4,
		TimeScale:        1,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.PoolSize <= 0:
		return fmt.Errorf("%w: pool size %d", ErrInvalidConfig, c.PoolSize)
	case c.Buckets <= 0:
		return fmt.Errorf("%w: bucket count %d", ErrInvalidConfig, c.Buckets)
	case c.MaxParallelism <= 0:
		return fmt.Errorf("%w: max parallelism %d", ErrInvalidConfig, c.MaxParallelism)
	case c.UpdateRate <= 0:
		return fmt.Errorf("%w: update rate %s", ErrInvalidConfig, c.UpdateRate)
	case c.MaxStepsPerFrame <= 0:
		return fmt.Errorf("%w: max steps per frame %d", ErrInvalidConfig, c.MaxStepsPerFrame)
	case c.TimeScale < 0:
		return fmt.Errorf("%w: time scale %v", ErrInvalidConfig, c.TimeScale)
	}
	return nil
}

// Stats is a snapshot of the engine's bookkeeping.
type Stats struct {
	Capacity        int
	Live            int
	Pooled          int
	Groups          int
	Systems         int
	Buckets         []int
	PendingReleases int
	Dropped         uint64
	Steps           uint64
}

// Engine owns the particle pool, the update buckets and the registered
// particle systems.
type Engine struct {
	log *zap.Logger
	cfg Config

	pool       *Pool
	groups     [renderTypeCount]*intmap.Map[drawcall.ID, *Group]
	order      []*Group
	nextBucket int

	systems   []*System
	partition *spatial.Partition
	views     []geom.Rect
	scratch   []spatial.Object

	deferred   Commands
	bucketCmds []Commands
	pending    chan struct{}

	accumulator time.Duration
	dropped     uint64
	stepDropped uint64
	steps       uint64
}

// NewEngine creates an engine with a pre-filled pool. A nil logger disables
// logging.
func NewEngine(cfg Config, log *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		log:        log,
		cfg:        cfg,
		pool:       newPool(cfg.PoolSize),
		bucketCmds: make([]Commands, cfg.Buckets),
	}
	for i := range e.groups {
		e.groups[i] = intmap.New[drawcall.ID, *Group](16)
	}

	log.Info("particle engine ready",
		zap.Int("pool", cfg.PoolSize),
		zap.Int("buckets", cfg.Buckets),
		zap.Int("parallelism", cfg.MaxParallelism),
		zap.Duration("step", cfg.UpdateRate))
	return e, nil
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Configure rebuilds the pool and buckets. Any update in flight is joined
// first. Live particles are kept, in update order, as long as they fit in
// the new pool; the rest are released. Particle pointers and IDs obtained
// before the call are invalid afterwards.
func (e *Engine) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.join()
	e.deferred.Flush(e)

	live := e.liveIDs()
	keep := min(len(live), cfg.PoolSize)
	released := len(live) - keep
	for _, id := range live[keep:] {
		e.release(&e.pool.particles[id])
	}
	live = live[:keep]

	pool, remap := e.pool.compact(live, cfg.PoolSize)
	e.pool = pool

	for _, g := range e.order {
		g.resetBuckets(cfg.Buckets)
	}
	e.nextBucket = 0
	for _, old := range live {
		p := &pool.particles[remap[old]]
		p.group.add(p, e.nextBucketIndex(cfg.Buckets))
	}

	for _, sys := range e.allSystems() {
		for i, id := range sys.active {
			sys.active[i] = remap[id]
		}
	}

	e.bucketCmds = make([]Commands, cfg.Buckets)
	e.log.Info("particle engine reconfigured",
		zap.Int("pool", cfg.PoolSize),
		zap.Int("buckets", cfg.Buckets),
		zap.Int("parallelism", cfg.MaxParallelism),
		zap.Int("kept", keep),
		zap.Int("released", released))
	e.cfg = cfg
	return nil
}

// SetPartition makes the visibility pass query p for bounded systems instead
// of testing every system. Bounded systems are inserted into p. Passing nil
// reverts to testing every system.
func (e *Engine) SetPartition(p *spatial.Partition) {
	e.join()
	if e.partition != nil {
		for _, sys := range e.systems {
			e.partition.Remove(sys)
		}
	}
	e.partition = p
	if p != nil {
		for _, sys := range e.systems {
			if sys.bounded() {
				p.Insert(sys)
			}
		}
	}
}

// Acquire takes a particle from the pool and assigns it to the bucket of the
// given render type and draw call. It returns false when the pool is
// exhausted. The particle has no owning system.
func (e *Engine) Acquire(rt RenderType, dc drawcall.ID) (*Particle, bool) {
	if err := rt.Validate(); err != nil {
		panic(err)
	}
	e.join()
	p, ok := e.acquire(rt, dc, nil)
	if !ok {
		e.dropped++
		e.stepDropped++
	}
	return p, ok
}

// Release returns p to the pool at once, detaching it from its system and
// bucket. Releasing a pooled particle does nothing and returns false.
func (e *Engine) Release(p *Particle) bool {
	e.join()
	if p == nil || p.inPool {
		return false
	}
	e.release(p)
	return true
}

// Defer queues fn to run at the start of the next simulation step, after the
// pending releases.
func (e *Engine) Defer(fn func()) {
	e.join()
	e.deferred.Defer(fn)
}

// Tick advances the simulation by delta of real time and waits for the
// update to complete. It returns the number of steps run.
func (e *Engine) Tick(delta time.Duration, views ...geom.Rect) int {
	steps := e.Begin(delta, views)
	e.Finalize()
	return steps
}

// Begin advances the simulation by delta of real time, running as many fixed
// steps as have accumulated. The bucket update of the last step is left
// running in the background; Finalize joins it. views are the camera
// rectangles used for the visibility pass.
func (e *Engine) Begin(delta time.Duration, views []geom.Rect) int {
	e.join()
	e.views = append(e.views[:0], views...)

	e.accumulator += delta
	steps := 0
	for e.accumulator >= e.cfg.UpdateRate && steps < e.cfg.MaxStepsPerFrame {
		e.accumulator -= e.cfg.UpdateRate
		steps++
	}
	if e.accumulator >= e.cfg.UpdateRate {
		e.log.Debug("dropping simulation backlog", zap.Duration("backlog", e.accumulator))
		e.accumulator = 0
	}

	for i := 0; i < steps; i++ {
		e.step(i == steps-1)
	}
	return steps
}

// Finalize waits for any bucket update in flight. Rendering must not read
// particles before Finalize returns.
func (e *Engine) Finalize() {
	e.join()
}

func (e *Engine) step(async bool) {
	e.join()
	e.steps++

	e.deferred.Flush(e)
	e.updateVisibility()

	dt := e.cfg.UpdateRate.Seconds() * e.cfg.TimeScale
	for i := 0; i < len(e.systems); i++ {
		e.systems[i].advance(dt)
	}

	if e.stepDropped > 0 {
		e.log.Debug("particle pool exhausted", zap.Uint64("dropped", e.stepDropped))
		e.stepDropped = 0
	}

	e.update(dt, async)
}

// update runs one task per bucket. Tasks only mutate particles of their own
// bucket and record deaths in their own command buffer.
func (e *Engine) update(dt float64, async bool) {
	n := len(e.bucketCmds)
	if n == 1 || e.cfg.MaxParallelism == 1 {
		for i := 0; i < n; i++ {
			e.updateBucket(i, dt)
		}
		e.collect()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(e.cfg.MaxParallelism)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				e.updateBucket(i, dt)
				return nil
			})
		}
		_ = g.Wait()
	}()
	e.pending = done

	if !async {
		e.join()
	}
}

func (e *Engine) updateBucket(bucket int, dt float64) {
	cmds := &e.bucketCmds[bucket]
	particles := e.pool.particles
	for _, g := range e.order {
		for _, id := range g.buckets[bucket] {
			p := &particles[id]
			if !p.enabled {
				continue
			}
			if !p.update(dt) {
				cmds.Release(p)
			}
		}
	}
}

// join blocks until the bucket update in flight, if any, has finished and
// merges the recorded releases into the deferred queue.
func (e *Engine) join() {
	if e.pending == nil {
		return
	}
	<-e.pending
	e.pending = nil
	e.collect()
}

func (e *Engine) collect() {
	for i := range e.bucketCmds {
		e.deferred.take(&e.bucketCmds[i])
	}
}

func (e *Engine) updateVisibility() {
	if e.partition != nil {
		for _, sys := range e.systems {
			sys.seen = false
		}
		for _, view := range e.views {
			e.scratch = e.partition.GetOverlapping(e.scratch[:0], view)
			for _, obj := range e.scratch {
				sys, ok := obj.(*System)
				if !ok || sys.engine != e || !sys.enabled {
					continue
				}
				if !sys.seen && sys.Bounds().Intersects(view) {
					sys.seen = true
				}
			}
		}
		clear(e.scratch)
	}

	for _, sys := range e.systems {
		visible := true
		if sys.bounded() {
			if e.partition != nil {
				visible = sys.seen
			} else {
				visible = sys.testVisibility(e.views)
			}
		}
		sys.setVisible(visible)
	}
}

func (e *Engine) nextBucketIndex(n int) int {
	b := e.nextBucket % n
	e.nextBucket = (b + 1) % n
	return b
}

func (e *Engine) group(rt RenderType, dc drawcall.ID) *Group {
	if g, ok := e.groups[rt].Get(dc); ok {
		return g
	}

	g := &Group{
		engine:     e,
		renderType: rt,
		drawCall:   dc,
		buckets:    make([][]ID, len(e.bucketCmds)),
	}
	e.groups[rt].Put(dc, g)

	i, _ := slices.BinarySearchFunc(e.order, g, compareGroups)
	e.order = slices.Insert(e.order, i, g)
	return g
}

func compareGroups(a, b *Group) int {
	if c := cmp.Compare(a.renderType, b.renderType); c != 0 {
		return c
	}
	return cmp.Compare(a.drawCall, b.drawCall)
}

func (e *Engine) acquire(rt RenderType, dc drawcall.ID, sys *System) (*Particle, bool) {
	p, ok := e.pool.pop()
	if !ok {
		return nil, false
	}
	p.enabled = true
	p.inEngine = true
	p.system = sys
	e.group(rt, dc).add(p, e.nextBucketIndex(len(e.bucketCmds)))
	return p, true
}

func (e *Engine) release(p *Particle) {
	if p.inPool {
		return
	}
	if p.system != nil {
		p.system.detach(p)
	}
	if p.group != nil {
		p.group.remove(p)
	}
	e.pool.push(p)
}

func (e *Engine) liveIDs() []ID {
	ids := make([]ID, 0, e.pool.Live())
	for _, g := range e.order {
		for _, bucket := range g.buckets {
			ids = append(ids, bucket...)
		}
	}
	return ids
}

// allSystems returns registered systems plus disabled systems that still own
// particles.
func (e *Engine) allSystems() []*System {
	seen := make(map[*System]struct{}, len(e.systems))
	out := slices.Clone(e.systems)
	for _, sys := range out {
		seen[sys] = struct{}{}
	}
	for i := range e.pool.particles {
		sys := e.pool.particles[i].system
		if sys == nil {
			continue
		}
		if _, ok := seen[sys]; !ok {
			seen[sys] = struct{}{}
			out = append(out, sys)
		}
	}
	return out
}

// Groups iterates the non-empty particle groups ordered by render type and
// then draw call. It joins any update in flight.
func (e *Engine) Groups() iter.Seq[*Group] {
	e.join()
	return func(yield func(*Group) bool) {
		for _, g := range e.order {
			if g.size == 0 {
				continue
			}
			if !yield(g) {
				return
			}
		}
	}
}

// Systems returns the registered systems. The slice is owned by the engine.
func (e *Engine) Systems() []*System {
	return e.systems
}

// Stats returns a snapshot of pool and bucket occupancy.
func (e *Engine) Stats() Stats {
	e.join()
	s := Stats{
		Capacity:        e.pool.Cap(),
		Live:            e.pool.Live(),
		Pooled:          e.pool.Free(),
		Groups:          len(e.order),
		Systems:         len(e.systems),
		Buckets:         make([]int, len(e.bucketCmds)),
		PendingReleases: e.deferred.Len(),
		Dropped:         e.dropped,
		Steps:           e.steps,
	}
	for _, g := range e.order {
		for i, bucket := range g.buckets {
			s.Buckets[i] += len(bucket)
		}
	}
	return s
}

// Validate checks the pool membership invariants: every particle is either
// pooled or in exactly one bucket, and pooled plus live equals capacity.
func (e *Engine) Validate() error {
	e.join()

	inBuckets := make([]int, e.pool.Cap())
	live := 0
	for _, g := range e.order {
		n := 0
		for b, bucket := range g.buckets {
			for slot, id := range bucket {
				p := e.pool.at(id)
				if p == nil {
					return fmt.Errorf("group %s/%d holds unknown particle %d", g.renderType, g.drawCall, id)
				}
				if p.group != g || int(p.bucket) != b || int(p.slot) != slot {
					return fmt.Errorf("particle %d back-reference does not match bucket %d slot %d", id, b, slot)
				}
				inBuckets[id]++
				n++
			}
		}
		if n != g.size {
			return fmt.Errorf("group %s/%d size %d, counted %d", g.renderType, g.drawCall, g.size, n)
		}
		live += n
	}

	pooled := 0
	for i := range e.pool.particles {
		p := &e.pool.particles[i]
		if p.id != ID(i) {
			return fmt.Errorf("particle at %d has id %d", i, p.id)
		}
		if p.inPool {
			pooled++
		}
		if p.inPool == p.inEngine {
			return fmt.Errorf("particle %d pooled=%t engine=%t", i, p.inPool, p.inEngine)
		}
		if p.inEngine != (inBuckets[i] == 1) {
			return fmt.Errorf("particle %d appears in %d buckets", i, inBuckets[i])
		}
	}

	if pooled != e.pool.Free() {
		return fmt.Errorf("pooled flags %d, free list %d", pooled, e.pool.Free())
	}
	if pooled+live != e.pool.Cap() {
		return fmt.Errorf("pooled %d + live %d != capacity %d", pooled, live, e.pool.Cap())
	}
	return nil
}
