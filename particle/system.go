package particle

import (
	"fmt"
	"iter"
	"slices"

	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/spatial"
)

// DefaultLifetime is used when a SystemConfig leaves Lifetime unset.
const DefaultLifetime = 1.0

// SystemConfig describes a particle system.
type SystemConfig struct {
	RenderType RenderType
	DrawCall   drawcall.ID
	Position   geom.Vec2
	Rotation   float64
	// BoundsSize is the size of the visibility rectangle centred on the
	// emitter. The zero value makes the system always visible.
	BoundsSize geom.Vec2
	// Lifetime is the time to live of new particles in seconds.
	Lifetime float64
	// EmissionRate spawns particles continuously, in particles per second.
	EmissionRate float64
	// FollowEmitter keeps live particles relative to the emitter's current
	// position instead of the position they were spawned at.
	FollowEmitter bool
}

// System is a particle emitter. It borrows particles from its engine's pool
// and tracks the ones it spawned until they are released.
type System struct {
	spatial.Entry

	engine        *Engine
	renderType    RenderType
	drawCall      drawcall.ID
	position      geom.Vec2
	rotation      float64
	boundsSize    geom.Vec2
	lifetime      float64
	emissionRate  float64
	followEmitter bool

	modules   []Module
	active    []ID
	enabled   bool
	visible   bool
	seen      bool
	emitAccum float64
}

// NewSystem creates an enabled system registered with the engine.
func (e *Engine) NewSystem(cfg SystemConfig) (*System, error) {
	if err := cfg.RenderType.Validate(); err != nil {
		return nil, err
	}
	if cfg.Lifetime < 0 {
		return nil, fmt.Errorf("%w: lifetime %v", ErrInvalidConfig, cfg.Lifetime)
	}
	if cfg.EmissionRate < 0 {
		return nil, fmt.Errorf("%w: emission rate %v", ErrInvalidConfig, cfg.EmissionRate)
	}
	if cfg.BoundsSize.X < 0 || cfg.BoundsSize.Y < 0 {
		return nil, fmt.Errorf("%w: bounds size %v", ErrInvalidConfig, cfg.BoundsSize)
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}

	e.join()
	s := &System{
		engine:        e,
		renderType:    cfg.RenderType,
		drawCall:      cfg.DrawCall,
		position:      cfg.Position,
		rotation:      cfg.Rotation,
		boundsSize:    cfg.BoundsSize,
		lifetime:      cfg.Lifetime,
		emissionRate:  cfg.EmissionRate,
		followEmitter: cfg.FollowEmitter,
	}
	s.SetEnabled(true)
	return s, nil
}

// RenderType returns the render type assigned at creation.
func (s *System) RenderType() RenderType { return s.renderType }

// DrawCall returns the draw call new particles are grouped under.
func (s *System) DrawCall() drawcall.ID { return s.drawCall }

// Position returns the emitter position in world units.
func (s *System) Position() geom.Vec2 { return s.position }

// Rotation returns the emitter rotation in radians.
func (s *System) Rotation() float64 { return s.rotation }

// Enabled reports whether the system is registered with its engine.
func (s *System) Enabled() bool { return s.enabled }

// Visible reports whether the emitter bounds intersected a camera view on
// the last visibility pass. Unbounded systems are always visible.
func (s *System) Visible() bool { return s.visible }

// Len returns the number of particles owned by the system.
func (s *System) Len() int { return len(s.active) }

// Bounds returns the visibility rectangle centred on the emitter.
func (s *System) Bounds() geom.Rect {
	return geom.RectAt(s.position, s.boundsSize)
}

// Particles returns a view of the system's particles. Particles that died
// this step stay in the view, disabled, until their release is applied.
func (s *System) Particles() Particles {
	return Particles{pool: s.engine.pool, ids: s.active}
}

// AddModule appends m to the module pipeline.
func (s *System) AddModule(m Module) {
	s.modules = append(s.modules, m)
}

// SetDrawCall changes the draw call used by particles spawned from now on.
func (s *System) SetDrawCall(dc drawcall.ID) {
	s.drawCall = dc
}

// SetPosition moves the emitter.
func (s *System) SetPosition(pos geom.Vec2) {
	s.engine.join()
	s.position = pos
	if s.enabled && s.bounded() && s.engine.partition != nil {
		s.engine.partition.Insert(s)
	}
}

// SetRotation sets the heading used by emitter-forward channels.
func (s *System) SetRotation(rad float64) {
	s.engine.join()
	s.rotation = rad
}

// SetEnabled registers or unregisters the system with its engine. A disabled
// system neither emits nor runs its modules; its live particles play out.
func (s *System) SetEnabled(enabled bool) {
	e := s.engine
	e.join()
	if enabled == s.enabled {
		return
	}
	s.enabled = enabled

	if enabled {
		e.systems = append(e.systems, s)
		if s.bounded() && e.partition != nil {
			e.partition.Insert(s)
		}
		s.visible = s.testVisibility(e.views)
		return
	}

	if i := slices.Index(e.systems, s); i >= 0 {
		e.systems = slices.Delete(e.systems, i, i+1)
	}
	if e.partition != nil {
		e.partition.Remove(s)
	}
}

// Emit spawns up to count particles and returns how many were spawned. It
// does nothing unless the system is enabled and visible. When the pool runs
// dry the remainder is dropped.
func (s *System) Emit(count int) int {
	if count <= 0 || !s.enabled || !s.visible {
		return 0
	}
	e := s.engine
	e.join()

	start := len(s.active)
	spawned := 0
	for spawned < count {
		if _, ok := s.generateParticle(); !ok {
			break
		}
		spawned++
	}

	if dropped := uint64(count - spawned); dropped > 0 {
		e.dropped += dropped
		e.stepDropped += dropped
	}

	if spawned > 0 {
		fresh := Particles{pool: e.pool, ids: s.active[start:]}
		for _, m := range s.modules {
			m.OnParticleActivated(s, fresh)
		}
	}
	return spawned
}

// EmitOne spawns a single particle.
func (s *System) EmitOne() bool {
	return s.Emit(1) == 1
}

// Clear returns every particle of the system to the pool.
func (s *System) Clear() {
	e := s.engine
	e.join()
	for len(s.active) > 0 {
		e.release(&e.pool.particles[s.active[len(s.active)-1]])
	}
}

// Dispose releases the system's particles and unregisters it.
func (s *System) Dispose() {
	s.Clear()
	s.SetEnabled(false)
}

func (s *System) bounded() bool {
	return s.boundsSize.X > 0 || s.boundsSize.Y > 0
}

// testVisibility reports whether any view intersects the system bounds.
func (s *System) testVisibility(views []geom.Rect) bool {
	if !s.bounded() {
		return true
	}
	b := s.Bounds()
	for _, v := range views {
		if v.Intersects(b) {
			return true
		}
	}
	return false
}

// setVisible applies the visibility pass result. A system leaving the view
// drops its particles rather than simulating them off screen.
func (s *System) setVisible(visible bool) {
	if s.visible && !visible {
		s.visible = false
		s.Clear()
		return
	}
	s.visible = visible
}

func (s *System) generateParticle() (*Particle, bool) {
	p, ok := s.engine.acquire(s.renderType, s.drawCall, s)
	if !ok {
		return nil, false
	}
	p.TimeToLive = s.lifetime
	p.Origin = s.position
	p.Position = s.position
	p.Rotation = s.rotation
	p.sysSlot = int32(len(s.active))
	s.active = append(s.active, p.id)
	return p, true
}

// detach unhooks p from every module and swap-removes it from the system.
func (s *System) detach(p *Particle) {
	for _, m := range s.modules {
		if h, ok := m.(ReleaseHook); ok {
			h.OnParticleReleased(s, p)
		}
	}

	last := len(s.active) - 1
	if int(p.sysSlot) != last {
		moved := s.active[last]
		s.active[p.sysSlot] = moved
		s.engine.pool.particles[moved].sysSlot = p.sysSlot
	}
	s.active = s.active[:last]

	p.system = nil
	p.sysSlot = -1
}

// advance runs continuous emission and the module pipeline for one step.
func (s *System) advance(dt float64) {
	if s.emissionRate > 0 && s.visible {
		s.emitAccum += s.emissionRate * dt
		if n := int(s.emitAccum); n > 0 {
			s.emitAccum -= float64(n)
			s.Emit(n)
		}
	}

	if len(s.active) == 0 {
		return
	}
	ps := s.Particles()
	for _, m := range s.modules {
		m.OnUpdate(dt, ps)
	}
}

// Particles is an index based view over particles in the engine arena.
type Particles struct {
	pool *Pool
	ids  []ID
}

func (ps Particles) Len() int {
	return len(ps.ids)
}

// At returns the i-th particle of the view.
func (ps Particles) At(i int) *Particle {
	return &ps.pool.particles[ps.ids[i]]
}

// All iterates the particles of the view with their view index.
func (ps Particles) All() iter.Seq2[int, *Particle] {
	return func(yield func(int, *Particle) bool) {
		for i, id := range ps.ids {
			if !yield(i, &ps.pool.particles[id]) {
				return
			}
		}
	}
}
