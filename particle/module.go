package particle

import (
	"math"
	"math/rand/v2"

	"github.com/plus3/flare/geom"
)

// Module customises the particles of a system. Modules run on the goroutine
// driving the engine, never concurrently with the bucket update.
type Module interface {
	// OnParticleActivated is called once per Emit with the particles just
	// spawned.
	OnParticleActivated(sys *System, ps Particles)
	// OnUpdate is called once per simulation step, before particles are
	// integrated, with every particle of the system.
	OnUpdate(dt float64, ps Particles)
}

// ReleaseHook is implemented by modules that track per-particle state.
type ReleaseHook interface {
	OnParticleReleased(sys *System, p *Particle)
}

// Range is a closed interval sampled uniformly.
type Range struct {
	Min, Max float64
}

// Fixed returns a range that always samples v.
func Fixed(v float64) Range {
	return Range{Min: v, Max: v}
}

// Sample returns a value in [Min, Max]. A nil r uses the global source.
func (r Range) Sample(rng *rand.Rand) float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	f := 0.0
	if rng != nil {
		f = rng.Float64()
	} else {
		f = rand.Float64()
	}
	return r.Min + f*(r.Max-r.Min)
}

// VelocityModule launches particles along the emitter heading, deviated by
// Spread radians.
type VelocityModule struct {
	Speed  Range
	Spread Range
	Rand   *rand.Rand
}

func (m *VelocityModule) OnParticleActivated(sys *System, ps Particles) {
	for _, p := range ps.All() {
		dir := geom.Heading(sys.rotation + m.Spread.Sample(m.Rand))
		p.Velocity = dir.Scale(m.Speed.Sample(m.Rand))
	}
}

func (*VelocityModule) OnUpdate(float64, Particles) {}

// ScaleModule interpolates particle scale over the particle's life.
type ScaleModule struct {
	Start, End geom.Vec2
}

func (m *ScaleModule) OnParticleActivated(_ *System, ps Particles) {
	ch := NewLerp(m.Start, m.End)
	for _, p := range ps.All() {
		p.Scale = m.Start
		p.Channels.Scale = ch
	}
}

func (*ScaleModule) OnUpdate(float64, Particles) {}

// ColorModule drives particle color. Keys take precedence over Start and End.
type ColorModule struct {
	Start, End geom.Color
	Keys       []Key[geom.Color]

	curve *Curve[geom.Color]
}

func (m *ColorModule) channel() Channel[geom.Color] {
	if len(m.Keys) == 0 {
		return NewLerp(m.Start, m.End)
	}
	if m.curve == nil || len(m.curve.keys) != len(m.Keys) {
		m.curve = NewCurve(m.Keys...)
	}
	return m.curve
}

func (m *ColorModule) OnParticleActivated(_ *System, ps Particles) {
	ch := m.channel()
	for _, p := range ps.All() {
		p.Color = ch.At(0)
		p.Channels.Color = ch
	}
}

func (*ColorModule) OnUpdate(float64, Particles) {}

// RotationModule randomises the initial rotation and spin of particles.
// Initial is an offset from the emitter rotation.
type RotationModule struct {
	Initial         Range
	AngularVelocity Range
	Rand            *rand.Rand
}

func (m *RotationModule) OnParticleActivated(sys *System, ps Particles) {
	for _, p := range ps.All() {
		p.Rotation = sys.rotation + m.Initial.Sample(m.Rand)
		p.AngularVelocity = m.AngularVelocity.Sample(m.Rand)
	}
}

func (*RotationModule) OnUpdate(float64, Particles) {}

// LifetimeModule overrides the system lifetime with a sampled one.
type LifetimeModule struct {
	TimeToLive Range
	Rand       *rand.Rand
}

func (m *LifetimeModule) OnParticleActivated(_ *System, ps Particles) {
	for _, p := range ps.All() {
		p.TimeToLive = m.TimeToLive.Sample(m.Rand)
	}
}

func (*LifetimeModule) OnUpdate(float64, Particles) {}

// GravityModule applies a constant acceleration.
type GravityModule struct {
	Acceleration geom.Vec2
}

func (m *GravityModule) OnParticleActivated(_ *System, ps Particles) {
	ch := NewConstant(m.Acceleration)
	for _, p := range ps.All() {
		p.Channels.Acceleration = ch
	}
}

func (*GravityModule) OnUpdate(float64, Particles) {}

// DragModule decays base velocity exponentially. Particles with a Velocity
// channel are unaffected because the channel overwrites the base velocity.
type DragModule struct {
	Coefficient float64
}

func (*DragModule) OnParticleActivated(*System, Particles) {}

func (m *DragModule) OnUpdate(dt float64, ps Particles) {
	if m.Coefficient <= 0 {
		return
	}
	k := math.Exp(-m.Coefficient * dt)
	for _, p := range ps.All() {
		if p.enabled {
			p.Velocity = p.Velocity.Scale(k)
		}
	}
}
