package particle

import "github.com/plus3/flare/geom"

// ID is the index of a particle in the engine's arena. IDs are stable until
// the engine is reconfigured.
type ID int32

// NoParticle is an ID that never refers to a particle.
const NoParticle ID = -1

// Particle is one simulated point. Particles are allocated once when the pool
// is filled and are reset and reused for the lifetime of the engine.
type Particle struct {
	// Origin is the world position LocalPosition is relative to.
	Origin        geom.Vec2
	LocalPosition geom.Vec2
	// Position is the world position, Origin + LocalPosition.
	Position geom.Vec2
	// Velocity is the base velocity in units per second.
	Velocity        geom.Vec2
	Rotation        float64
	AngularVelocity float64
	Scale           geom.Vec2
	Color           geom.Color
	// TimeAlive and TimeToLive are in simulated seconds.
	TimeAlive  float64
	TimeToLive float64
	Channels   Channels

	accel         geom.Vec2
	frameVelocity geom.Vec2

	id       ID
	gen      uint32
	enabled  bool
	inPool   bool
	inEngine bool

	system  *System
	sysSlot int32
	group   *Group
	bucket  int32
	slot    int32
}

// ID returns the particle's arena index.
func (p *Particle) ID() ID { return p.id }

// Enabled reports whether the particle is alive and simulated.
func (p *Particle) Enabled() bool { return p.enabled }

// InPool reports whether the particle sits in the free list.
func (p *Particle) InPool() bool { return p.inPool }

// InEngine reports whether the particle is assigned to an update bucket.
func (p *Particle) InEngine() bool { return p.inEngine }

// System returns the emitter that spawned the particle, or nil.
func (p *Particle) System() *System { return p.system }

// Acceleration returns the accumulated acceleration.
func (p *Particle) Acceleration() geom.Vec2 { return p.accel }

// FrameVelocity returns the velocity used by the last integration step,
// including forward velocity contributions.
func (p *Particle) FrameVelocity() geom.Vec2 { return p.frameVelocity }

// Age returns TimeAlive/TimeToLive clamped to [0,1].
func (p *Particle) Age() float64 {
	if p.TimeToLive <= 0 {
		return 1
	}
	return geom.Clamp01(p.TimeAlive / p.TimeToLive)
}

// reset clears simulation state and all channels. Pool bookkeeping is kept.
func (p *Particle) reset() {
	p.Origin = geom.Vec2{}
	p.LocalPosition = geom.Vec2{}
	p.Position = geom.Vec2{}
	p.Velocity = geom.Vec2{}
	p.Rotation = 0
	p.AngularVelocity = 0
	p.Scale = geom.Vec2{X: 1, Y: 1}
	p.Color = geom.White
	p.TimeAlive = 0
	p.TimeToLive = 0
	p.Channels.Disable()
	p.accel = geom.Vec2{}
	p.frameVelocity = geom.Vec2{}
	p.enabled = false
	p.system = nil
	p.sysSlot = -1
	p.group = nil
	p.bucket = -1
	p.slot = -1
}

func (p *Particle) emitterRotation() float64 {
	if p.system == nil {
		return 0
	}
	return p.system.rotation
}

// update advances the particle by dt seconds. It returns false once the
// particle outlives TimeToLive, after disabling it; the caller is
// responsible for queueing the release.
func (p *Particle) update(dt float64) bool {
	p.TimeAlive += dt
	if p.TimeAlive > p.TimeToLive {
		p.enabled = false
		return false
	}

	t := p.Age()
	ch := &p.Channels

	if ch.Velocity != nil {
		p.Velocity = ch.Velocity.At(t)
	}
	vel := p.Velocity

	if ch.Acceleration != nil {
		p.accel = p.accel.Add(ch.Acceleration.At(t).Scale(dt))
	}

	if ch.AngularVelocity != nil {
		p.AngularVelocity = float64(ch.AngularVelocity.At(t))
	}
	p.Rotation += p.AngularVelocity * dt
	if ch.Rotation != nil {
		p.Rotation = float64(ch.Rotation.At(t))
	}

	if ch.ForwardVelocity != nil {
		vel = vel.Add(geom.Heading(p.Rotation).Scale(float64(ch.ForwardVelocity.At(t))))
	}
	if ch.EmitterForwardVelocity != nil {
		vel = vel.Add(geom.Heading(p.emitterRotation()).Scale(float64(ch.EmitterForwardVelocity.At(t))))
	}

	if ch.ForwardAcceleration != nil {
		a := float64(ch.ForwardAcceleration.At(t))
		p.accel = p.accel.Add(geom.Heading(p.Rotation).Scale(a * dt))
	}
	if ch.EmitterForwardAcceleration != nil {
		a := float64(ch.EmitterForwardAcceleration.At(t))
		p.accel = p.accel.Add(geom.Heading(p.emitterRotation()).Scale(a * dt))
	}

	if ch.Scale != nil {
		p.Scale = ch.Scale.At(t)
	}
	if ch.Color != nil {
		p.Color = ch.Color.At(t)
	}

	p.frameVelocity = vel
	if ch.accelerating() {
		p.LocalPosition = p.LocalPosition.Add(p.accel.Add(vel).Scale(dt))
	} else {
		p.LocalPosition = p.LocalPosition.Add(vel.Scale(dt))
	}

	if p.system != nil && p.system.followEmitter {
		p.Origin = p.system.position
	}
	p.Position = p.Origin.Add(p.LocalPosition)
	return true
}
