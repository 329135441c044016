package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/render"
	"github.com/plus3/flare/spatial"
)

// texture is a GPU-less texture handle for headless runs.
type texture struct {
	name   string
	width  int
	height int
}

func (t *texture) ResourceName() string  { return t.name }
func (t *texture) ResourceOwner() string { return "flare-stress" }
func (t *texture) Size() (int, int)      { return t.width, t.height }

// sprite is a static world object.
type sprite struct {
	spatial.Entry

	bounds   geom.Rect
	drawCall drawcall.ID
	blend    render.Blend
	phase    render.Phase
	depth    float64
}

func (s *sprite) Bounds() geom.Rect     { return s.bounds }
func (s *sprite) DrawCall() drawcall.ID { return s.drawCall }
func (s *sprite) Blend() render.Blend   { return s.blend }
func (s *sprite) Phase() render.Phase   { return s.phase }
func (s *sprite) Depth() float64        { return s.depth }
func (s *sprite) Sprite() render.Sprite {
	return render.Sprite{
		Position: s.bounds.Center(),
		Size:     geom.Vec2{X: s.bounds.Width(), Y: s.bounds.Height()},
		Color:    geom.White,
	}
}

// Scene is everything a stress run simulates and draws.
type Scene struct {
	DrawCalls *drawcall.Database
	Partition *spatial.Partition
	Particles *particle.Engine

	drawCalls []drawcall.ID
	sprites   []*sprite
	systems   []*particle.System
}

// Populate interns the scenario's textures, scatters its sprites and creates
// its emitters.
func (s *Scene) Populate(sc *Scenario, rng *rand.Rand) error {
	for i := range sc.Textures {
		id, err := s.DrawCalls.Intern(&texture{name: fmt.Sprintf("tex%d", i), width: 16, height: 16}, nil)
		if err != nil {
			return err
		}
		s.drawCalls = append(s.drawCalls, id)
	}

	world := sc.world()
	randomPoint := func() geom.Vec2 {
		return geom.Vec2{
			X: world.Min.X + rng.Float64()*world.Width(),
			Y: world.Min.Y + rng.Float64()*world.Height(),
		}
	}
	pickDrawCall := func() drawcall.ID {
		return s.drawCalls[rng.IntN(len(s.drawCalls))]
	}

	blends := [...]render.Blend{render.BlendOpaque, render.BlendOpaque, render.BlendTransparent}
	for range sc.Sprites {
		sp := &sprite{
			bounds:   geom.RectAt(randomPoint(), geom.Vec2{X: 32, Y: 32}),
			drawCall: pickDrawCall(),
			blend:    blends[rng.IntN(len(blends))],
			phase:    render.Phase(rng.IntN(2)),
			depth:    rng.Float64(),
		}
		s.Partition.Insert(sp)
		s.sprites = append(s.sprites, sp)
	}

	for i, spec := range sc.Emitters {
		rt, err := particle.ParseRenderType(spec.RenderType)
		if err != nil {
			return fmt.Errorf("emitter %d: %w", i, err)
		}
		for range spec.Count {
			sys, err := s.Particles.NewSystem(particle.SystemConfig{
				RenderType:   rt,
				DrawCall:     pickDrawCall(),
				Position:     randomPoint(),
				Rotation:     rng.Float64() * 6.283185307179586,
				BoundsSize:   geom.Vec2{X: spec.Bounds, Y: spec.Bounds},
				Lifetime:     spec.Lifetime,
				EmissionRate: spec.EmissionRate,
			})
			if err != nil {
				return fmt.Errorf("emitter %d: %w", i, err)
			}
			sys.AddModule(&particle.VelocityModule{
				Speed:  particle.Range{Min: spec.Speed[0], Max: spec.Speed[1]},
				Spread: particle.Range{Min: -spec.Spread / 2, Max: spec.Spread / 2},
			})
			if spec.Gravity != [2]float64{} {
				sys.AddModule(&particle.GravityModule{Acceleration: geom.Vec2{X: spec.Gravity[0], Y: spec.Gravity[1]}})
			}
			if spec.Drag > 0 {
				sys.AddModule(&particle.DragModule{Coefficient: spec.Drag})
			}
			if spec.Fade {
				sys.AddModule(&particle.ColorModule{Start: geom.White, End: geom.Transparent})
			}
			s.systems = append(s.systems, sys)
		}
	}
	return nil
}
