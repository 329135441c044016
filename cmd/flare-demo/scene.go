package main

import (
	"math"

	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/render"
	"github.com/plus3/flare/spatial"
)

// tile is a lit, opaque ground square.
type tile struct {
	spatial.Entry

	bounds   geom.Rect
	drawCall drawcall.ID
	color    geom.Color
}

func (t *tile) Bounds() geom.Rect     { return t.bounds }
func (t *tile) DrawCall() drawcall.ID { return t.drawCall }
func (t *tile) Blend() render.Blend   { return render.BlendOpaque }
func (t *tile) Phase() render.Phase   { return render.PhaseLit }
func (t *tile) Depth() float64        { return 0 }

func (t *tile) Sprite() render.Sprite {
	return render.Sprite{
		Position: t.bounds.Center(),
		Size:     geom.Vec2{X: t.bounds.Width() - 1, Y: t.bounds.Height() - 1},
		Color:    t.color,
	}
}

// lamp is an unlit marker drawn over the lighting pass.
type lamp struct {
	tile
}

func (*lamp) Blend() render.Blend { return render.BlendTransparent }
func (*lamp) Phase() render.Phase { return render.PhaseUnlit }

var tileColors = [...]geom.Color{
	{R: 0.30, G: 0.42, B: 0.30, A: 1},
	{R: 0.34, G: 0.46, B: 0.32, A: 1},
	{R: 0.28, G: 0.38, B: 0.29, A: 1},
}

func spawnGround(p *spatial.Partition, dc drawcall.ID) {
	for y := range WorldHeight / CellSize {
		for x := range WorldWidth / CellSize {
			p.Insert(&tile{
				bounds:   geom.XYWH(float64(x*CellSize), float64(y*CellSize), CellSize, CellSize),
				drawCall: dc,
				color:    tileColors[(x*7+y*3)%len(tileColors)],
			})
		}
	}
}

func spawnLamp(p *spatial.Partition, dc drawcall.ID, at geom.Vec2) {
	p.Insert(&lamp{tile{
		bounds:   geom.RectAt(at, geom.Vec2{X: 12, Y: 12}),
		drawCall: dc,
		color:    geom.Color{R: 1, G: 0.9, B: 0.6, A: 0.9},
	}})
}

// Emitter presets. Each returns the configured system.

func spawnFire(e *particle.Engine, dc drawcall.ID, at geom.Vec2) (*particle.System, error) {
	sys, err := e.NewSystem(particle.SystemConfig{
		RenderType:   particle.RenderAdditive,
		DrawCall:     dc,
		Position:     at,
		Rotation:     -math.Pi / 2,
		BoundsSize:   geom.Vec2{X: 256, Y: 256},
		Lifetime:     1.2,
		EmissionRate: 120,
	})
	if err != nil {
		return nil, err
	}
	sys.AddModule(&particle.VelocityModule{
		Speed:  particle.Range{Min: 40, Max: 90},
		Spread: particle.Range{Min: -0.35, Max: 0.35},
	})
	sys.AddModule(&particle.ScaleModule{Start: geom.Vec2{X: 1.5, Y: 1.5}, End: geom.Vec2{X: 0.3, Y: 0.3}})
	sys.AddModule(&particle.ColorModule{Keys: []particle.Key[geom.Color]{
		{Time: 0, Value: geom.Color{R: 1, G: 0.9, B: 0.4, A: 1}},
		{Time: 0.4, Value: geom.Color{R: 1, G: 0.4, B: 0.1, A: 0.8}},
		{Time: 1, Value: geom.Color{R: 0.3, G: 0.05, B: 0, A: 0}},
	}})
	sys.AddModule(&particle.DragModule{Coefficient: 0.6})
	return sys, nil
}

func spawnFountain(e *particle.Engine, dc drawcall.ID, at geom.Vec2) (*particle.System, error) {
	sys, err := e.NewSystem(particle.SystemConfig{
		RenderType:   particle.RenderAlpha,
		DrawCall:     dc,
		Position:     at,
		Rotation:     -math.Pi / 2,
		BoundsSize:   geom.Vec2{X: 512, Y: 512},
		Lifetime:     2,
		EmissionRate: 200,
	})
	if err != nil {
		return nil, err
	}
	sys.AddModule(&particle.VelocityModule{
		Speed:  particle.Range{Min: 150, Max: 220},
		Spread: particle.Range{Min: -0.25, Max: 0.25},
	})
	sys.AddModule(&particle.GravityModule{Acceleration: geom.Vec2{Y: 200}})
	sys.AddModule(&particle.ColorModule{
		Start: geom.Color{R: 0.5, G: 0.8, B: 1, A: 1},
		End:   geom.Color{R: 0.2, G: 0.4, B: 1, A: 0},
	})
	return sys, nil
}

func spawnSmoke(e *particle.Engine, dc drawcall.ID, at geom.Vec2) (*particle.System, error) {
	sys, err := e.NewSystem(particle.SystemConfig{
		RenderType:    particle.RenderAlphaUnlit,
		DrawCall:      dc,
		Position:      at,
		Rotation:      -math.Pi / 2,
		BoundsSize:    geom.Vec2{X: 384, Y: 384},
		Lifetime:      3,
		EmissionRate:  25,
		FollowEmitter: true,
	})
	if err != nil {
		return nil, err
	}
	sys.AddModule(&particle.VelocityModule{
		Speed:  particle.Range{Min: 10, Max: 30},
		Spread: particle.Range{Min: -0.6, Max: 0.6},
	})
	sys.AddModule(&particle.RotationModule{
		Initial:         particle.Range{Max: 2 * math.Pi},
		AngularVelocity: particle.Range{Min: -1, Max: 1},
	})
	sys.AddModule(&particle.LifetimeModule{TimeToLive: particle.Range{Min: 2, Max: 3.5}})
	sys.AddModule(&particle.ScaleModule{Start: geom.Vec2{X: 1, Y: 1}, End: geom.Vec2{X: 4, Y: 4}})
	sys.AddModule(&particle.ColorModule{
		Start: geom.Color{R: 0.6, G: 0.6, B: 0.6, A: 0.5},
		End:   geom.Color{R: 0.3, G: 0.3, B: 0.3, A: 0},
	})
	return sys, nil
}

// spawnBurst emits a one-off ring of sparks.
func spawnBurst(e *particle.Engine, dc drawcall.ID, at geom.Vec2) (*particle.System, error) {
	sys, err := e.NewSystem(particle.SystemConfig{
		RenderType: particle.RenderAdditive,
		DrawCall:   dc,
		Position:   at,
		BoundsSize: geom.Vec2{X: 256, Y: 256},
		Lifetime:   0.8,
	})
	if err != nil {
		return nil, err
	}
	sys.AddModule(&particle.VelocityModule{
		Speed:  particle.Range{Min: 60, Max: 160},
		Spread: particle.Range{Min: -math.Pi, Max: math.Pi},
	})
	sys.AddModule(&particle.DragModule{Coefficient: 2})
	sys.AddModule(&particle.ColorModule{Start: geom.Color{R: 1, G: 1, B: 0.7, A: 1}, End: geom.Transparent})
	sys.Emit(150)
	return sys, nil
}
