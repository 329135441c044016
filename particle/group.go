package particle

import (
	"iter"

	"github.com/plus3/flare/drawcall"
)

// Group holds the live particles sharing one render type and draw call,
// split into the engine's update buckets. Drawing a group submits one batch.
type Group struct {
	engine     *Engine
	renderType RenderType
	drawCall   drawcall.ID
	buckets    [][]ID
	size       int
}

// RenderType returns the render type shared by the group's particles.
func (g *Group) RenderType() RenderType { return g.renderType }

// DrawCall returns the draw call shared by the group's particles.
func (g *Group) DrawCall() drawcall.ID { return g.drawCall }

// Len returns the number of particles in the group, including particles
// that died this step and wait for release.
func (g *Group) Len() int { return g.size }

// Particles iterates the enabled particles of the group, bucket by bucket.
func (g *Group) Particles() iter.Seq[*Particle] {
	return func(yield func(*Particle) bool) {
		pool := g.engine.pool
		for _, bucket := range g.buckets {
			for _, id := range bucket {
				p := &pool.particles[id]
				if !p.enabled {
					continue
				}
				if !yield(p) {
					return
				}
			}
		}
	}
}

func (g *Group) add(p *Particle, bucket int) {
	p.group = g
	p.bucket = int32(bucket)
	p.slot = int32(len(g.buckets[bucket]))
	g.buckets[bucket] = append(g.buckets[bucket], p.id)
	g.size++
}

// remove swap-removes p from its bucket.
func (g *Group) remove(p *Particle) {
	bucket := g.buckets[p.bucket]
	last := len(bucket) - 1
	if int(p.slot) != last {
		moved := bucket[last]
		bucket[p.slot] = moved
		g.engine.pool.particles[moved].slot = p.slot
	}
	g.buckets[p.bucket] = bucket[:last]
	g.size--

	p.group = nil
	p.bucket = -1
	p.slot = -1
}

func (g *Group) resetBuckets(n int) {
	g.buckets = make([][]ID, n)
	g.size = 0
}
