package render

import (
	"cmp"
	"iter"
	"slices"

	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/spatial"
)

// Sprite is the quad submitted for one renderable.
type Sprite struct {
	// Position is the centre of the quad in world units.
	Position geom.Vec2
	Size     geom.Vec2
	Rotation float64
	Color    geom.Color
	// Src is the texture region in pixels. The zero value selects the whole
	// texture.
	Src geom.Rect
}

// Renderable is an object the renderer can cull and draw.
type Renderable interface {
	spatial.Object
	DrawCall() drawcall.ID
	Blend() Blend
	Phase() Phase
	// Depth orders blended renderables; larger values are farther away and
	// drawn first.
	Depth() float64
	Sprite() Sprite
}

// RenderList buckets opaque renderables by draw call so each bucket can be
// submitted as one batch. Buckets are created as new draw call ids appear and
// are kept, empty, across Reset. The zero value is ready to use.
type RenderList struct {
	buckets   [][]Renderable
	populated []drawcall.ID
	sorted    bool
	size      int
}

// NewRenderList returns a list with room for draw call ids below capacity.
func NewRenderList(capacity int) *RenderList {
	return &RenderList{buckets: make([][]Renderable, capacity)}
}

// Add appends r to the bucket of its draw call. Renderables with the invalid
// draw call are ignored.
func (l *RenderList) Add(r Renderable) bool {
	id := r.DrawCall()
	if id == drawcall.Invalid {
		return false
	}
	if n := int(id) + 1; n > len(l.buckets) {
		l.buckets = append(l.buckets, make([][]Renderable, n-len(l.buckets))...)
	}
	if len(l.buckets[id]) == 0 {
		l.populated = append(l.populated, id)
		l.sorted = false
	}
	l.buckets[id] = append(l.buckets[id], r)
	l.size++
	return true
}

// Len returns the number of renderables in the list.
func (l *RenderList) Len() int { return l.size }

// Bucket returns the renderables sharing draw call id.
func (l *RenderList) Bucket(id drawcall.ID) []Renderable {
	if int(id) >= len(l.buckets) {
		return nil
	}
	return l.buckets[id]
}

// Batches iterates the non-empty buckets in draw call order.
func (l *RenderList) Batches() iter.Seq2[drawcall.ID, []Renderable] {
	if !l.sorted {
		slices.Sort(l.populated)
		l.sorted = true
	}
	return func(yield func(drawcall.ID, []Renderable) bool) {
		for _, id := range l.populated {
			if !yield(id, l.buckets[id]) {
				return
			}
		}
	}
}

// Reset empties every bucket, keeping their capacity.
func (l *RenderList) Reset() {
	for _, id := range l.populated {
		clear(l.buckets[id])
		l.buckets[id] = l.buckets[id][:0]
	}
	l.populated = l.populated[:0]
	l.sorted = true
	l.size = 0
}

// UnorderedRenderList holds blended renderables. Compositing requires them to
// be drawn back to front regardless of draw call, so the list is sorted by
// depth before submission and only consecutive renderables sharing a draw
// call are batched together.
type UnorderedRenderList struct {
	items []Renderable
}

// Add appends r. Renderables with the invalid draw call are ignored.
func (l *UnorderedRenderList) Add(r Renderable) bool {
	if r.DrawCall() == drawcall.Invalid {
		return false
	}
	l.items = append(l.items, r)
	return true
}

func (l *UnorderedRenderList) Len() int { return len(l.items) }

// Sort orders the list back to front. Renderables at equal depth keep their
// insertion order.
func (l *UnorderedRenderList) Sort() {
	slices.SortStableFunc(l.items, func(a, b Renderable) int {
		return cmp.Compare(b.Depth(), a.Depth())
	})
}

// Batches iterates runs of consecutive renderables sharing a draw call.
func (l *UnorderedRenderList) Batches() iter.Seq2[drawcall.ID, []Renderable] {
	return func(yield func(drawcall.ID, []Renderable) bool) {
		for start := 0; start < len(l.items); {
			id := l.items[start].DrawCall()
			end := start + 1
			for end < len(l.items) && l.items[end].DrawCall() == id {
				end++
			}
			if !yield(id, l.items[start:end]) {
				return
			}
			start = end
		}
	}
}

func (l *UnorderedRenderList) Reset() {
	clear(l.items)
	l.items = l.items[:0]
}
