package render

import (
	"iter"

	"github.com/plus3/flare/drawcall"
)

type list interface {
	Add(r Renderable) bool
	Len() int
	Reset()
	Batches() iter.Seq2[drawcall.ID, []Renderable]
}

// Container routes renderables into one list per render queue: a RenderList
// for opaque queues and an UnorderedRenderList for blended ones.
type Container struct {
	lists     [queueCount]list
	populated uint16

	schedule  []Queue
	scheduled uint16
	built     bool
	rebuilds  int
}

// NewContainer creates a container whose opaque lists have room for
// drawCalls ids up front.
func NewContainer(drawCalls int) *Container {
	c := &Container{}
	for i := range c.lists {
		if Queue(i).Blend() == BlendOpaque {
			c.lists[i] = NewRenderList(drawCalls)
		} else {
			c.lists[i] = &UnorderedRenderList{}
		}
	}
	return c
}

// Add places r in the list of its queue.
func (c *Container) Add(r Renderable) bool {
	q := QueueOf(r.Phase(), r.Blend())
	if !c.lists[q].Add(r) {
		return false
	}
	c.populated |= 1 << q
	return true
}

// Len returns the number of renderables across all queues.
func (c *Container) Len() int {
	n := 0
	for _, l := range c.lists {
		n += l.Len()
	}
	return n
}

// Sort depth sorts every blended list. It must be called once all
// renderables of the frame have been added.
func (c *Container) Sort() {
	for q, l := range c.lists {
		if c.populated&(1<<q) == 0 {
			continue
		}
		if u, ok := l.(*UnorderedRenderList); ok {
			u.Sort()
		}
	}
}

// Schedule returns the populated queues in submission order. The slice is
// rebuilt only when the set of populated queues differs from the last build.
func (c *Container) Schedule() []Queue {
	if c.built && c.populated == c.scheduled {
		return c.schedule
	}
	c.schedule = c.schedule[:0]
	for q := range queueCount {
		if c.populated&(1<<q) != 0 {
			c.schedule = append(c.schedule, Queue(q))
		}
	}
	c.scheduled = c.populated
	c.built = true
	c.rebuilds++
	return c.schedule
}

// Rebuilds returns how many times the schedule has been rebuilt.
func (c *Container) Rebuilds() int { return c.rebuilds }

// Batches iterates the batches of queue q.
func (c *Container) Batches(q Queue) iter.Seq2[drawcall.ID, []Renderable] {
	return c.lists[q].Batches()
}

// Reset empties every list for the next frame.
func (c *Container) Reset() {
	for q, l := range c.lists {
		if c.populated&(1<<q) != 0 {
			l.Reset()
		}
	}
	c.populated = 0
}
