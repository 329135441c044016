// Package render turns visible objects and particle groups into an ordered
// sequence of batches, one per draw call and render queue, and hands them to
// a Submitter.
package render

import "fmt"

// Blend is the compositing mode of a renderable.
type Blend uint8

const (
	BlendOpaque Blend = iota
	BlendTransparent
	BlendAdditive

	blendCount
)

func (b Blend) String() string {
	switch b {
	case BlendOpaque:
		return "opaque"
	case BlendTransparent:
		return "transparent"
	case BlendAdditive:
		return "additive"
	}
	return fmt.Sprintf("Blend(%d)", uint8(b))
}

// Phase says whether a renderable is drawn before the lighting pass, and so
// receives light, or after it.
type Phase uint8

const (
	PhaseLit Phase = iota
	PhaseUnlit

	phaseCount
)

func (p Phase) String() string {
	switch p {
	case PhaseLit:
		return "lit"
	case PhaseUnlit:
		return "unlit"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Queue orders submission. Queues are drawn in ascending order: every lit
// queue, then the lighting pass, then every unlit queue. Within a phase
// opaque precedes transparent, which precedes additive.
type Queue uint8

const queueCount = int(phaseCount) * int(blendCount)

// LightingBoundary is the first queue drawn after the lighting pass.
var LightingBoundary = QueueOf(PhaseUnlit, BlendOpaque)

// QueueOf returns the queue for a phase and blend mode.
func QueueOf(p Phase, b Blend) Queue {
	if p >= phaseCount || b >= blendCount {
		panic(fmt.Sprintf("render: invalid queue %s/%s", p, b))
	}
	return Queue(int(p)*int(blendCount) + int(b))
}

func (q Queue) Phase() Phase { return Phase(int(q) / int(blendCount)) }
func (q Queue) Blend() Blend { return Blend(int(q) % int(blendCount)) }

// Lit reports whether the queue is drawn before the lighting pass.
func (q Queue) Lit() bool { return q < LightingBoundary }

func (q Queue) String() string {
	return q.Phase().String() + "/" + q.Blend().String()
}
