package particle

import (
	"slices"
	"sort"

	"github.com/plus3/flare/geom"
)

// Interpolator is satisfied by the value types a channel can animate:
// geom.Vec2, geom.Scalar and geom.Color.
type Interpolator[T any] interface {
	Lerp(to T, t float64) T
}

// Channel is the transition driving one particle attribute over its life.
// The set of variants is closed: Constant, Lerp and *Curve. A nil Channel is
// the None state and leaves the attribute untouched.
type Channel[T Interpolator[T]] interface {
	// At evaluates the channel at the normalized age t in [0,1].
	At(t float64) T
	channel()
}

// Constant holds the attribute at Value.
type Constant[T Interpolator[T]] struct {
	Value T
}

func (c Constant[T]) At(float64) T { return c.Value }
func (Constant[T]) channel()       {}

// Lerp interpolates linearly from Start to End over the particle's life.
type Lerp[T Interpolator[T]] struct {
	Start, End T
}

func (l Lerp[T]) At(t float64) T { return l.Start.Lerp(l.End, t) }
func (Lerp[T]) channel()         {}

// Key is a curve keyframe at normalized time Time.
type Key[T any] struct {
	Time  float64
	Value T
}

// Curve evaluates a piecewise linear keyframed curve.
type Curve[T Interpolator[T]] struct {
	keys []Key[T]
}

func (*Curve[T]) channel() {}

// At returns the value at t, holding the first and last keys beyond the ends.
func (c *Curve[T]) At(t float64) T {
	n := len(c.keys)
	if n == 0 {
		var zero T
		return zero
	}
	if t <= c.keys[0].Time {
		return c.keys[0].Value
	}
	if t >= c.keys[n-1].Time {
		return c.keys[n-1].Value
	}

	i := sort.Search(n, func(i int) bool { return c.keys[i].Time > t })
	a, b := c.keys[i-1], c.keys[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	return a.Value.Lerp(b.Value, (t-a.Time)/span)
}

// Keys returns the curve keyframes sorted by time.
func (c *Curve[T]) Keys() []Key[T] {
	return c.keys
}

// NewConstant returns a channel fixed at v.
func NewConstant[T Interpolator[T]](v T) Channel[T] {
	return Constant[T]{Value: v}
}

// NewLerp returns a channel interpolating from start to end.
func NewLerp[T Interpolator[T]](start, end T) Channel[T] {
	return Lerp[T]{Start: start, End: end}
}

// NewCurve returns a channel following the keyframes, which are copied and
// sorted by time.
func NewCurve[T Interpolator[T]](keys ...Key[T]) *Curve[T] {
	sorted := slices.Clone(keys)
	slices.SortStableFunc(sorted, func(a, b Key[T]) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return &Curve[T]{keys: sorted}
}

// Channels holds every attribute transition of a particle.
type Channels struct {
	Velocity                   Channel[geom.Vec2]
	Acceleration               Channel[geom.Vec2]
	ForwardVelocity            Channel[geom.Scalar]
	EmitterForwardVelocity     Channel[geom.Scalar]
	ForwardAcceleration        Channel[geom.Scalar]
	EmitterForwardAcceleration Channel[geom.Scalar]
	AngularVelocity            Channel[geom.Scalar]
	Rotation                   Channel[geom.Scalar]
	Scale                      Channel[geom.Vec2]
	Color                      Channel[geom.Color]
}

// Disable sets every channel back to None.
func (c *Channels) Disable() {
	*c = Channels{}
}

// Active returns the number of channels not in the None state.
func (c *Channels) Active() int {
	n := 0
	for _, set := range []bool{
		c.Velocity != nil,
		c.Acceleration != nil,
		c.ForwardVelocity != nil,
		c.EmitterForwardVelocity != nil,
		c.ForwardAcceleration != nil,
		c.EmitterForwardAcceleration != nil,
		c.AngularVelocity != nil,
		c.Rotation != nil,
		c.Scale != nil,
		c.Color != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (c *Channels) accelerating() bool {
	return c.Acceleration != nil || c.ForwardAcceleration != nil || c.EmitterForwardAcceleration != nil
}
