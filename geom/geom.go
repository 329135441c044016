// Package geom holds the small value types shared by the particle, spatial and
// render packages.
package geom

import "github.com/go-gl/mathgl/mgl64"

// Vec2 is a 2D vector in world units. Arithmetic goes through mgl64.
type Vec2 struct {
	X, Y float64
}

// V2 converts an mgl64 vector.
func V2(m mgl64.Vec2) Vec2 {
	return Vec2{m[0], m[1]}
}

// Mgl returns v as an mgl64 vector.
func (v Vec2) Mgl() mgl64.Vec2 {
	return mgl64.Vec2{v.X, v.Y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return V2(v.Mgl().Add(o.Mgl()))
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return V2(v.Mgl().Sub(o.Mgl()))
}

func (v Vec2) Scale(s float64) Vec2 {
	return V2(v.Mgl().Mul(s))
}

func (v Vec2) Len() float64 {
	return v.Mgl().Len()
}

// Lerp interpolates from v to o by t.
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return v.Add(o.Sub(v).Scale(t))
}

// Rotate rotates v by rad radians around the origin.
func (v Vec2) Rotate(rad float64) Vec2 {
	return V2(mgl64.Rotate2D(rad).Mul2x1(v.Mgl()))
}

// Heading returns the unit vector pointing at rad radians.
func Heading(rad float64) Vec2 {
	return V2(mgl64.Rotate2D(rad).Col(0))
}

// Scalar is a float64 that satisfies the interpolation constraint used by
// particle channels.
type Scalar float64

func (s Scalar) Lerp(o Scalar, t float64) Scalar {
	return s + (o-s)*Scalar(t)
}

// Color is a straight (non-premultiplied) RGBA color with components in [0,1].
type Color struct {
	R, G, B, A float32
}

var (
	White       = Color{1, 1, 1, 1}
	Transparent = Color{}
)

func (c Color) Lerp(o Color, t float64) Color {
	f := float32(t)
	return Color{
		R: c.R + (o.R-c.R)*f,
		G: c.G + (o.G-c.G)*f,
		B: c.B + (o.B-c.B)*f,
		A: c.A + (o.A-c.A)*f,
	}
}

// Rect is an axis-aligned rectangle. Min is inclusive, Max is exclusive.
type Rect struct {
	Min, Max Vec2
}

// RectAt returns the rectangle of the given size centred on c.
func RectAt(c Vec2, size Vec2) Rect {
	half := size.Scale(0.5)
	return Rect{Min: c.Sub(half), Max: c.Add(half)}
}

// XYWH builds a rectangle from its top-left corner and size.
func XYWH(x, y, w, h float64) Rect {
	return Rect{Min: Vec2{x, y}, Max: Vec2{x + w, y + h}}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

func (r Rect) Center() Vec2 {
	return Vec2{(r.Min.X + r.Max.X) * 0.5, (r.Min.Y + r.Max.Y) * 0.5}
}

// Intersects reports whether r and o overlap. Rectangles that only share an
// edge do not intersect.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X < o.Max.X && r.Max.X > o.Min.X && r.Min.Y < o.Max.Y && r.Max.Y > o.Min.Y
}

func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Clamp01 limits t to [0,1].
func Clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
