// Package ebitengpu submits render batches to an Ebiten image, one
// DrawTriangles call per batch.
package ebitengpu

import (
	"errors"
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/render"
)

var (
	// ErrNoTarget is returned by Submit before SetTarget is called.
	ErrNoTarget = errors.New("ebitengpu: no render target")
	// ErrForeignResource is returned for draw calls whose texture or shader
	// was not created by this package.
	ErrForeignResource = errors.New("ebitengpu: resource is not an ebiten handle")
)

// maxQuads keeps vertex indices within uint16.
const maxQuads = (math.MaxUint16 + 1) / 4

// Texture is an ebiten image registered with the content system.
type Texture struct {
	Image *ebiten.Image
	name  string
	owner string
}

var _ drawcall.Texture = (*Texture)(nil)

// NewTexture wraps img.
func NewTexture(name, owner string, img *ebiten.Image) *Texture {
	return &Texture{Image: img, name: name, owner: owner}
}

func (t *Texture) ResourceName() string  { return t.name }
func (t *Texture) ResourceOwner() string { return t.owner }

func (t *Texture) Size() (int, int) {
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Shader is a compiled Kage shader. The batch texture is bound as image 0.
type Shader struct {
	Shader   *ebiten.Shader
	Uniforms map[string]any
	name     string
	owner    string
}

var _ drawcall.Shader = (*Shader)(nil)

// NewShader compiles Kage source.
func NewShader(name, owner string, src []byte) (*Shader, error) {
	s, err := ebiten.NewShader(src)
	if err != nil {
		return nil, fmt.Errorf("ebitengpu: compile shader %s: %w", name, err)
	}
	return &Shader{Shader: s, name: name, owner: owner}, nil
}

func (s *Shader) ResourceName() string  { return s.name }
func (s *Shader) ResourceOwner() string { return s.owner }

// Submitter draws batches onto a target image. World coordinates are mapped
// to the target through View.
type Submitter struct {
	View ebiten.GeoM

	target   *ebiten.Image
	vertices []ebiten.Vertex
	indices  []uint16

	frames    int
	drawCalls int
	last      int
}

var _ render.Submitter = (*Submitter)(nil)

func NewSubmitter() *Submitter {
	return &Submitter{
		vertices: make([]ebiten.Vertex, 0, 1024),
		indices:  make([]uint16, 0, 1536),
	}
}

// SetTarget selects the image drawn to, usually the screen passed to Draw.
func (s *Submitter) SetTarget(img *ebiten.Image) {
	s.target = img
}

// DrawCalls returns the number of DrawTriangles calls issued in the last
// presented frame.
func (s *Submitter) DrawCalls() int { return s.last }

// Frames returns the number of presented frames.
func (s *Submitter) Frames() int { return s.frames }

func (s *Submitter) Submit(b render.Batch) error {
	if s.target == nil {
		return ErrNoTarget
	}
	tex, ok := b.DrawCall.Texture.(*Texture)
	if !ok {
		return fmt.Errorf("%w: texture %T", ErrForeignResource, b.DrawCall.Texture)
	}
	var shader *Shader
	if b.DrawCall.Shader != nil {
		if shader, ok = b.DrawCall.Shader.(*Shader); !ok {
			return fmt.Errorf("%w: shader %T", ErrForeignResource, b.DrawCall.Shader)
		}
	}

	w, h := tex.Size()
	blend := blendOf(b.Blend())
	for start := 0; start < len(b.Sprites); start += maxQuads {
		end := min(start+maxQuads, len(b.Sprites))
		s.vertices, s.indices = s.vertices[:0], s.indices[:0]
		for _, sp := range b.Sprites[start:end] {
			s.vertices, s.indices = appendQuad(s.vertices, s.indices, sp, w, h, s.View)
		}
		s.draw(tex, shader, blend)
	}
	return nil
}

func (s *Submitter) draw(tex *Texture, shader *Shader, blend ebiten.Blend) {
	s.drawCalls++
	if shader == nil {
		s.target.DrawTriangles(s.vertices, s.indices, tex.Image, &ebiten.DrawTrianglesOptions{
			Blend: blend,
		})
		return
	}
	op := &ebiten.DrawTrianglesShaderOptions{
		Uniforms: shader.Uniforms,
		Blend:    blend,
	}
	op.Images[0] = tex.Image
	s.target.DrawTrianglesShader(s.vertices, s.indices, shader.Shader, op)
}

// Present ends the frame. Ebiten swaps buffers itself once Draw returns.
func (s *Submitter) Present() error {
	s.frames++
	s.last, s.drawCalls = s.drawCalls, 0
	return nil
}

func blendOf(b render.Blend) ebiten.Blend {
	if b == render.BlendAdditive {
		return ebiten.BlendLighter
	}
	return ebiten.BlendSourceOver
}

// appendQuad appends the four corners of sp and the indices of its two
// triangles. Colors are premultiplied by alpha.
func appendQuad(vs []ebiten.Vertex, is []uint16, sp render.Sprite, texW, texH int, view ebiten.GeoM) ([]ebiten.Vertex, []uint16) {
	src := sp.Src
	if src.Width() <= 0 || src.Height() <= 0 {
		src = geom.XYWH(0, 0, float64(texW), float64(texH))
	}

	var geo ebiten.GeoM
	geo.Translate(-0.5, -0.5)
	geo.Scale(sp.Size.X, sp.Size.Y)
	geo.Rotate(sp.Rotation)
	geo.Translate(sp.Position.X, sp.Position.Y)
	geo.Concat(view)

	c := sp.Color
	r, g, b, a := c.R*c.A, c.G*c.A, c.B*c.A, c.A

	base := uint16(len(vs))
	for _, corner := range [4][2]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		x, y := geo.Apply(corner[0], corner[1])
		vs = append(vs, ebiten.Vertex{
			DstX:   float32(x),
			DstY:   float32(y),
			SrcX:   float32(src.Min.X + corner[0]*src.Width()),
			SrcY:   float32(src.Min.Y + corner[1]*src.Height()),
			ColorR: r,
			ColorG: g,
			ColorB: b,
			ColorA: a,
		})
	}
	is = append(is,
		base, base+1, base+2,
		base+1, base+3, base+2,
	)
	return vs, is
}
