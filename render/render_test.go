package render_test

import (
	"errors"
	"testing"
	"time"

	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/render"
	"github.com/plus3/flare/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type asset struct {
	name, owner string
	w, h        int
}

func (a *asset) ResourceName() string  { return a.name }
func (a *asset) ResourceOwner() string { return a.owner }
func (a *asset) Size() (int, int)      { return a.w, a.h }

type sprite struct {
	spatial.Entry
	name     string
	pos      geom.Vec2
	drawCall drawcall.ID
	blend    render.Blend
	phase    render.Phase
	depth    float64
}

func (s *sprite) Bounds() geom.Rect     { return geom.RectAt(s.pos, geom.Vec2{X: 8, Y: 8}) }
func (s *sprite) DrawCall() drawcall.ID { return s.drawCall }
func (s *sprite) Blend() render.Blend   { return s.blend }
func (s *sprite) Phase() render.Phase   { return s.phase }
func (s *sprite) Depth() float64        { return s.depth }

func (s *sprite) Sprite() render.Sprite {
	return render.Sprite{Position: s.pos, Size: geom.Vec2{X: 8, Y: 8}, Color: geom.White}
}

func (s *sprite) at(x, y float64) *sprite {
	s.pos = geom.Vec2{X: x, Y: y}
	return s
}

func opaque(name string, dc drawcall.ID) *sprite {
	return &sprite{name: name, drawCall: dc}
}

func names(items []render.Renderable) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.(*sprite).name
	}
	return out
}

func TestQueueOrdering(t *testing.T) {
	order := []render.Queue{
		render.QueueOf(render.PhaseLit, render.BlendOpaque),
		render.QueueOf(render.PhaseLit, render.BlendTransparent),
		render.QueueOf(render.PhaseLit, render.BlendAdditive),
		render.QueueOf(render.PhaseUnlit, render.BlendOpaque),
		render.QueueOf(render.PhaseUnlit, render.BlendTransparent),
		render.QueueOf(render.PhaseUnlit, render.BlendAdditive),
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i])
	}
	for i, q := range order {
		assert.Equal(t, i < 3, q.Lit(), q.String())
	}
	assert.Equal(t, render.LightingBoundary, order[3])

	q := render.QueueOf(render.PhaseUnlit, render.BlendTransparent)
	assert.Equal(t, render.PhaseUnlit, q.Phase())
	assert.Equal(t, render.BlendTransparent, q.Blend())
	assert.Equal(t, "unlit/transparent", q.String())

	assert.Panics(t, func() { render.QueueOf(render.Phase(5), render.BlendOpaque) })
}

func TestRenderListBuckets(t *testing.T) {
	var l render.RenderList
	a, b, c := opaque("a", 4), opaque("b", 1), opaque("c", 4)
	assert.True(t, l.Add(a))
	assert.True(t, l.Add(b))
	assert.True(t, l.Add(c))
	assert.False(t, l.Add(opaque("bad", drawcall.Invalid)))
	assert.Equal(t, 3, l.Len())

	var ids []drawcall.ID
	var groups [][]string
	for id, items := range l.Batches() {
		ids = append(ids, id)
		groups = append(groups, names(items))
	}
	assert.Equal(t, []drawcall.ID{1, 4}, ids)
	assert.Equal(t, [][]string{{"b"}, {"a", "c"}}, groups)

	l.Reset()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Bucket(4))
	assert.Nil(t, l.Bucket(100))
	for range l.Batches() {
		t.Fatal("reset list yielded a batch")
	}
}

func TestUnorderedRenderListSortsBackToFront(t *testing.T) {
	var l render.UnorderedRenderList
	mk := func(name string, dc drawcall.ID, depth float64) *sprite {
		return &sprite{name: name, drawCall: dc, blend: render.BlendTransparent, depth: depth}
	}
	l.Add(mk("near", 1, 1))
	l.Add(mk("far", 1, 10))
	l.Add(mk("mid-a", 2, 5))
	l.Add(mk("mid-b", 2, 5))
	l.Add(mk("far-2", 1, 10))
	l.Sort()

	var ids []drawcall.ID
	var groups [][]string
	for id, items := range l.Batches() {
		ids = append(ids, id)
		groups = append(groups, names(items))
	}
	assert.Equal(t, []drawcall.ID{1, 2, 1}, ids)
	assert.Equal(t, [][]string{{"far", "far-2"}, {"mid-a", "mid-b"}, {"near"}}, groups)

	l.Reset()
	assert.Equal(t, 0, l.Len())
}

func TestContainerSchedule(t *testing.T) {
	c := render.NewContainer(4)
	add := func(blend render.Blend, phase render.Phase) {
		require.True(t, c.Add(&sprite{drawCall: 0, blend: blend, phase: phase}))
	}

	add(render.BlendAdditive, render.PhaseUnlit)
	add(render.BlendOpaque, render.PhaseLit)
	add(render.BlendTransparent, render.PhaseLit)
	assert.Equal(t, 3, c.Len())

	want := []render.Queue{
		render.QueueOf(render.PhaseLit, render.BlendOpaque),
		render.QueueOf(render.PhaseLit, render.BlendTransparent),
		render.QueueOf(render.PhaseUnlit, render.BlendAdditive),
	}
	assert.Equal(t, want, c.Schedule())
	assert.Equal(t, 1, c.Rebuilds())
	c.Schedule()
	assert.Equal(t, 1, c.Rebuilds())

	// Same populated set next frame: no rebuild.
	c.Reset()
	assert.Equal(t, 0, c.Len())
	add(render.BlendOpaque, render.PhaseLit)
	add(render.BlendAdditive, render.PhaseUnlit)
	add(render.BlendTransparent, render.PhaseLit)
	assert.Equal(t, want, c.Schedule())
	assert.Equal(t, 1, c.Rebuilds())

	c.Reset()
	add(render.BlendOpaque, render.PhaseUnlit)
	assert.Equal(t, []render.Queue{render.LightingBoundary}, c.Schedule())
	assert.Equal(t, 2, c.Rebuilds())
}

// Two renderables sharing a texture and shader land in one bucket; a third
// with another shader gets its own draw call.
func TestSharedDrawCallBatches(t *testing.T) {
	db := drawcall.NewDatabase(nil)
	tex := &asset{name: "T", owner: "pack", w: 8, h: 8}
	s1 := &asset{name: "S", owner: "pack"}
	s2 := &asset{name: "S2", owner: "pack"}

	shared, err := db.Intern(tex, s1)
	require.NoError(t, err)
	again, err := db.Intern(tex, s1)
	require.NoError(t, err)
	other, err := db.Intern(tex, s2)
	require.NoError(t, err)
	assert.Equal(t, shared, again)
	assert.NotEqual(t, shared, other)
	assert.Equal(t, 2, db.Len())

	c := render.NewContainer(0)
	c.Add(opaque("first", shared))
	c.Add(opaque("second", shared))
	c.Add(opaque("third", other))

	got := map[drawcall.ID][]string{}
	for _, q := range c.Schedule() {
		for id, items := range c.Batches(q) {
			got[id] = names(items)
		}
	}
	assert.Equal(t, map[drawcall.ID][]string{
		shared: {"first", "second"},
		other:  {"third"},
	}, got)
}

type frameFixture struct {
	db        *drawcall.Database
	partition *spatial.Partition
	engine    *particle.Engine
	recorder  *render.Recorder
	renderer  *render.Renderer
	tex       *asset
}

func newFrameFixture(t *testing.T) *frameFixture {
	t.Helper()
	f := &frameFixture{
		db:       drawcall.NewDatabase(nil),
		recorder: &render.Recorder{},
		tex:      &asset{name: "atlas", owner: "test", w: 4, h: 2},
	}

	var err error
	f.partition, err = spatial.New(spatial.Config{TileSize: 64}, nil)
	require.NoError(t, err)

	f.engine, err = particle.NewEngine(particle.Config{
		PoolSize:         64,
		Buckets:          2,
		MaxParallelism:   2,
		UpdateRate:       10 * time.Millisecond,
		MaxStepsPerFrame: 4,
		TimeScale:        1,
	}, nil)
	require.NoError(t, err)
	f.engine.SetPartition(f.partition)

	f.renderer, err = render.NewRenderer(render.Config{
		DrawCalls: f.db,
		Submitter: f.recorder,
		Partition: f.partition,
		Particles: f.engine,
	}, nil)
	require.NoError(t, err)
	f.renderer.AddCamera(render.CameraFunc(func() geom.Rect { return geom.XYWH(0, 0, 100, 100) }))
	return f
}

func (f *frameFixture) intern(t *testing.T, shader string) drawcall.ID {
	t.Helper()
	var sh drawcall.Shader
	if shader != "" {
		sh = &asset{name: shader, owner: "test"}
	}
	id, err := f.db.Intern(f.tex, sh)
	require.NoError(t, err)
	return id
}

func TestRenderFrameOrder(t *testing.T) {
	f := newFrameFixture(t)
	plain := f.intern(t, "")
	glow := f.intern(t, "glow")

	f.partition.Insert(opaque("wall", plain).at(10, 10))
	f.partition.Insert(opaque("floor", plain).at(20, 20))
	f.partition.Insert(opaque("offscreen", plain).at(500, 500))
	f.partition.Insert(&sprite{name: "hud", drawCall: glow, blend: render.BlendTransparent, phase: render.PhaseUnlit, pos: geom.Vec2{X: 50, Y: 50}})

	sparks, err := f.engine.NewSystem(particle.SystemConfig{
		RenderType: particle.RenderAdditive,
		DrawCall:   glow,
		Position:   geom.Vec2{X: 30, Y: 30},
		BoundsSize: geom.Vec2{X: 10, Y: 10},
		Lifetime:   5,
	})
	require.NoError(t, err)

	var events []string
	f.renderer.Lighting = func(views []geom.Rect) error {
		assert.Len(t, views, 1)
		events = append(events, "lighting")
		return nil
	}
	f.renderer.UI = func() error {
		events = append(events, "ui")
		return nil
	}

	// First frame makes the emitter visible.
	require.NoError(t, f.renderer.RenderFrame(10*time.Millisecond))
	require.True(t, sparks.Visible())
	assert.Equal(t, 3, sparks.Emit(3))

	events = events[:0]
	require.NoError(t, f.renderer.RenderFrame(10*time.Millisecond))
	assert.Equal(t, []string{"lighting", "ui"}, events)

	assert.Equal(t, []render.BatchRecord{
		{Queue: render.QueueOf(render.PhaseLit, render.BlendOpaque), DrawCall: plain, Sprites: 2},
		{Queue: render.QueueOf(render.PhaseUnlit, render.BlendTransparent), DrawCall: glow, Sprites: 1},
		{Queue: render.QueueOf(render.PhaseUnlit, render.BlendAdditive), DrawCall: glow, Sprites: 3},
	}, f.recorder.Last)

	stats := f.renderer.Stats()
	assert.EqualValues(t, 2, stats.Frames)
	assert.Equal(t, 3, stats.Visible)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 6, stats.Sprites)
	assert.Equal(t, 3, stats.Simulation.Live)
	require.Len(t, stats.Stages, 8)
	assert.Equal(t, "cull", stats.Stages[0].Name)
	assert.Equal(t, "present", stats.Stages[7].Name)
	assert.Equal(t, 2, f.recorder.Frames)
}

func TestRenderFrameSkipsPrunedDrawCalls(t *testing.T) {
	f := newFrameFixture(t)
	id := f.intern(t, "")
	f.partition.Insert(opaque("wall", id).at(10, 10))

	assert.Equal(t, []drawcall.ID{id}, f.db.PruneAsset(f.tex))
	require.NoError(t, f.renderer.RenderFrame(10*time.Millisecond))
	assert.Empty(t, f.recorder.Last)
}

func TestCullKeepsSpritesStraddlingTileEdges(t *testing.T) {
	cases := []struct {
		name     string
		tileSize float64
		x, y     float64
		want     int
	}{
		{"centre left of view", 192, -2, 50, 1},
		{"centre above view", 192, 50, -2, 1},
		{"centre in diagonal tile", 64, -3, -3, 1},
		{"touching edge only", 192, -4, 50, 0},
		{"negative and distant", 64, -40, -40, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := drawcall.NewDatabase(nil)
			id, err := db.Intern(&asset{name: "atlas", owner: "test", w: 4, h: 2}, nil)
			require.NoError(t, err)

			p, err := spatial.New(spatial.Config{TileSize: tc.tileSize}, nil)
			require.NoError(t, err)
			p.Insert(opaque("edge", id).at(tc.x, tc.y))

			rec := &render.Recorder{}
			r, err := render.NewRenderer(render.Config{DrawCalls: db, Submitter: rec, Partition: p}, nil)
			require.NoError(t, err)
			r.AddCamera(render.CameraFunc(func() geom.Rect { return geom.XYWH(0, 0, 100, 100) }))

			require.NoError(t, r.RenderFrame(10*time.Millisecond))
			assert.Equal(t, tc.want, r.Stats().Visible)
			if tc.want == 0 {
				assert.Empty(t, rec.Last)
				return
			}
			assert.Equal(t, []render.BatchRecord{
				{Queue: render.QueueOf(render.PhaseLit, render.BlendOpaque), DrawCall: id, Sprites: 1},
			}, rec.Last)
		})
	}
}

func TestParticleSpriteSize(t *testing.T) {
	f := newFrameFixture(t)
	id := f.intern(t, "")
	sys, err := f.engine.NewSystem(particle.SystemConfig{DrawCall: id, Lifetime: 5})
	require.NoError(t, err)
	sys.AddModule(&particle.ScaleModule{Start: geom.Vec2{X: 2, Y: 3}, End: geom.Vec2{X: 2, Y: 3}})
	sys.Emit(1)

	sub := &capture{}
	r, err := render.NewRenderer(render.Config{DrawCalls: f.db, Submitter: sub, Particles: f.engine}, nil)
	require.NoError(t, err)
	require.NoError(t, r.RenderFrame(10*time.Millisecond))

	require.Len(t, sub.sprites, 1)
	assert.Equal(t, geom.Vec2{X: 8, Y: 6}, sub.sprites[0].Size)
	assert.Equal(t, render.QueueOf(render.PhaseLit, render.BlendTransparent), sub.queue)
}

type capture struct {
	queue   render.Queue
	sprites []render.Sprite
	fail    error
}

func (c *capture) Submit(b render.Batch) error {
	c.queue = b.Queue
	c.sprites = append(c.sprites[:0], b.Sprites...)
	return c.fail
}

func (c *capture) Present() error { return nil }

func TestRenderFramePropagatesSubmitErrors(t *testing.T) {
	f := newFrameFixture(t)
	id := f.intern(t, "")
	f.partition.Insert(opaque("wall", id).at(10, 10))

	boom := errors.New("device lost")
	r, err := render.NewRenderer(render.Config{
		DrawCalls: f.db,
		Submitter: &capture{fail: boom},
		Partition: f.partition,
	}, nil)
	require.NoError(t, err)
	r.AddCamera(render.CameraFunc(func() geom.Rect { return geom.XYWH(0, 0, 100, 100) }))

	assert.ErrorIs(t, r.RenderFrame(time.Millisecond), boom)
}

func TestNewRendererRequiresCollaborators(t *testing.T) {
	_, err := render.NewRenderer(render.Config{Submitter: &render.Recorder{}}, nil)
	assert.Error(t, err)
	_, err = render.NewRenderer(render.Config{DrawCalls: drawcall.NewDatabase(nil)}, nil)
	assert.Error(t, err)
}

func TestParticleQueues(t *testing.T) {
	assert.True(t, render.ParticleQueue(particle.RenderAlpha).Lit())
	assert.False(t, render.ParticleQueue(particle.RenderAlphaUnlit).Lit())
	assert.Equal(t, render.BlendAdditive, render.ParticleQueue(particle.RenderAdditive).Blend())
}
