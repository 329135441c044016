package particle_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/plus3/flare/drawcall"
	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const step = 10 * time.Millisecond

func testConfig(pool, buckets int) particle.Config {
	return particle.Config{
		PoolSize:         pool,
		Buckets:          buckets,
		MaxParallelism:   4,
		UpdateRate:       step,
		MaxStepsPerFrame: 1000,
		TimeScale:        1,
	}
}

func newEngine(t testing.TB, cfg particle.Config) *particle.Engine {
	t.Helper()
	e, err := particle.NewEngine(cfg, nil)
	require.NoError(t, err)
	return e
}

func newSystem(t testing.TB, e *particle.Engine, cfg particle.SystemConfig) *particle.System {
	t.Helper()
	sys, err := e.NewSystem(cfg)
	require.NoError(t, err)
	return sys
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, particle.DefaultConfig().Validate())

	for name, mutate := range map[string]func(*particle.Config){
		"pool":        func(c *particle.Config) { c.PoolSize = 0 },
		"buckets":     func(c *particle.Config) { c.Buckets = -1 },
		"parallelism": func(c *particle.Config) { c.MaxParallelism = 0 },
		"rate":        func(c *particle.Config) { c.UpdateRate = 0 },
		"steps":       func(c *particle.Config) { c.MaxStepsPerFrame = 0 },
		"scale":       func(c *particle.Config) { c.TimeScale = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := particle.DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), particle.ErrInvalidConfig)

			_, err := particle.NewEngine(cfg, nil)
			assert.ErrorIs(t, err, particle.ErrInvalidConfig)
		})
	}
}

func TestAcquireRelease(t *testing.T) {
	e := newEngine(t, testConfig(4, 2))

	p, ok := e.Acquire(particle.RenderAlpha, 3)
	require.True(t, ok)
	assert.True(t, p.Enabled())
	assert.True(t, p.InEngine())
	assert.False(t, p.InPool())
	assert.Nil(t, p.System())
	require.NoError(t, e.Validate())

	stats := e.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 3, stats.Pooled)
	assert.Equal(t, 1, stats.Groups)

	assert.True(t, e.Release(p))
	assert.True(t, p.InPool())
	assert.False(t, p.InEngine())
	assert.False(t, p.Enabled())
	require.NoError(t, e.Validate())

	assert.False(t, e.Release(p), "second release is a no-op")
	assert.False(t, e.Release(nil))
	require.NoError(t, e.Validate())
	assert.Equal(t, 4, e.Stats().Pooled)
}

func TestAcquireUnknownRenderTypePanics(t *testing.T) {
	e := newEngine(t, testConfig(4, 1))
	assert.Panics(t, func() {
		e.Acquire(particle.RenderType(200), 0)
	})
}

func TestAcquireExhausted(t *testing.T) {
	e := newEngine(t, testConfig(2, 1))

	for range 2 {
		_, ok := e.Acquire(particle.RenderAdditive, 0)
		require.True(t, ok)
	}
	p, ok := e.Acquire(particle.RenderAdditive, 0)
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Equal(t, uint64(1), e.Stats().Dropped)
	require.NoError(t, e.Validate())
}

func TestMembershipUnderChurn(t *testing.T) {
	e := newEngine(t, testConfig(64, 3))
	rng := rand.New(rand.NewPCG(1, 2))

	var live []*particle.Particle
	for i := 0; i < 2000; i++ {
		if len(live) > 0 && rng.IntN(3) == 0 {
			j := rng.IntN(len(live))
			require.True(t, e.Release(live[j]))
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		} else {
			rt := particle.RenderTypes[rng.IntN(len(particle.RenderTypes))]
			if p, ok := e.Acquire(rt, drawcall.ID(rng.IntN(4))); ok {
				live = append(live, p)
			}
		}
		if i%50 == 0 {
			require.NoError(t, e.Validate())
		}
	}
	require.NoError(t, e.Validate())
	assert.Equal(t, len(live), e.Stats().Live)
}

func TestPoolLimitDropsEmission(t *testing.T) {
	e := newEngine(t, testConfig(10, 2))
	sys := newSystem(t, e, particle.SystemConfig{RenderType: particle.RenderAlpha, Lifetime: 5})

	assert.Equal(t, 10, sys.Emit(15))
	assert.Equal(t, 10, sys.Len())

	stats := e.Stats()
	assert.Equal(t, 10, stats.Live)
	assert.Equal(t, 0, stats.Pooled)
	assert.Equal(t, uint64(5), stats.Dropped)
	require.NoError(t, e.Validate())

	assert.False(t, sys.EmitOne())
	assert.Equal(t, uint64(6), e.Stats().Dropped)
}

func TestPoolLimitLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("large pool")
	}
	cfg := testConfig(100000, 8)
	e := newEngine(t, cfg)
	sys := newSystem(t, e, particle.SystemConfig{RenderType: particle.RenderAdditive, Lifetime: 10})

	assert.Equal(t, 100000, sys.Emit(100001))
	assert.Equal(t, uint64(1), e.Stats().Dropped)

	e.Tick(step)
	stats := e.Stats()
	assert.Equal(t, 100000, stats.Live)
	for _, n := range stats.Buckets {
		assert.Equal(t, 12500, n)
	}
	require.NoError(t, e.Validate())
}

func TestLerpVelocityOverLifetime(t *testing.T) {
	e := newEngine(t, testConfig(8, 1))
	sys := newSystem(t, e, particle.SystemConfig{RenderType: particle.RenderAlpha, Lifetime: 2})
	require.Equal(t, 1, sys.Emit(1))

	p := sys.Particles().At(0)
	p.Channels.Velocity = particle.NewLerp(geom.Vec2{}, geom.Vec2{X: 100})

	assert.Equal(t, 100, e.Tick(time.Second))
	assert.InDelta(t, 1.0, p.TimeAlive, 1e-9)
	assert.InDelta(t, 50.0, p.Velocity.X, 1e-6)
	// Each step integrates the velocity evaluated at the end of the step.
	assert.InDelta(t, 25.25, p.Position.X, 1e-6)
	assert.InDelta(t, 0.5, p.Age(), 1e-9)

	e.Tick(time.Second)
	assert.True(t, p.InEngine())
	e.Tick(time.Second)
	assert.Equal(t, 0, e.Stats().Live)
	assert.Equal(t, 0, sys.Len())
	require.NoError(t, e.Validate())
}

func TestDeathIsReleasedNextStep(t *testing.T) {
	e := newEngine(t, testConfig(4, 2))
	sys := newSystem(t, e, particle.SystemConfig{RenderType: particle.RenderAlpha, Lifetime: 0.015})
	sys.Emit(1)
	p := sys.Particles().At(0)

	e.Tick(step)
	assert.True(t, p.Enabled())

	e.Tick(step)
	assert.False(t, p.Enabled(), "outlived its lifetime")
	assert.True(t, p.InEngine(), "release is deferred")
	assert.Equal(t, 1, e.Stats().PendingReleases)
	require.NoError(t, e.Validate())

	e.Tick(step)
	assert.True(t, p.InPool())
	assert.Equal(t, 0, e.Stats().PendingReleases)
	require.NoError(t, e.Validate())
}

func TestFixedTimestep(t *testing.T) {
	cfg := testConfig(4, 1)
	cfg.MaxStepsPerFrame = 4
	e := newEngine(t, cfg)

	assert.Equal(t, 1, e.Tick(15*time.Millisecond))
	assert.Equal(t, 1, e.Tick(5*time.Millisecond))
	assert.Equal(t, 0, e.Tick(5*time.Millisecond))
	assert.Equal(t, 4, e.Tick(100*time.Millisecond))
	assert.Equal(t, 0, e.Tick(5*time.Millisecond), "backlog was dropped")
	assert.Equal(t, uint64(6), e.Stats().Steps)
}

func TestTimeScale(t *testing.T) {
	cfg := testConfig(4, 1)
	cfg.TimeScale = 0.5
	e := newEngine(t, cfg)
	sys := newSystem(t, e, particle.SystemConfig{RenderType: particle.RenderAlpha, Lifetime: 10})
	sys.Emit(1)

	e.Tick(100 * time.Millisecond)
	assert.InDelta(t, 0.05, sys.Particles().At(0).TimeAlive, 1e-9)
}

func TestParallelMatchesSerial(t *testing.T) {
	run := func(buckets int) []geom.Vec2 {
		cfg := testConfig(512, buckets)
		e := newEngine(t, cfg)
		sys := newSystem(t, e, particle.SystemConfig{RenderType: particle.RenderAdditive, Lifetime: 30})
		require.Equal(t, 512, sys.Emit(512))

		ps := sys.Particles()
		for i, p := range ps.All() {
			p.Velocity = geom.Vec2{X: float64(i), Y: -float64(i % 7)}
			p.Channels.AngularVelocity = particle.NewConstant(geom.Scalar(i % 5))
			p.Channels.ForwardAcceleration = particle.NewConstant(geom.Scalar(2))
		}

		for range 20 {
			steps := e.Begin(3*step, nil)
			require.Equal(t, 3, steps)
			e.Finalize()
		}
		require.NoError(t, e.Validate())

		out := make([]geom.Vec2, ps.Len())
		for i, p := range sys.Particles().All() {
			out[i] = p.Position
		}
		return out
	}

	serial := run(1)
	parallel := run(8)
	require.Len(t, parallel, len(serial))
	for i := range serial {
		assert.InDelta(t, serial[i].X, parallel[i].X, 1e-9)
		assert.InDelta(t, serial[i].Y, parallel[i].Y, 1e-9)
	}
}

func TestBucketsAreBalanced(t *testing.T) {
	e := newEngine(t, testConfig(90, 3))
	for i := range 90 {
		_, ok := e.Acquire(particle.RenderTypes[i%3], drawcall.ID(i%2))
		require.True(t, ok)
	}
	assert.Equal(t, []int{30, 30, 30}, e.Stats().Buckets)
}

func TestGroupsOrdered(t *testing.T) {
	e := newEngine(t, testConfig(16, 2))
	e.Acquire(particle.RenderAdditive, 1)
	e.Acquire(particle.RenderAlpha, 7)
	e.Acquire(particle.RenderAlpha, 2)
	p, _ := e.Acquire(particle.RenderAlphaUnlit, 0)
	e.Release(p)

	type key struct {
		rt particle.RenderType
		dc drawcall.ID
	}
	var got []key
	for g := range e.Groups() {
		got = append(got, key{g.RenderType(), g.DrawCall()})
		n := 0
		for range g.Particles() {
			n++
		}
		assert.Equal(t, g.Len(), n)
	}
	assert.Equal(t, []key{
		{particle.RenderAlpha, 2},
		{particle.RenderAlpha, 7},
		{particle.RenderAdditive, 1},
	}, got, "empty groups are skipped")
}

func TestDeferRunsAtNextStep(t *testing.T) {
	e := newEngine(t, testConfig(4, 1))
	ran := 0
	e.Defer(func() { ran++ })
	assert.Equal(t, 0, ran)

	e.Tick(step)
	assert.Equal(t, 1, ran)
	e.Tick(step)
	assert.Equal(t, 1, ran)
}

func TestConfigureShrinkAndGrow(t *testing.T) {
	e := newEngine(t, testConfig(100, 4))
	sys := newSystem(t, e, particle.SystemConfig{RenderType: particle.RenderAlpha, Lifetime: 10})
	require.Equal(t, 50, sys.Emit(50))
	e.Tick(step)

	require.NoError(t, e.Configure(testConfig(20, 3)))
	stats := e.Stats()
	assert.Equal(t, 20, stats.Capacity)
	assert.Equal(t, 20, stats.Live)
	assert.Equal(t, 0, stats.Pooled)
	assert.Len(t, stats.Buckets, 3)
	assert.Equal(t, 20, sys.Len())
	require.NoError(t, e.Validate())

	for _, p := range sys.Particles().All() {
		assert.Same(t, sys, p.System())
		assert.InDelta(t, 0.01, p.TimeAlive, 1e-9)
	}

	require.NoError(t, e.Configure(testConfig(200, 5)))
	stats = e.Stats()
	assert.Equal(t, 200, stats.Capacity)
	assert.Equal(t, 20, stats.Live)
	assert.Equal(t, 180, stats.Pooled)
	require.NoError(t, e.Validate())

	assert.Equal(t, 30, sys.Emit(30))
	e.Tick(step)
	require.NoError(t, e.Validate())

	sys.Clear()
	assert.Equal(t, 0, e.Stats().Live)
	require.NoError(t, e.Validate())
}

func TestConfigureRejectsInvalid(t *testing.T) {
	e := newEngine(t, testConfig(10, 1))
	cfg := testConfig(0, 1)
	assert.ErrorIs(t, e.Configure(cfg), particle.ErrInvalidConfig)
	assert.Equal(t, 10, e.Config().PoolSize)
}

func TestRenderTypeNames(t *testing.T) {
	for _, rt := range particle.RenderTypes {
		got, err := particle.ParseRenderType(rt.String())
		require.NoError(t, err)
		assert.Equal(t, rt, got)
	}
	_, err := particle.ParseRenderType("opaque")
	assert.ErrorIs(t, err, particle.ErrUnknownRenderType)
	assert.ErrorIs(t, particle.RenderType(9).Validate(), particle.ErrUnknownRenderType)
}

func BenchmarkTick(b *testing.B) {
	cfg := particle.DefaultConfig()
	cfg.PoolSize = 50000
	e := newEngine(b, cfg)
	sys := newSystem(b, e, particle.SystemConfig{RenderType: particle.RenderAdditive, Lifetime: 1e9})
	sys.AddModule(&particle.VelocityModule{Speed: particle.Range{Min: 10, Max: 50}, Spread: particle.Range{Min: -3, Max: 3}})
	sys.Emit(cfg.PoolSize)

	b.ResetTimer()
	for b.Loop() {
		e.Tick(cfg.UpdateRate)
	}
}
