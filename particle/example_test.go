package particle_test

import (
	"fmt"
	"time"

	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
)

// ExampleEngine shows a burst emitter running out of pool space and its
// particles being returned once they expire.
func ExampleEngine() {
	cfg := particle.Config{
		PoolSize:         4,
		Buckets:          2,
		MaxParallelism:   2,
		UpdateRate:       100 * time.Millisecond,
		MaxStepsPerFrame: 10,
		TimeScale:        1,
	}
	engine, err := particle.NewEngine(cfg, nil)
	if err != nil {
		panic(err)
	}

	sparks, err := engine.NewSystem(particle.SystemConfig{
		RenderType: particle.RenderAdditive,
		Lifetime:   0.5,
	})
	if err != nil {
		panic(err)
	}
	sparks.AddModule(&particle.GravityModule{Acceleration: geom.Vec2{Y: 98}})

	fmt.Println("spawned:", sparks.Emit(6))
	engine.Tick(cfg.UpdateRate)

	stats := engine.Stats()
	fmt.Println("live:", stats.Live, "dropped:", stats.Dropped)

	engine.Tick(time.Second)
	fmt.Println("live after expiry:", engine.Stats().Live)

	// Output:
	// spawned: 4
	// live: 4 dropped: 2
	// live after expiry: 0
}
