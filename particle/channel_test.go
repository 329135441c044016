package particle_test

import (
	"testing"

	"github.com/plus3/flare/geom"
	"github.com/plus3/flare/particle"
	"github.com/stretchr/testify/assert"
)

func TestChannelVariants(t *testing.T) {
	constant := particle.NewConstant(geom.Scalar(4))
	assert.Equal(t, geom.Scalar(4), constant.At(0))
	assert.Equal(t, geom.Scalar(4), constant.At(1))

	lerp := particle.NewLerp(geom.Vec2{X: 0, Y: 10}, geom.Vec2{X: 100, Y: 0})
	assert.Equal(t, geom.Vec2{X: 50, Y: 5}, lerp.At(0.5))
	assert.Equal(t, geom.Vec2{X: 100, Y: 0}, lerp.At(1))
}

func TestCurve(t *testing.T) {
	curve := particle.NewCurve(
		particle.Key[geom.Scalar]{Time: 1, Value: 10},
		particle.Key[geom.Scalar]{Time: 0, Value: 0},
		particle.Key[geom.Scalar]{Time: 0.5, Value: 20},
	)

	keys := curve.Keys()
	assert.Equal(t, []float64{0, 0.5, 1}, []float64{keys[0].Time, keys[1].Time, keys[2].Time})

	tests := []struct {
		t    float64
		want geom.Scalar
	}{
		{-1, 0},
		{0, 0},
		{0.25, 10},
		{0.5, 20},
		{0.75, 15},
		{1, 10},
		{2, 10},
	}
	for _, tt := range tests {
		assert.InDelta(t, float64(tt.want), float64(curve.At(tt.t)), 1e-9, "t=%v", tt.t)
	}

	empty := particle.NewCurve[geom.Color]()
	assert.Equal(t, geom.Color{}, empty.At(0.5))
}

func TestCurveCopiesKeys(t *testing.T) {
	keys := []particle.Key[geom.Scalar]{{Time: 1, Value: 1}, {Time: 0, Value: 0}}
	curve := particle.NewCurve(keys...)
	keys[0].Value = 99
	assert.InDelta(t, 1.0, float64(curve.At(1)), 1e-9)
}

func TestChannelsDisable(t *testing.T) {
	var ch particle.Channels
	ch.Velocity = particle.NewConstant(geom.Vec2{X: 1})
	ch.Color = particle.NewCurve(particle.Key[geom.Color]{Value: geom.White})
	ch.ForwardAcceleration = particle.NewLerp[geom.Scalar](0, 1)
	assert.Equal(t, 3, ch.Active())

	ch.Disable()
	assert.Equal(t, 0, ch.Active())
	assert.Nil(t, ch.Velocity)
}
