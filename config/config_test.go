package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/plus3/flare/config"
	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	engine := cfg.Engine()
	assert.Equal(t, runtime.GOMAXPROCS(0), engine.MaxParallelism)
	assert.Equal(t, time.Second/144, engine.UpdateRate)
	assert.Equal(t, float64(spatial.DefaultTileSize), cfg.Partition().TileSize)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flare.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[particles]
pool_size = 500
buckets = 4
max_parallelism = 2
update_rate = "10ms"

[spatial]
tile_size = 64.0
prune_interval = "2s"

[logging]
level = "debug"
format = "json"
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, particle.Config{
		PoolSize:         500,
		Buckets:          4,
		MaxParallelism:   2,
		UpdateRate:       10 * time.Millisecond,
		MaxStepsPerFrame: 4,
		TimeScale:        1,
	}, cfg.Engine())
	assert.Equal(t, spatial.Config{TileSize: 64, PruneInterval: 2 * time.Second}, cfg.Partition())
	assert.Equal(t, 256, cfg.Render.MaxDrawCalls, "unset keys keep defaults")
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
		is   error
	}{
		{"pool", "[particles]\npool_size = 0", particle.ErrInvalidConfig},
		{"tile", "[spatial]\ntile_size = -1.0", spatial.ErrInvalidTileSize},
		{"format", "[logging]\nformat = \"xml\"", nil},
		{"syntax", "[particles", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.toml))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := config.NewLogger(config.LoggingConfig{Level: "nonsense", Format: format})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(0), "unknown level falls back to info")
		assert.False(t, log.Core().Enabled(-1))
	}
}
