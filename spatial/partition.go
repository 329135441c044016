// Package spatial provides a uniform tile grid used for visibility culling.
//
// Objects no larger than a tile are stored in the tile covering the centre of
// their bounds. Anything larger goes into a single overflow tile that every
// region query scans. Tiles are created on first insert and dropped by Prune
// once empty.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kamstrup/intmap"
	"github.com/plus3/flare/geom"
	"go.uber.org/zap"
)

// ErrInvalidTileSize is returned by New for a non-positive tile size.
var ErrInvalidTileSize = errors.New("spatial: tile size must be positive")

const (
	DefaultTileSize      = 192
	DefaultPruneInterval = 5 * time.Second
)

// Config controls the grid geometry and the prune timer.
type Config struct {
	TileSize      float64
	PruneInterval time.Duration
}

// Partition indexes objects by tile. It is single writer: Insert, Remove,
// Prune and Tick must not run concurrently with each other or with queries.
type Partition struct {
	log           *zap.Logger
	tileSize      float64
	tiles         *intmap.Map[tileKey, *Tile]
	overflow      *Tile
	count         int
	pruneInterval time.Duration
	sincePrune    time.Duration
}

// New creates an empty partition. A nil logger disables logging.
func New(cfg Config, log *zap.Logger) (*Partition, error) {
	if cfg.TileSize <= 0 || math.IsNaN(cfg.TileSize) || math.IsInf(cfg.TileSize, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTileSize, cfg.TileSize)
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultPruneInterval
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Partition{
		log:           log,
		tileSize:      cfg.TileSize,
		tiles:         intmap.New[tileKey, *Tile](64),
		overflow:      &Tile{overflow: true},
		pruneInterval: cfg.PruneInterval,
	}, nil
}

// TileSize returns the edge length of a grid tile.
func (p *Partition) TileSize() float64 {
	return p.tileSize
}

// Len returns the number of indexed objects.
func (p *Partition) Len() int {
	return p.count
}

// TileCount returns the number of grid tiles currently allocated, empty or not.
func (p *Partition) TileCount() int {
	return p.tiles.Len()
}

// Overflow returns the large object tile.
func (p *Partition) Overflow() *Tile {
	return p.overflow
}

func (p *Partition) coord(v float64) int32 {
	c := math.Floor(v / p.tileSize)
	if c < math.MinInt32 {
		return math.MinInt32
	}
	if c > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(c)
}

func (p *Partition) tileBounds(x, y int32) geom.Rect {
	return geom.XYWH(float64(x)*p.tileSize, float64(y)*p.tileSize, p.tileSize, p.tileSize)
}

// Insert indexes o, moving it out of its previous tile if it changed tiles.
// Call it again after o moves or resizes.
func (p *Partition) Insert(o Object) {
	b := o.Bounds()
	e := o.PartitionEntry()

	var target *Tile
	if b.Width() > p.tileSize || b.Height() > p.tileSize {
		target = p.overflow
	} else {
		c := b.Center()
		x, y := p.coord(c.X), p.coord(c.Y)
		key := newTileKey(x, y)

		tile, ok := p.tiles.Get(key)
		if !ok {
			tile = &Tile{bounds: p.tileBounds(x, y)}
			p.tiles.Put(key, tile)
		}
		target = tile
	}

	if e.tile == target {
		return
	}
	if e.tile != nil {
		e.tile.remove(o)
	} else {
		p.count++
	}
	target.add(o)
}

// Remove drops o from the index. Removing an object that is not indexed is a
// no-op and returns false.
func (p *Partition) Remove(o Object) bool {
	e := o.PartitionEntry()

	removed := false
	if e.tile != nil {
		removed = e.tile.remove(o)
	}
	if p.overflow.remove(o) {
		removed = true
	}
	if removed {
		p.count--
	}
	return removed
}

// GetFromRegion appends to out every object stored in a tile intersecting r,
// followed by every object in the overflow tile, and returns the extended
// slice. Callers needing exact overlap must filter the result themselves.
func (p *Partition) GetFromRegion(out []Object, r geom.Rect) []Object {
	x0, x1 := p.coord(r.Min.X), p.coord(r.Max.X)
	y0, y1 := p.coord(r.Min.Y), p.coord(r.Max.Y)
	span := (int64(x1) - int64(x0) + 1) * (int64(y1) - int64(y0) + 1)

	if span > int64(p.tiles.Len()) {
		// Cheaper to walk the allocated tiles than the covered coordinates.
		p.tiles.ForEach(func(_ tileKey, tile *Tile) bool {
			if tile.bounds.Intersects(r) {
				out = append(out, tile.objects...)
			}
			return true
		})
	} else {
		for x := int64(x0); x <= int64(x1); x++ {
			for y := int64(y0); y <= int64(y1); y++ {
				tile, ok := p.tiles.Get(newTileKey(int32(x), int32(y)))
				if !ok || !tile.bounds.Intersects(r) {
					continue
				}
				out = append(out, tile.objects...)
			}
		}
	}

	return append(out, p.overflow.objects...)
}

// GetOverlapping appends every object whose bounds may intersect r. Grid
// objects extend at most half a tile past their tile, so the query covers r
// widened by that margin. Callers filter with Bounds().Intersects for an
// exact result.
func (p *Partition) GetOverlapping(out []Object, r geom.Rect) []Object {
	h := p.tileSize / 2
	return p.GetFromRegion(out, geom.Rect{
		Min: geom.Vec2{X: r.Min.X - h, Y: r.Min.Y - h},
		Max: geom.Vec2{X: r.Max.X + h, Y: r.Max.Y + h},
	})
}

// Prune discards empty tiles and returns how many were removed.
func (p *Partition) Prune() int {
	var empty []tileKey
	p.tiles.ForEach(func(key tileKey, tile *Tile) bool {
		if len(tile.objects) == 0 {
			empty = append(empty, key)
		}
		return true
	})

	for _, key := range empty {
		p.tiles.Del(key)
	}

	if len(empty) > 0 {
		p.log.Debug("pruned empty tiles",
			zap.Int("removed", len(empty)),
			zap.Int("remaining", p.tiles.Len()))
	}
	return len(empty)
}

// Tick advances the prune timer by elapsed and prunes when it expires.
// Returns true if a prune ran.
func (p *Partition) Tick(elapsed time.Duration) bool {
	p.sincePrune += elapsed
	if p.sincePrune < p.pruneInterval {
		return false
	}
	p.sincePrune = 0
	p.Prune()
	return true
}
