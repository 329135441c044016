package spatial

import "github.com/plus3/flare/geom"

// tileKey encodes the tile column (upper 32 bits) and row (lower 32 bits).
type tileKey uint64

func newTileKey(x, y int32) tileKey {
	return tileKey(uint64(uint32(x))<<32 | uint64(uint32(y)))
}

// X extracts the tile column.
func (k tileKey) X() int32 {
	return int32(uint32(k >> 32))
}

// Y extracts the tile row.
func (k tileKey) Y() int32 {
	return int32(uint32(k & 0xFFFFFFFF))
}

// Object is anything that can be indexed by a Partition.
// Implementations usually embed an Entry to satisfy PartitionEntry.
type Object interface {
	Bounds() geom.Rect
	PartitionEntry() *Entry
}

// Entry is the back-reference an object keeps to the tile holding it.
// The zero value is an untracked object.
type Entry struct {
	tile *Tile
	slot int
}

// PartitionEntry returns e so that embedding an Entry satisfies Object.
func (e *Entry) PartitionEntry() *Entry {
	return e
}

// Tile returns the tile currently holding the object, or nil.
func (e *Entry) Tile() *Tile {
	return e.tile
}

// Tile is one grid cell, or the overflow store for oversized objects.
type Tile struct {
	bounds   geom.Rect
	overflow bool
	objects  []Object
}

// Bounds returns the area covered by the tile. The overflow tile has no bounds.
func (t *Tile) Bounds() geom.Rect {
	return t.bounds
}

// Overflow reports whether this is the large object tile.
func (t *Tile) Overflow() bool {
	return t.overflow
}

func (t *Tile) Len() int {
	return len(t.objects)
}

// Objects returns the tile contents. The slice is owned by the tile.
func (t *Tile) Objects() []Object {
	return t.objects
}

func (t *Tile) add(o Object) {
	e := o.PartitionEntry()
	e.tile = t
	e.slot = len(t.objects)
	t.objects = append(t.objects, o)
}

// remove swap-removes o. Returns false when o is not tracked by this tile.
func (t *Tile) remove(o Object) bool {
	e := o.PartitionEntry()
	if e.tile != t {
		return false
	}

	last := len(t.objects) - 1
	if e.slot != last {
		moved := t.objects[last]
		t.objects[e.slot] = moved
		moved.PartitionEntry().slot = e.slot
	}
	t.objects[last] = nil
	t.objects = t.objects[:last]

	e.tile = nil
	e.slot = 0
	return true
}
