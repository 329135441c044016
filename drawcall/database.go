// Package drawcall interns (texture, shader) pairs into small integer ids that
// the render and particle packages use as batching keys.
package drawcall

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"
)

// ErrNilTexture is returned when interning a draw call without a texture.
var ErrNilTexture = errors.New("drawcall: texture is nil")

// ID identifies an interned (texture, shader) pair.
type ID uint32

// Invalid is never returned by Intern.
const Invalid ID = math.MaxUint32

// Resource is an asset handle owned by the content system. Handles must be
// comparable; two handles refer to the same asset when they are equal or
// share both name and owner.
type Resource interface {
	ResourceName() string
	ResourceOwner() string
}

// Texture is an opaque texture handle.
type Texture interface {
	Resource
	Size() (width, height int)
}

// Shader is an opaque shader handle. A nil Shader selects the default
// pipeline of the submission layer.
type Shader interface {
	Resource
}

// Entry is an interned draw call.
type Entry struct {
	ID      ID
	Texture Texture
	Shader  Shader
}

type pair struct {
	texture Texture
	shader  Shader
}

// Database interns draw calls. It is not safe for concurrent use.
type Database struct {
	log     *zap.Logger
	ids     map[pair]ID
	entries *intmap.Map[ID, *Entry]
	next    ID
}

// NewDatabase creates an empty database. A nil logger disables logging.
func NewDatabase(log *zap.Logger) *Database {
	if log == nil {
		log = zap.NewNop()
	}
	return &Database{
		log:     log,
		ids:     make(map[pair]ID),
		entries: intmap.New[ID, *Entry](64),
	}
}

// Intern returns the id of the (texture, shader) pair, allocating the next
// sequential id the first time the pair is seen. Ids are never reused.
func (d *Database) Intern(texture Texture, shader Shader) (ID, error) {
	if texture == nil {
		return Invalid, ErrNilTexture
	}

	key := pair{texture: texture, shader: shader}
	if id, ok := d.ids[key]; ok {
		return id, nil
	}

	if d.next == Invalid {
		return Invalid, fmt.Errorf("drawcall: id space exhausted after %d entries", d.next)
	}

	id := d.next
	d.next++
	d.ids[key] = id
	d.entries.Put(id, &Entry{ID: id, Texture: texture, Shader: shader})

	d.log.Debug("interned draw call",
		zap.Uint32("id", uint32(id)),
		zap.String("texture", texture.ResourceName()),
		zap.String("shader", resourceName(shader)))
	return id, nil
}

// Lookup returns the entry for id. Pruned ids report false.
func (d *Database) Lookup(id ID) (Entry, bool) {
	e, ok := d.entries.Get(id)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Valid reports whether id refers to a live entry.
func (d *Database) Valid(id ID) bool {
	return d.entries.Has(id)
}

// Len returns the number of live entries.
func (d *Database) Len() int {
	return d.entries.Len()
}

// PruneAsset invalidates every entry whose texture or shader is res, and
// returns the ids removed. Call it before the asset is unloaded.
func (d *Database) PruneAsset(res Resource) []ID {
	if res == nil {
		return nil
	}

	var pruned []ID
	for key, id := range d.ids {
		if !sameResource(key.texture, res) && !sameResource(key.shader, res) {
			continue
		}
		pruned = append(pruned, id)
		delete(d.ids, key)
		d.entries.Del(id)
	}

	slices.Sort(pruned)
	if len(pruned) > 0 {
		d.log.Info("pruned draw calls",
			zap.String("resource", res.ResourceName()),
			zap.String("owner", res.ResourceOwner()),
			zap.Int("count", len(pruned)))
	}
	return pruned
}

func sameResource(a, b Resource) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	return a.ResourceName() == b.ResourceName() && a.ResourceOwner() == b.ResourceOwner()
}

func resourceName(r Resource) string {
	if r == nil {
		return ""
	}
	return r.ResourceName()
}
