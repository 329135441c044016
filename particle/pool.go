package particle

// Pool is the fixed-capacity particle arena and its free list.
// Particles live in one contiguous slice and are addressed by ID; the free
// list is a stack of IDs so the most recently released particle is reused
// first.
type Pool struct {
	particles []Particle
	free      []ID
}

// newPool allocates capacity particles, all of them free.
func newPool(capacity int) *Pool {
	p, _ := (&Pool{}).compact(nil, capacity)
	return p
}

// Cap returns the total number of particles owned by the pool.
func (p *Pool) Cap() int {
	return len(p.particles)
}

// Free returns the number of particles in the free list.
func (p *Pool) Free() int {
	return len(p.free)
}

// Live returns the number of particles handed out.
func (p *Pool) Live() int {
	return len(p.particles) - len(p.free)
}

// at returns the particle with the given id, or nil when id is out of range.
func (p *Pool) at(id ID) *Particle {
	if id < 0 || int(id) >= len(p.particles) {
		return nil
	}
	return &p.particles[id]
}

// pop takes a particle off the free list.
func (p *Pool) pop() (*Particle, bool) {
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	id := p.free[n-1]
	p.free = p.free[:n-1]

	pt := &p.particles[id]
	pt.inPool = false
	pt.gen++
	return pt, true
}

// push resets pt and returns it to the free list. Pushing a pooled particle
// is a no-op and returns false.
func (p *Pool) push(pt *Particle) bool {
	if pt.inPool {
		return false
	}
	pt.reset()
	pt.inEngine = false
	pt.inPool = true
	p.free = append(p.free, pt.id)
	return true
}

// compact builds a pool of the given capacity holding copies of the keep
// particles at IDs 0..len(keep)-1 and a free list for the rest. The returned
// slice maps every old ID to its new ID, or NoParticle if it was not kept.
// len(keep) must not exceed capacity.
func (p *Pool) compact(keep []ID, capacity int) (*Pool, []ID) {
	np := &Pool{
		particles: make([]Particle, capacity),
		free:      make([]ID, 0, capacity-len(keep)),
	}

	remap := make([]ID, len(p.particles))
	for i := range remap {
		remap[i] = NoParticle
	}

	for i, old := range keep {
		np.particles[i] = p.particles[old]
		np.particles[i].id = ID(i)
		remap[old] = ID(i)
	}

	// Push in reverse so the lowest free ID is handed out first.
	for i := capacity - 1; i >= len(keep); i-- {
		pt := &np.particles[i]
		pt.id = ID(i)
		pt.reset()
		pt.inPool = true
		np.free = append(np.free, ID(i))
	}

	return np, remap
}
