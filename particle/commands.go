package particle

// Commands buffers structural changes recorded while particles are being
// iterated, so that no bucket or free list is mutated mid-update. The engine
// applies the buffer at the start of the next simulation step.
type Commands struct {
	releases []releaseCommand
	defers   []deferCommand
}

type releaseCommand struct {
	id  ID
	gen uint32
}

type deferCommand struct {
	fn func()
}

// Release queues p to be returned to the pool.
func (c *Commands) Release(p *Particle) {
	if p == nil {
		return
	}
	c.releases = append(c.releases, releaseCommand{id: p.id, gen: p.gen})
}

// Defer queues a function to run after the queued releases.
func (c *Commands) Defer(fn func()) {
	c.defers = append(c.defers, deferCommand{fn: fn})
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	return len(c.releases) + len(c.defers)
}

// take moves every command of o into c and clears o.
func (c *Commands) take(o *Commands) {
	c.releases = append(c.releases, o.releases...)
	c.defers = append(c.defers, o.defers...)
	o.reset()
}

func (c *Commands) reset() {
	clear(c.defers)
	c.releases = c.releases[:0]
	c.defers = c.defers[:0]
}

// Flush applies all commands to the engine, resetting the buffer state.
// Releases naming an unknown particle, a pooled particle, or a particle that
// has been reused since the command was recorded are skipped.
func (c *Commands) Flush(e *Engine) {
	for _, cmd := range c.releases {
		p := e.pool.at(cmd.id)
		if p == nil || p.inPool || p.gen != cmd.gen {
			continue
		}
		e.release(p)
	}

	// Deferred functions may queue more work; run it in the same flush.
	for i := 0; i < len(c.defers); i++ {
		if fn := c.defers[i].fn; fn != nil {
			fn()
		}
	}

	c.reset()
}
