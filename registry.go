package spawn

import (
	"sync"
)

// ref is a capability reference to a registered unit. It stays comparable
// and cheap to copy; the generation detects slots that were released and
// possibly reused since the reference was taken.
type ref struct {
	reg   *registry
	index uint32
	gen   uint32
}

type slot struct {
	gen uint32
	u   *unit
}

// registry is an arena of live units with a free list of released slots.
type registry struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	n     int
}

func newRegistry() *registry { return &registry{} }

func (r *registry) acquire(u *unit) ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	var i uint32
	if n := len(r.free); n > 0 {
		i = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		i = uint32(len(r.slots) - 1)
	}
	r.slots[i].u = u
	r.n++
	return ref{reg: r, index: i, gen: r.slots[i].gen}
}

// lookup returns the unit referenced by h, or nil if it was released.
func (r *registry) lookup(h ref) *unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(h.index) >= len(r.slots) {
		return nil
	}
	s := r.slots[h.index]
	if s.gen != h.gen {
		return nil
	}
	return s.u
}

func (r *registry) release(h ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &r.slots[h.index]
	if s.gen != h.gen {
		return
	}
	s.gen++
	s.u = nil
	r.free = append(r.free, h.index)
	r.n--
}

// live returns the number of registered units.
func (r *registry) live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
