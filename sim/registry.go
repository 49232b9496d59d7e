package sim

import "fmt"

const (
	slotBits = 20
	slotMask = 1<<slotBits - 1
	genMask  = 1<<(32-slotBits) - 1
)

// Registry owns every live entity collection. Collections are slices kept in
// creation order so iteration, and therefore collision tie-breaks, is
// deterministic.
//
// Destroy only clears Alive; removal happens in Sweep at the end of the tick.
// Entities created during a tick are findable by id immediately but join
// their kind's collection at Sweep, so no loop ever sees its slice change.
// A freed slot is recycled with a bumped generation, which makes stale ids
// fail lookup instead of resolving to an unrelated entity.
type Registry struct {
	live     [kindCount][]*Entity
	spawned  []*Entity
	byID     map[ID]*Entity
	gens     []uint32
	free     []uint32
	nextSlot uint32
	capacity int
}

// NewRegistry creates a registry that holds at most capacity entities.
func NewRegistry(capacity int) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0, got %d", ErrRegistryInit, capacity)
	}
	if capacity > slotMask {
		return nil, fmt.Errorf("%w: capacity %d exceeds %d slots", ErrRegistryInit, capacity, slotMask)
	}
	return &Registry{
		byID:     make(map[ID]*Entity, capacity),
		gens:     make([]uint32, 1, 256),
		nextSlot: 1,
		capacity: capacity,
	}, nil
}

// Create assigns an id to e and schedules it to join its collection at the
// next Sweep. It returns NoID when the registry is full.
func (r *Registry) Create(e *Entity) ID {
	if e == nil || e.Kind >= kindCount || len(r.byID) >= r.capacity {
		return NoID
	}
	var slot uint32
	if len(r.free) > 0 {
		slot = r.free[0]
		r.free = r.free[1:]
	} else {
		if r.nextSlot > slotMask {
			return NoID
		}
		slot = r.nextSlot
		r.nextSlot++
		r.gens = append(r.gens, 0)
	}
	id := ID(r.gens[slot]<<slotBits | slot)
	e.ID = id
	e.Alive = true
	r.byID[id] = e
	r.spawned = append(r.spawned, e)
	return id
}

// Destroy marks the entity dead. It reports false for unknown ids.
func (r *Registry) Destroy(id ID) bool {
	e, ok := r.byID[id]
	if !ok {
		return false
	}
	e.Alive = false
	return true
}

// Find resolves a weak reference. Dead or unknown entities are not returned.
func (r *Registry) Find(id ID) (*Entity, bool) {
	e, ok := r.byID[id]
	if !ok || !e.Alive {
		return nil, false
	}
	return e, true
}

// Iterate returns the collection for kind. Callers may mutate the entities but
// must not retain the slice past the current tick.
func (r *Registry) Iterate(k Kind) []*Entity {
	if k >= kindCount {
		return nil
	}
	return r.live[k]
}

// Count returns the number of alive entities of kind, including ones spawned
// this tick.
func (r *Registry) Count(k Kind) int {
	n := 0
	for _, e := range r.live[k] {
		if e.Alive {
			n++
		}
	}
	for _, e := range r.spawned {
		if e.Kind == k && e.Alive {
			n++
		}
	}
	return n
}

// Len returns the number of tracked entities.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Sweep purges dead entities, recycles their slots and merges the entities
// spawned this tick. It returns the number of entities removed.
func (r *Registry) Sweep() int {
	removed := 0
	for k := range r.live {
		kept := r.live[k][:0]
		for _, e := range r.live[k] {
			if e.Alive {
				kept = append(kept, e)
				continue
			}
			r.release(e.ID)
			removed++
		}
		for i := len(kept); i < len(r.live[k]); i++ {
			r.live[k][i] = nil
		}
		r.live[k] = kept
	}
	for _, e := range r.spawned {
		if !e.Alive {
			r.release(e.ID)
			removed++
			continue
		}
		r.live[e.Kind] = append(r.live[e.Kind], e)
	}
	clear(r.spawned)
	r.spawned = r.spawned[:0]
	return removed
}

func (r *Registry) release(id ID) {
	delete(r.byID, id)
	slot := uint32(id) & slotMask
	r.gens[slot] = (r.gens[slot] + 1) & genMask
	r.free = append(r.free, slot)
}
