package registry

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation in the upper bits.
// The generation increments when the entity is destroyed so stale ids are rejected.
type EntityID uint64

func newEntityID(index, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

// NoEntity is the owner of a component that is not attached.
const NoEntity = ^EntityID(0)

// entitySlot holds the components of one entity index. order records attach order so
// destruction can run in reverse.
type entitySlot struct {
	generation uint32
	alive      bool
	components [MaxComponentTypes]Component
	order      []ComponentType
}

// entityPool allocates entity indices with generations and a free list.
type entityPool struct {
	slots    []entitySlot
	freeList []uint32
}

func (p *entityPool) create() EntityID {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		p.slots[idx].alive = true
		return newEntityID(idx, p.slots[idx].generation)
	}
	idx := uint32(len(p.slots))
	p.slots = append(p.slots, entitySlot{alive: true})
	return newEntityID(idx, 0)
}

// slot returns the slot of a live id, or nil for stale and unknown ids.
func (p *entityPool) slot(id EntityID) *entitySlot {
	idx := id.Index()
	if int(idx) >= len(p.slots) {
		return nil
	}
	s := &p.slots[idx]
	if !s.alive || s.generation != id.Generation() {
		return nil
	}
	return s
}

func (p *entityPool) release(id EntityID) {
	s := p.slot(id)
	if s == nil {
		return
	}
	s.alive = false
	s.generation++
	s.components = [MaxComponentTypes]Component{}
	s.order = nil
	p.freeList = append(p.freeList, id.Index())
}

func (p *entityPool) live() []EntityID {
	out := make([]EntityID, 0, len(p.slots)-len(p.freeList))
	for i := range p.slots {
		if p.slots[i].alive {
			out = append(out, newEntityID(uint32(i), p.slots[i].generation))
		}
	}
	return out
}
