package inventory

import (
	"sort"
	"sync"
)

// Layout describes the bags a new character starts with.
type Layout struct {
	BackpackSlots int
	BagSlots      []int
	// StarterItems is granted once when a character's bags are created.
	StarterItems map[uint32]uint32
}

// Roster holds the live bags of every character that connected since start.
type Roster struct {
	mu     sync.Mutex
	limits StackLimits
	layout Layout
	bags   map[uint64]*Bags
}

func NewRoster(limits StackLimits, layout Layout) *Roster {
	return &Roster{limits: limits, layout: layout, bags: map[uint64]*Bags{}}
}

// Bags returns the character's bags, creating and seeding them on first use.
func (r *Roster) Bags(character uint64) *Bags {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bags[character]; ok {
		return b
	}
	b := New(r.limits, r.layout.BackpackSlots, r.layout.BagSlots...)
	ids := make([]uint32, 0, len(r.layout.StarterItems))
	for id := range r.layout.StarterItems {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		// Starter items that do not fit are skipped.
		_, _ = b.Grant(id, r.layout.StarterItems[id])
	}
	r.bags[character] = b
	return b
}

func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bags)
}
