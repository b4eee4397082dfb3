package inventory

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoSpace   = errors.New("inventory: not enough bag space")
	ErrEmptySlot = errors.New("inventory: slot is empty")
	ErrBadSlot   = errors.New("inventory: no such slot")
)

// Backpack is the bag index of the main pack; equipped bags follow at 1..n.
const Backpack uint8 = 0

type SlotRef struct {
	Bag  uint8 `json:"bag"`
	Slot uint8 `json:"slot"`
}

// Stack is the content of one occupied slot.
type Stack struct {
	Ref    SlotRef `json:"ref"`
	ItemID uint32  `json:"item_id"`
	Count  uint32  `json:"count"`
}

// Placement is the part of a grant that landed in one slot.
type Placement struct {
	Ref   SlotRef
	Count uint32
}

// Grant records where granted units went so they can be taken back.
type Grant struct {
	ItemID     uint32
	Placements []Placement
}

func (g Grant) Count() uint32 {
	var n uint32
	for _, p := range g.Placements {
		n += p.Count
	}
	return n
}

// StackLimits reports how many units of an item fit in one slot.
type StackLimits interface {
	MaxStack(itemID uint32) uint32
}

type slot struct {
	item  uint32
	count uint32
}

// Bags is a character's carried inventory: the backpack plus equipped bags.
type Bags struct {
	mu     sync.Mutex
	limits StackLimits
	bags   [][]slot
}

func New(limits StackLimits, backpackSlots int, bagSlots ...int) *Bags {
	b := &Bags{limits: limits}
	b.bags = append(b.bags, make([]slot, backpackSlots))
	for _, n := range bagSlots {
		b.bags = append(b.bags, make([]slot, n))
	}
	return b
}

func (b *Bags) maxStack(itemID uint32) uint32 {
	if n := b.limits.MaxStack(itemID); n > 0 {
		return n
	}
	return 1
}

// Carried lists occupied slots, backpack first, in slot order.
func (b *Bags) Carried() []Stack {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Stack
	for bi, bag := range b.bags {
		for si, s := range bag {
			if s.count == 0 {
				continue
			}
			out = append(out, Stack{
				Ref:    SlotRef{Bag: uint8(bi), Slot: uint8(si)},
				ItemID: s.item,
				Count:  s.count,
			})
		}
	}
	return out
}

// CheckCapacity reports whether qty units of the item fit right now.
func (b *Bags) CheckCapacity(itemID, qty uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.roomLocked(itemID) < uint64(qty) {
		return fmt.Errorf("%w: %d x item %d", ErrNoSpace, qty, itemID)
	}
	return nil
}

func (b *Bags) roomLocked(itemID uint32) uint64 {
	max := uint64(b.maxStack(itemID))
	var room uint64
	for _, bag := range b.bags {
		for _, s := range bag {
			switch {
			case s.count == 0:
				room += max
			case s.item == itemID && uint64(s.count) < max:
				room += max - uint64(s.count)
			}
		}
	}
	return room
}

// Grant places exactly qty units, topping up partial stacks before using
// empty slots. Nothing changes when the units do not fit.
func (b *Bags) Grant(itemID, qty uint32) (Grant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if qty == 0 {
		return Grant{ItemID: itemID}, nil
	}
	if b.roomLocked(itemID) < uint64(qty) {
		return Grant{}, fmt.Errorf("%w: %d x item %d", ErrNoSpace, qty, itemID)
	}

	max := b.maxStack(itemID)
	g := Grant{ItemID: itemID}
	left := qty
	place := func(bi, si int, n uint32) {
		s := &b.bags[bi][si]
		s.item = itemID
		s.count += n
		g.Placements = append(g.Placements, Placement{Ref: SlotRef{Bag: uint8(bi), Slot: uint8(si)}, Count: n})
		left -= n
	}
	for bi := range b.bags {
		for si, s := range b.bags[bi] {
			if left == 0 {
				return g, nil
			}
			if s.count > 0 && s.item == itemID && s.count < max {
				place(bi, si, min(max-s.count, left))
			}
		}
	}
	for bi := range b.bags {
		for si, s := range b.bags[bi] {
			if left == 0 {
				return g, nil
			}
			if s.count == 0 {
				place(bi, si, min(max, left))
			}
		}
	}
	return g, nil
}

// Revoke takes back units handed out by Grant.
func (b *Bags) Revoke(g Grant) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range g.Placements {
		s, err := b.slotLocked(p.Ref)
		if err != nil {
			return err
		}
		if s.item != g.ItemID || s.count < p.Count {
			return fmt.Errorf("revoke %d x item %d at %d/%d: slot changed", p.Count, g.ItemID, p.Ref.Bag, p.Ref.Slot)
		}
		s.count -= p.Count
		if s.count == 0 {
			s.item = 0
		}
	}
	return nil
}

// RemoveCarried empties a slot and returns what it held.
func (b *Bags) RemoveCarried(ref SlotRef) (Stack, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.slotLocked(ref)
	if err != nil {
		return Stack{}, err
	}
	if s.count == 0 {
		return Stack{}, ErrEmptySlot
	}
	out := Stack{Ref: ref, ItemID: s.item, Count: s.count}
	*s = slot{}
	return out, nil
}

// Put stores a stack directly into a slot, replacing its content.
func (b *Bags) Put(ref SlotRef, itemID, count uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.slotLocked(ref)
	if err != nil {
		return err
	}
	if count > b.maxStack(itemID) {
		return fmt.Errorf("put %d x item %d: exceeds stack size", count, itemID)
	}
	if count == 0 {
		itemID = 0
	}
	*s = slot{item: itemID, count: count}
	return nil
}

// Count totals the carried units of an item.
func (b *Bags) Count(itemID uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n uint32
	for _, bag := range b.bags {
		for _, s := range bag {
			if s.count > 0 && s.item == itemID {
				n += s.count
			}
		}
	}
	return n
}

func (b *Bags) slotLocked(ref SlotRef) (*slot, error) {
	if int(ref.Bag) >= len(b.bags) || int(ref.Slot) >= len(b.bags[ref.Bag]) {
		return nil, fmt.Errorf("%w: %d/%d", ErrBadSlot, ref.Bag, ref.Slot)
	}
	return &b.bags[ref.Bag][ref.Slot], nil
}
