package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[OwnerKey]map[uint32]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[OwnerKey]map[uint32]Entry{}}
}

func (s *MemoryStore) Get(_ context.Context, owner OwnerKey, itemID uint32) (Entry, bool, error) {
	if !owner.Valid() {
		return Entry{}, false, ErrInvalidOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[owner][itemID]
	return e, ok, nil
}

func (s *MemoryStore) Upsert(_ context.Context, e Entry) error {
	if !e.Owner.Valid() {
		return ErrInvalidOwner
	}
	if e.Quantity == 0 {
		return ErrZeroQuantity
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(e)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, owner OwnerKey, itemID uint32) error {
	if !owner.Valid() {
		return ErrInvalidOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(owner, itemID)
	return nil
}

func (s *MemoryStore) ScanCategory(_ context.Context, owner OwnerKey, c Category) ([]Entry, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.rows[owner] {
		if e.Category == c {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *MemoryStore) ScanAll(_ context.Context, owner OwnerKey) ([]Entry, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.rows[owner]))
	for _, e := range s.rows[owner] {
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (s *MemoryStore) Apply(_ context.Context, owner OwnerKey, writes []Write) error {
	if !owner.Valid() {
		return ErrInvalidOwner
	}
	for _, w := range writes {
		if w.Quantity != 0 && !w.Category.Valid() {
			return ErrInvalidCategory
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		if w.Quantity == 0 {
			s.deleteLocked(owner, w.ItemID)
			continue
		}
		s.putLocked(Entry{Owner: owner, ItemID: w.ItemID, Category: w.Category, Quantity: w.Quantity})
	}
	return nil
}

func (s *MemoryStore) putLocked(e Entry) {
	m := s.rows[e.Owner]
	if m == nil {
		m = map[uint32]Entry{}
		s.rows[e.Owner] = m
	}
	m[e.ItemID] = e
}

func (s *MemoryStore) deleteLocked(owner OwnerKey, itemID uint32) {
	m := s.rows[owner]
	if m == nil {
		return
	}
	delete(m, itemID)
	if len(m) == 0 {
		delete(s.rows, owner)
	}
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].ItemID < es[j].ItemID })
}
