package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var (
	ErrZeroQuantity    = errors.New("ledger: quantity must be positive")
	ErrInvalidOwner    = errors.New("ledger: owner key must set exactly one of account or character")
	ErrInvalidCategory = errors.New("ledger: unknown category")
)

// Mode selects how ledger rows are partitioned.
type Mode uint8

const (
	// ModeIndividual keys rows by character.
	ModeIndividual Mode = iota
	// ModeShared keys rows by account; every character on it sees the same storage.
	ModeShared
)

func (m Mode) String() string {
	if m == ModeShared {
		return "account"
	}
	return "character"
}

// OwnerKey addresses one ledger partition. Exactly one field is non-zero.
type OwnerKey struct {
	Account   uint64 `json:"account_id,omitempty"`
	Character uint64 `json:"character_id,omitempty"`
}

// KeyFor derives the owner key for a character under the given mode.
func KeyFor(mode Mode, account, character uint64) OwnerKey {
	if mode == ModeShared {
		return OwnerKey{Account: account}
	}
	return OwnerKey{Character: character}
}

func (k OwnerKey) Valid() bool {
	return (k.Account == 0) != (k.Character == 0)
}

func (k OwnerKey) String() string {
	if k.Account != 0 {
		return "account:" + strconv.FormatUint(k.Account, 10)
	}
	return "character:" + strconv.FormatUint(k.Character, 10)
}

// Entry is one stored item under an owner. Quantity is always >= 1; an entry
// that would drop to zero is deleted instead.
type Entry struct {
	Owner    OwnerKey
	ItemID   uint32
	Category Category
	Quantity uint32
}

// Write is one row of an atomic batch. Quantity 0 deletes the row.
type Write struct {
	ItemID   uint32
	Category Category
	Quantity uint32
}

// Store is the durable owner/item -> quantity mapping. Upsert overwrites;
// callers supply final totals.
type Store interface {
	Get(ctx context.Context, owner OwnerKey, itemID uint32) (Entry, bool, error)
	Upsert(ctx context.Context, e Entry) error
	Delete(ctx context.Context, owner OwnerKey, itemID uint32) error
	ScanCategory(ctx context.Context, owner OwnerKey, c Category) ([]Entry, error)
	ScanAll(ctx context.Context, owner OwnerKey) ([]Entry, error)
	// Apply writes every row or none of them.
	Apply(ctx context.Context, owner OwnerKey, writes []Write) error
}

type Op string

const (
	OpDeposit    Op = "deposit"
	OpWithdraw   Op = "withdraw"
	OpCompensate Op = "compensate"
)

// Change describes one committed mutation, for audit trails and event feeds.
type Change struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Owner    OwnerKey  `json:"owner"`
	ItemID   uint32    `json:"item_id"`
	Category Category  `json:"category"`
	Op       Op        `json:"op"`
	Delta    int64     `json:"delta"`
	Quantity uint32    `json:"quantity"`
}

// Sink receives committed changes. Sinks run after the store commit, so a
// failing sink never rolls anything back.
type Sink interface {
	Record(ctx context.Context, c Change) error
}
