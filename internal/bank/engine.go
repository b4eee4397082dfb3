// Package bank moves reagents between a character's bags and the ledger.
//
// Every read-modify-write for one owner key runs on that owner's lane, so a
// deposit and a withdrawal for the same storage never interleave. Operations
// for different owners share nothing.
package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"reagentbank.io/internal/catalog"
	"reagentbank.io/internal/inventory"
	"reagentbank.io/internal/lanes"
	"reagentbank.io/internal/ledger"
)

var (
	// ErrCapacityExceeded: the bags cannot hold the requested amount.
	ErrCapacityExceeded = errors.New("bank: not enough bag space")
	// ErrItemDefinitionMissing: a stored item has no catalog entry.
	ErrItemDefinitionMissing = errors.New("bank: item definition missing")
	// ErrNotStored: nothing of the item is in storage.
	ErrNotStored = errors.New("bank: item not stored")
	// ErrNothingToDeposit: the bags held no eligible reagents.
	ErrNothingToDeposit = errors.New("bank: nothing to deposit")
	// ErrIneligible: the item can never be stored.
	ErrIneligible = errors.New("bank: item cannot be stored")
)

// Catalog resolves item definitions.
type Catalog interface {
	Lookup(itemID uint32) (catalog.Item, bool)
}

// Inventory is the receiving side of a transfer: the bags of the character
// standing at the banker.
type Inventory interface {
	Carried() []inventory.Stack
	CheckCapacity(itemID, qty uint32) error
	Grant(itemID, qty uint32) (inventory.Grant, error)
	Revoke(g inventory.Grant) error
	RemoveCarried(ref inventory.SlotRef) (inventory.Stack, error)
}

type Config struct {
	Mode ledger.Mode
}

type Engine struct {
	cfg     Config
	store   ledger.Store
	catalog Catalog
	lanes   *lanes.Group
	sink    ledger.Sink
	log     *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithSink receives every committed ledger change.
func WithSink(s ledger.Sink) Option { return func(e *Engine) { e.sink = s } }

func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(cfg Config, store ledger.Store, cat Catalog, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		store:   store,
		catalog: cat,
		lanes:   lanes.NewGroup(),
		log:     zap.NewNop(),
		tracer:  otel.Tracer("reagentbank.io/internal/bank"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With(zap.String("component", "bank"))
	return e
}

// Close waits for in-flight work, including deposits whose session is gone.
func (e *Engine) Close() {
	e.lanes.Close()
}

func (e *Engine) Mode() ledger.Mode { return e.cfg.Mode }

// Busy is the number of owners with queued or running work.
func (e *Engine) Busy() int { return e.lanes.Active() }

// Owner derives the ledger partition for a character.
func (e *Engine) Owner(account, character uint64) ledger.OwnerKey {
	return ledger.KeyFor(e.cfg.Mode, account, character)
}

func (e *Engine) onLane(ctx context.Context, owner ledger.OwnerKey, fn func() error) error {
	if !owner.Valid() {
		return ledger.ErrInvalidOwner
	}
	return e.lanes.Do(ctx, owner.String(), fn)
}

func (e *Engine) startSpan(ctx context.Context, name string, owner ledger.OwnerKey, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("reagentbank.owner", owner.String()))
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNothingToDeposit) && !errors.Is(err, ErrNotStored) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (e *Engine) record(ctx context.Context, owner ledger.OwnerKey, op ledger.Op, w ledger.Write, delta int64) {
	if e.sink == nil {
		return
	}
	ch := ledger.Change{
		ID:       uuid.NewString(),
		At:       e.now().UTC(),
		Owner:    owner,
		ItemID:   w.ItemID,
		Category: w.Category,
		Op:       op,
		Delta:    delta,
		Quantity: w.Quantity,
	}
	if err := e.sink.Record(ctx, ch); err != nil {
		e.log.Warn("record ledger change",
			zap.String("owner", owner.String()),
			zap.Uint32("item", w.ItemID),
			zap.Error(err))
	}
}

// Stored is the quantity currently held for an item; zero when absent.
func (e *Engine) Stored(ctx context.Context, owner ledger.OwnerKey, itemID uint32) (uint32, error) {
	if !owner.Valid() {
		return 0, ledger.ErrInvalidOwner
	}
	ent, ok, err := e.store.Get(ctx, owner, itemID)
	if err != nil {
		return 0, fmt.Errorf("get item %d: %w", itemID, err)
	}
	if !ok {
		return 0, nil
	}
	return ent.Quantity, nil
}
