package bank

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"reagentbank.io/internal/catalog"
	"reagentbank.io/internal/lanes"
	"reagentbank.io/internal/ledger"
	"reagentbank.io/internal/nav"
)

// Listed is one stored item as shown to a player.
type Listed struct {
	ItemID   uint32
	Name     string
	Quality  catalog.Quality
	Quantity uint32
	// Known is false when the catalog no longer defines the item.
	Known bool
}

type Listing struct {
	Owner    ledger.OwnerKey
	Category ledger.Category
	Locale   string
	// Items are in display order: by name, ties by item id.
	Items         []Listed
	TotalQuantity uint64
}

// List returns the stored contents of one category.
func (e *Engine) List(ctx context.Context, owner ledger.OwnerKey, cat ledger.Category, locale string) (Listing, error) {
	if !cat.Valid() {
		return Listing{}, fmt.Errorf("%w: %d", ledger.ErrInvalidCategory, cat)
	}
	ctx, span := e.startSpan(ctx, "bank.list", owner, attribute.String("reagentbank.category", cat.String()))
	var out Listing
	err := e.onLane(ctx, owner, func() error {
		var err error
		out, err = e.list(ctx, owner, cat, locale)
		return err
	})
	endSpan(span, err)
	return out, err
}

// ListAsync queues List on the owner's lane and delivers the result to reply.
func (e *Engine) ListAsync(ctx context.Context, owner ledger.OwnerKey, cat ledger.Category, locale string, reply func(Listing, error)) {
	if !owner.Valid() {
		reply(Listing{}, ledger.ErrInvalidOwner)
		return
	}
	if !cat.Valid() {
		reply(Listing{}, fmt.Errorf("%w: %d", ledger.ErrInvalidCategory, cat))
		return
	}
	ctx = context.WithoutCancel(ctx)
	ok := e.lanes.Submit(owner.String(), func() {
		ctx, span := e.startSpan(ctx, "bank.list", owner, attribute.String("reagentbank.category", cat.String()))
		out, err := e.list(ctx, owner, cat, locale)
		endSpan(span, err)
		reply(out, err)
	})
	if !ok {
		reply(Listing{}, lanes.ErrClosed)
	}
}

func (e *Engine) list(ctx context.Context, owner ledger.OwnerKey, cat ledger.Category, locale string) (Listing, error) {
	out := Listing{Owner: owner, Category: cat, Locale: locale}
	entries, err := e.store.ScanCategory(ctx, owner, cat)
	if err != nil {
		return out, fmt.Errorf("scan %s: %w", cat, err)
	}
	out.Items = make([]Listed, 0, len(entries))
	for _, ent := range entries {
		it := Listed{ItemID: ent.ItemID, Quantity: ent.Quantity, Name: "Unknown"}
		if def, ok := e.catalog.Lookup(ent.ItemID); ok {
			it.Name, it.Quality, it.Known = def.DisplayName(locale), def.Quality, true
		}
		out.Items = append(out.Items, it)
		out.TotalQuantity += uint64(ent.Quantity)
	}
	nav.SortItems(out.Items, func(it Listed) (string, uint32) { return it.Name, it.ItemID })
	return out, nil
}
