package bank

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"reagentbank.io/internal/catalog"
	"reagentbank.io/internal/ledger"
)

type amount uint8

const (
	amountOne amount = iota
	amountStack
	amountAll
)

// WithdrawResult reports one item's transfer out of storage.
type WithdrawResult struct {
	ItemID    uint32
	Category  ledger.Category
	Granted   uint32
	Remaining uint32
	// Stacks lists each increment handed over, in order.
	Stacks []uint32
	// Blocked is set when bag space ran out; Shortfall is the increment that did not fit.
	Blocked   bool
	Shortfall uint32
	// Err is set on items a sweep could not move.
	Err error
}

// WithdrawOne hands over a single unit.
func (e *Engine) WithdrawOne(ctx context.Context, owner ledger.OwnerKey, inv Inventory, itemID uint32) (WithdrawResult, error) {
	return e.withdraw(ctx, "bank.withdraw_one", owner, inv, itemID, amountOne)
}

// WithdrawStack hands over up to one full stack.
func (e *Engine) WithdrawStack(ctx context.Context, owner ledger.OwnerKey, inv Inventory, itemID uint32) (WithdrawResult, error) {
	return e.withdraw(ctx, "bank.withdraw_stack", owner, inv, itemID, amountStack)
}

// WithdrawAll hands over stacks until storage is empty or the bags are full.
// Running out of space is not an error here: the result is Blocked and keeps
// whatever was already granted.
func (e *Engine) WithdrawAll(ctx context.Context, owner ledger.OwnerKey, inv Inventory, itemID uint32) (WithdrawResult, error) {
	return e.withdraw(ctx, "bank.withdraw_all", owner, inv, itemID, amountAll)
}

func (e *Engine) withdraw(ctx context.Context, name string, owner ledger.OwnerKey, inv Inventory, itemID uint32, amt amount) (WithdrawResult, error) {
	ctx, span := e.startSpan(ctx, name, owner, attribute.Int64("reagentbank.item", int64(itemID)))
	res := WithdrawResult{ItemID: itemID}
	err := e.onLane(ctx, owner, func() error {
		ent, ok, err := e.store.Get(ctx, owner, itemID)
		if err != nil {
			return fmt.Errorf("get item %d: %w", itemID, err)
		}
		if !ok {
			return ErrNotStored
		}
		res.Category, res.Remaining = ent.Category, ent.Quantity
		def, ok := e.catalog.Lookup(itemID)
		if !ok {
			return fmt.Errorf("%w: item %d", ErrItemDefinitionMissing, itemID)
		}
		res, err = e.drain(ctx, owner, inv, ent, def, amt)
		return err
	})
	if err == nil && res.Blocked && amt != amountAll {
		err = fmt.Errorf("%w: %d x item %d", ErrCapacityExceeded, res.Shortfall, itemID)
	}
	endSpan(span, err)
	return res, err
}

// drain moves ent into the bags one stack at a time. Each increment is
// granted, then persisted; a failed persist takes the grant back.
func (e *Engine) drain(ctx context.Context, owner ledger.OwnerKey, inv Inventory, ent ledger.Entry, def catalog.Item, amt amount) (WithdrawResult, error) {
	cat := ent.Category
	if !cat.Valid() {
		if c, ok := def.Category(); ok {
			cat = c
		}
	}
	res := WithdrawResult{ItemID: ent.ItemID, Category: cat, Remaining: ent.Quantity}
	maxStack := max(def.MaxStack, 1)

	want := ent.Quantity
	switch amt {
	case amountOne:
		want = 1
	case amountStack:
		want = min(maxStack, ent.Quantity)
	}
	for want > 0 {
		give := min(want, maxStack)
		if err := inv.CheckCapacity(ent.ItemID, give); err != nil {
			res.Blocked, res.Shortfall = true, give
			break
		}
		g, err := inv.Grant(ent.ItemID, give)
		if err != nil {
			res.Blocked, res.Shortfall = true, give
			break
		}
		w := ledger.Write{ItemID: ent.ItemID, Category: cat, Quantity: res.Remaining - give}
		if err := e.store.Apply(ctx, owner, []ledger.Write{w}); err != nil {
			if rerr := inv.Revoke(g); rerr != nil {
				e.log.Error("revoke unpersisted grant",
					zap.String("owner", owner.String()),
					zap.Uint32("item", ent.ItemID),
					zap.Uint32("count", give),
					zap.Error(rerr))
			}
			return res, fmt.Errorf("commit withdrawal of item %d: %w", ent.ItemID, err)
		}
		res.Remaining = w.Quantity
		res.Granted += give
		res.Stacks = append(res.Stacks, give)
		want -= give
		e.record(ctx, owner, ledger.OpWithdraw, w, -int64(give))
	}
	if res.Granted > 0 {
		e.log.Info("withdraw",
			zap.String("owner", owner.String()),
			zap.Uint32("item", ent.ItemID),
			zap.Uint32("granted", res.Granted),
			zap.Uint32("remaining", res.Remaining),
			zap.Bool("blocked", res.Blocked))
	}
	return res, nil
}

// SweepResult collects the per-item outcomes of a category or full withdrawal.
type SweepResult struct {
	Items []WithdrawResult
}

func (r SweepResult) Granted() uint64 {
	var n uint64
	for _, it := range r.Items {
		n += uint64(it.Granted)
	}
	return n
}

// Blocked reports whether any item stopped for lack of space.
func (r SweepResult) Blocked() bool {
	for _, it := range r.Items {
		if it.Blocked {
			return true
		}
	}
	return false
}

// WithdrawCategory empties one category as far as bag space allows. Items
// that do not fit, or lack a definition, are skipped and the sweep goes on.
func (e *Engine) WithdrawCategory(ctx context.Context, owner ledger.OwnerKey, inv Inventory, cat ledger.Category) (SweepResult, error) {
	if !cat.Valid() {
		return SweepResult{}, fmt.Errorf("%w: %d", ledger.ErrInvalidCategory, cat)
	}
	ctx, span := e.startSpan(ctx, "bank.withdraw_category", owner, attribute.String("reagentbank.category", cat.String()))
	var res SweepResult
	err := e.onLane(ctx, owner, func() error {
		return e.sweep(ctx, owner, inv, cat, &res)
	})
	endSpan(span, err)
	return res, err
}

// WithdrawEverything sweeps every category in menu order.
func (e *Engine) WithdrawEverything(ctx context.Context, owner ledger.OwnerKey, inv Inventory) (SweepResult, error) {
	ctx, span := e.startSpan(ctx, "bank.withdraw_everything", owner)
	var res SweepResult
	err := e.onLane(ctx, owner, func() error {
		for _, c := range ledger.Categories() {
			if err := e.sweep(ctx, owner, inv, c, &res); err != nil {
				return err
			}
		}
		return nil
	})
	endSpan(span, err)
	return res, err
}

func (e *Engine) sweep(ctx context.Context, owner ledger.OwnerKey, inv Inventory, cat ledger.Category, res *SweepResult) error {
	entries, err := e.store.ScanCategory(ctx, owner, cat)
	if err != nil {
		return fmt.Errorf("scan %s: %w", cat, err)
	}
	for _, ent := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		def, ok := e.catalog.Lookup(ent.ItemID)
		if !ok {
			e.log.Warn("stored item has no definition",
				zap.String("owner", owner.String()),
				zap.Uint32("item", ent.ItemID))
			res.Items = append(res.Items, WithdrawResult{
				ItemID:    ent.ItemID,
				Category:  ent.Category,
				Remaining: ent.Quantity,
				Err:       fmt.Errorf("%w: item %d", ErrItemDefinitionMissing, ent.ItemID),
			})
			continue
		}
		r, err := e.drain(ctx, owner, inv, ent, def, amountAll)
		if err != nil {
			r.Err = err
			res.Items = append(res.Items, r)
			return err
		}
		if r.Blocked {
			r.Err = ErrCapacityExceeded
		}
		res.Items = append(res.Items, r)
	}
	return nil
}
