package bank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"reagentbank.io/internal/inventory"
	"reagentbank.io/internal/lanes"
	"reagentbank.io/internal/ledger"
)

// AllCategories makes Deposit sweep every category.
const AllCategories = ledger.CategoryNone

type Deposited struct {
	ItemID   uint32
	Category ledger.Category
	Quantity uint32
}

type DepositResult struct {
	Owner    ledger.OwnerKey
	Category ledger.Category
	// Items is what left the bags, ordered by item id.
	Items []Deposited
}

func (r DepositResult) Total() uint64 {
	var n uint64
	for _, it := range r.Items {
		n += uint64(it.Quantity)
	}
	return n
}

// Deposit moves every eligible stack carried in inv into storage, or only
// those of one category. Totals are committed in a single batch before any
// stack leaves the bags.
func (e *Engine) Deposit(ctx context.Context, owner ledger.OwnerKey, inv Inventory, cat ledger.Category) (DepositResult, error) {
	if cat != AllCategories && !cat.Valid() {
		return DepositResult{}, fmt.Errorf("%w: %d", ledger.ErrInvalidCategory, cat)
	}
	ctx, span := e.startSpan(ctx, "bank.deposit", owner, attribute.String("reagentbank.category", cat.String()))
	var res DepositResult
	err := e.onLane(ctx, owner, func() error {
		var err error
		res, err = e.deposit(ctx, owner, inv, cat)
		return err
	})
	endSpan(span, err)
	return res, err
}

// DepositAsync queues a deposit on the owner's lane and hands the outcome to
// reply from that lane. The work is detached from ctx's cancellation: a
// player who disconnects mid-deposit still gets the items persisted.
func (e *Engine) DepositAsync(ctx context.Context, owner ledger.OwnerKey, inv Inventory, cat ledger.Category, reply func(DepositResult, error)) {
	if !owner.Valid() {
		reply(DepositResult{}, ledger.ErrInvalidOwner)
		return
	}
	if cat != AllCategories && !cat.Valid() {
		reply(DepositResult{}, fmt.Errorf("%w: %d", ledger.ErrInvalidCategory, cat))
		return
	}
	ctx = context.WithoutCancel(ctx)
	ok := e.lanes.Submit(owner.String(), func() {
		ctx, span := e.startSpan(ctx, "bank.deposit", owner, attribute.String("reagentbank.category", cat.String()))
		res, err := e.deposit(ctx, owner, inv, cat)
		endSpan(span, err)
		reply(res, err)
	})
	if !ok {
		reply(DepositResult{}, lanes.ErrClosed)
	}
}

func (e *Engine) deposit(ctx context.Context, owner ledger.OwnerKey, inv Inventory, cat ledger.Category) (DepositResult, error) {
	res := DepositResult{Owner: owner, Category: cat}

	existing, err := e.store.ScanAll(ctx, owner)
	if err != nil {
		return res, fmt.Errorf("scan ledger: %w", err)
	}
	stored := make(map[uint32]uint32, len(existing))
	for _, ent := range existing {
		stored[ent.ItemID] = ent.Quantity
	}

	// Stage: tally in memory, touch nothing yet.
	totals := map[uint32]ledger.Write{}
	staged := map[uint32]uint32{}
	var stacks []inventory.Stack
	for _, st := range inv.Carried() {
		def, ok := e.catalog.Lookup(st.ItemID)
		if !ok {
			continue
		}
		c, ok := def.Category()
		if !ok || (cat != AllCategories && c != cat) {
			continue
		}
		w, seen := totals[st.ItemID]
		if !seen {
			w = ledger.Write{ItemID: st.ItemID, Category: c, Quantity: stored[st.ItemID]}
		}
		if uint64(w.Quantity)+uint64(st.Count) > math.MaxUint32 {
			e.log.Warn("stored quantity would overflow; stack left in bags",
				zap.String("owner", owner.String()),
				zap.Uint32("item", st.ItemID))
			continue
		}
		w.Quantity += st.Count
		totals[st.ItemID] = w
		staged[st.ItemID] += st.Count
		stacks = append(stacks, st)
	}
	if len(stacks) == 0 {
		return res, ErrNothingToDeposit
	}

	// Commit: every total lands or none does.
	writes := sortedWrites(totals)
	if err := e.store.Apply(ctx, owner, writes); err != nil {
		return res, fmt.Errorf("commit deposit: %w", err)
	}
	for _, w := range writes {
		e.record(ctx, owner, ledger.OpDeposit, w, int64(staged[w.ItemID]))
	}

	// Remove: the ledger already counts these stacks.
	failed := map[uint32]uint32{}
	for _, st := range stacks {
		got, err := inv.RemoveCarried(st.Ref)
		if err == nil && got.ItemID == st.ItemID && got.Count == st.Count {
			continue
		}
		if err == nil {
			// The slot changed under us; put back what was taken.
			if _, gerr := inv.Grant(got.ItemID, got.Count); gerr != nil {
				e.log.Error("restore changed slot", zap.Uint32("item", got.ItemID), zap.Error(gerr))
			}
			err = fmt.Errorf("slot %d/%d changed", st.Ref.Bag, st.Ref.Slot)
		}
		e.log.Warn("remove deposited stack",
			zap.String("owner", owner.String()),
			zap.Uint32("item", st.ItemID),
			zap.Uint32("count", st.Count),
			zap.Error(err))
		failed[st.ItemID] += st.Count
	}
	if len(failed) > 0 {
		fix := make(map[uint32]ledger.Write, len(failed))
		for id, n := range failed {
			w := totals[id]
			w.Quantity -= n
			fix[id] = w
			staged[id] -= n
		}
		fixes := sortedWrites(fix)
		if err := e.store.Apply(ctx, owner, fixes); err != nil {
			return res, fmt.Errorf("compensate deposit: %w", err)
		}
		for _, w := range fixes {
			e.record(ctx, owner, ledger.OpCompensate, w, -int64(failed[w.ItemID]))
		}
	}

	for _, w := range writes {
		if n := staged[w.ItemID]; n > 0 {
			res.Items = append(res.Items, Deposited{ItemID: w.ItemID, Category: w.Category, Quantity: n})
		}
	}
	if len(res.Items) == 0 {
		return res, ErrNothingToDeposit
	}
	e.log.Info("deposit",
		zap.String("owner", owner.String()),
		zap.String("category", cat.String()),
		zap.Int("items", len(res.Items)),
		zap.Uint64("units", res.Total()))
	return res, nil
}

func sortedWrites(m map[uint32]ledger.Write) []ledger.Write {
	out := make([]ledger.Write, 0, len(m))
	for _, w := range m {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
