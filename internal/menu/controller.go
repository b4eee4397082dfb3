// Package menu turns player selections into bank operations and renders the
// storage menus. A Controller belongs to one session and is driven from that
// session's lane only: selections and completions arrive through Handle one
// at a time.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"reagentbank.io/internal/bank"
	"reagentbank.io/internal/ledger"
	"reagentbank.io/internal/nav"
)

var (
	ErrUnknownAction = errors.New("menu: unknown action")
	ErrBadParam      = errors.New("menu: bad parameter")
)

// Bank is the subset of the transfer engine the menus drive.
type Bank interface {
	Owner(account, character uint64) ledger.OwnerKey
	Stored(ctx context.Context, owner ledger.OwnerKey, itemID uint32) (uint32, error)
	DepositAsync(ctx context.Context, owner ledger.OwnerKey, inv bank.Inventory, cat ledger.Category, reply func(bank.DepositResult, error))
	ListAsync(ctx context.Context, owner ledger.OwnerKey, cat ledger.Category, locale string, reply func(bank.Listing, error))
	WithdrawOne(ctx context.Context, owner ledger.OwnerKey, inv bank.Inventory, itemID uint32) (bank.WithdrawResult, error)
	WithdrawStack(ctx context.Context, owner ledger.OwnerKey, inv bank.Inventory, itemID uint32) (bank.WithdrawResult, error)
	WithdrawAll(ctx context.Context, owner ledger.OwnerKey, inv bank.Inventory, itemID uint32) (bank.WithdrawResult, error)
	WithdrawCategory(ctx context.Context, owner ledger.OwnerKey, inv bank.Inventory, cat ledger.Category) (bank.SweepResult, error)
	WithdrawEverything(ctx context.Context, owner ledger.OwnerKey, inv bank.Inventory) (bank.SweepResult, error)
}

// Event is anything a Controller reacts to.
type Event interface{ event() }

// Selection is the player picking an option.
type Selection struct {
	Action Action
	Param  uint32
}

// ListingLoaded completes a category listing request. Seq identifies the
// request; only the newest one is rendered.
type ListingLoaded struct {
	Seq     uint64
	Listing bank.Listing
	Err     error
}

// DepositDone completes a deposit.
type DepositDone struct {
	Category ledger.Category
	Result   bank.DepositResult
	Err      error
}

func (Selection) event()     {}
func (ListingLoaded) event() {}
func (DepositDone) event()   {}

// Player identifies who the session belongs to.
type Player struct {
	Account   uint64
	Character uint64
	Locale    string
}

type Config struct {
	PageSize int
}

type Controller struct {
	bank     Bank
	catalog  bank.Catalog
	inv      bank.Inventory
	gw       Gateway
	post     func(Event)
	log      *zap.Logger
	pageSize int

	player Player
	owner  ledger.OwnerKey
	state  nav.State
	seq    uint64
	// Items in the last rendered category listing.
	listed int
}

// NewController wires a session. post must deliver events back to the same
// lane that calls Handle, and must not block.
func NewController(cfg Config, b Bank, cat bank.Catalog, inv bank.Inventory, gw Gateway, post func(Event), p Player, log *zap.Logger) *Controller {
	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		bank:     b,
		catalog:  cat,
		inv:      inv,
		gw:       gw,
		post:     post,
		log:      log.With(zap.String("component", "menu"), zap.Uint64("character", p.Character)),
		pageSize: cfg.PageSize,
		player:   p,
		owner:    b.Owner(p.Account, p.Character),
	}
}

func (c *Controller) Owner() ledger.OwnerKey { return c.owner }

// State is the current menu position, for parking on disconnect.
func (c *Controller) State() nav.State { return c.state }

// Open shows the menu at st, typically a parked position or the zero state.
func (c *Controller) Open(ctx context.Context, st nav.State) {
	c.state = st
	c.show(ctx)
}

// Handle applies one event. Errors are reserved for malformed selections;
// everything the player should know about is reported through the gateway.
func (c *Controller) Handle(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case Selection:
		return c.selected(ctx, ev)
	case ListingLoaded:
		c.listingLoaded(ev)
	case DepositDone:
		c.depositDone(ctx, ev)
	default:
		return fmt.Errorf("%w: event %T", ErrUnknownAction, ev)
	}
	return nil
}

func (c *Controller) selected(ctx context.Context, sel Selection) error {
	switch sel.Action {
	case ActionHeader:
		return nil
	case ActionMainMenu:
		c.state.Reset()
		c.renderMain()
	case ActionDepositAll:
		c.deposit(ctx, bank.AllCategories)
	case ActionDepositCategory:
		cat, err := categoryParam(sel.Param)
		if err != nil {
			return err
		}
		c.deposit(ctx, cat)
	case ActionWithdrawAll:
		res, err := c.bank.WithdrawEverything(ctx, c.owner, c.inv)
		c.reportSweep(res, err, "No reagents to withdraw.")
		c.state.Reset()
		c.gw.CloseMenu()
	case ActionWithdrawCategory:
		cat, err := categoryParam(sel.Param)
		if err != nil {
			return err
		}
		res, err := c.bank.WithdrawCategory(ctx, c.owner, c.inv, cat)
		c.reportSweep(res, err, "No reagents to withdraw in this category.")
		c.state.Reset()
		c.gw.CloseMenu()
	case ActionOpenCategory:
		cat, err := categoryParam(sel.Param)
		if err != nil {
			return err
		}
		c.state.OpenCategory(cat)
		c.requestListing(ctx)
	case ActionNextPage, ActionPrevPage:
		if c.state.View != nav.CategoryView {
			c.show(ctx)
			return nil
		}
		pages := nav.TotalPages(c.listed, c.pageSize)
		if sel.Action == ActionNextPage {
			c.state.NextPage(pages)
		} else {
			c.state.PrevPage(pages)
		}
		c.requestListing(ctx)
	case ActionOpenItem:
		if sel.Param == 0 {
			return fmt.Errorf("%w: item 0", ErrBadParam)
		}
		if _, ok := c.catalog.Lookup(sel.Param); !ok {
			c.state.Reset()
			c.renderMain()
			return nil
		}
		c.state.OpenItem(sel.Param)
		c.renderItem(ctx)
	case ActionWithdrawOne, ActionWithdrawStack, ActionWithdrawItemAll:
		if sel.Param == 0 {
			return fmt.Errorf("%w: item 0", ErrBadParam)
		}
		c.withdrawItem(ctx, sel.Action, sel.Param)
		c.state.AfterWithdraw()
		c.show(ctx)
	case ActionBack:
		c.state.Back()
		c.show(ctx)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownAction, sel.Action)
	}
	return nil
}

func categoryParam(p uint32) (ledger.Category, error) {
	cat := ledger.Category(p)
	if p > 255 || !cat.Valid() {
		return ledger.CategoryNone, fmt.Errorf("%w: category %d", ErrBadParam, p)
	}
	return cat, nil
}

// show renders whatever view the state points at.
func (c *Controller) show(ctx context.Context) {
	switch c.state.View {
	case nav.CategoryView:
		c.requestListing(ctx)
	case nav.ItemSubmenu:
		c.renderItem(ctx)
	default:
		c.renderMain()
	}
}

func (c *Controller) requestListing(ctx context.Context) {
	c.seq++
	seq := c.seq
	c.bank.ListAsync(ctx, c.owner, c.state.Category, c.player.Locale, func(l bank.Listing, err error) {
		c.post(ListingLoaded{Seq: seq, Listing: l, Err: err})
	})
}

func (c *Controller) listingLoaded(ev ListingLoaded) {
	if ev.Seq != c.seq || c.state.View != nav.CategoryView || ev.Listing.Category != c.state.Category {
		return
	}
	if ev.Err != nil {
		c.log.Error("load category listing", zap.String("category", c.state.Category.String()), zap.Error(ev.Err))
		c.gw.ReportMessage("Error: storage is unavailable, try again later.")
		c.state.Reset()
		c.renderMain()
		return
	}
	c.listed = len(ev.Listing.Items)
	page := nav.Paginate(c.listed, c.pageSize, c.state.Page)
	c.state.Page = page.Index
	c.renderCategory(ev.Listing, page)
}

func (c *Controller) deposit(ctx context.Context, cat ledger.Category) {
	c.bank.DepositAsync(ctx, c.owner, c.inv, cat, func(res bank.DepositResult, err error) {
		c.post(DepositDone{Category: cat, Result: res, Err: err})
	})
}

func (c *Controller) depositDone(ctx context.Context, ev DepositDone) {
	switch {
	case errors.Is(ev.Err, bank.ErrNothingToDeposit):
		if ev.Category == bank.AllCategories {
			c.gw.ReportMessage("No reagents to deposit.")
		} else {
			c.gw.ReportMessage("No reagents to deposit in this category.")
		}
	case ev.Err != nil:
		c.log.Error("deposit", zap.String("category", ev.Category.String()), zap.Error(ev.Err))
		c.gw.ReportMessage("Error: deposit failed, your reagents were not moved.")
	default:
		c.gw.ReportMessage("The following was deposited:")
		for _, it := range ev.Result.Items {
			c.gw.ReportMessage(strconv.FormatUint(uint64(it.Quantity), 10) + " " + c.itemName(it.ItemID))
		}
	}
	if ev.Category != bank.AllCategories && c.state.View == nav.CategoryView && c.state.Category == ev.Category {
		c.requestListing(ctx)
		return
	}
	if ev.Category == bank.AllCategories {
		c.state.Reset()
		c.gw.CloseMenu()
	}
}

func (c *Controller) withdrawItem(ctx context.Context, a Action, itemID uint32) {
	var (
		res bank.WithdrawResult
		err error
	)
	switch a {
	case ActionWithdrawOne:
		res, err = c.bank.WithdrawOne(ctx, c.owner, c.inv, itemID)
	case ActionWithdrawStack:
		res, err = c.bank.WithdrawStack(ctx, c.owner, c.inv, itemID)
	default:
		res, err = c.bank.WithdrawAll(ctx, c.owner, c.inv, itemID)
	}
	name := c.itemName(itemID)
	switch {
	case errors.Is(err, bank.ErrCapacityExceeded):
		c.gw.ReportMessage(fmt.Sprintf("Not enough bag space to withdraw %d x %s.", res.Shortfall, name))
	case errors.Is(err, bank.ErrNotStored):
		c.gw.ReportMessage("No reagents withdrawn.")
	case errors.Is(err, bank.ErrItemDefinitionMissing):
		c.gw.ReportMessage(fmt.Sprintf("Error: Item template not found for entry %d.", itemID))
	case err != nil:
		c.log.Error("withdraw", zap.Uint32("item", itemID), zap.String("action", a.String()), zap.Error(err))
		c.gw.ReportMessage("Error: withdrawal failed, try again later.")
	case res.Blocked:
		c.gw.ReportMessage(fmt.Sprintf("Bag full after withdrawing %d x %s (remaining %d).", res.Granted, name, res.Remaining))
	default:
		c.gw.ReportMessage(fmt.Sprintf("Withdrew %d x %s.", res.Granted, name))
	}
}

func (c *Controller) reportSweep(res bank.SweepResult, err error, empty string) {
	if err != nil {
		c.log.Error("withdraw sweep", zap.Error(err))
	}
	if len(res.Items) == 0 && err == nil {
		c.gw.ReportMessage(empty)
		return
	}
	for _, it := range res.Items {
		name := c.itemName(it.ItemID)
		if it.Granted > 0 {
			c.gw.ReportMessage(fmt.Sprintf("Withdrew %d x %s.", it.Granted, name))
		}
		switch {
		case it.Blocked:
			c.gw.ReportMessage(fmt.Sprintf("Not enough bag space to withdraw %d x %s.", it.Shortfall, name))
		case errors.Is(it.Err, bank.ErrItemDefinitionMissing):
			c.gw.ReportMessage(fmt.Sprintf("Error: Item template not found for entry %d.", it.ItemID))
		}
	}
	if err != nil {
		c.gw.ReportMessage("Error: withdrawal stopped, try again later.")
		return
	}
	if res.Granted() == 0 {
		c.gw.ReportMessage("No reagents withdrawn.")
	}
}

func (c *Controller) itemName(itemID uint32) string {
	if def, ok := c.catalog.Lookup(itemID); ok {
		return def.DisplayName(c.player.Locale)
	}
	return "Unknown"
}
