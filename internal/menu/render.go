package menu

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reagentbank.io/internal/bank"
	"reagentbank.io/internal/ledger"
	"reagentbank.io/internal/nav"
)

func (c *Controller) renderMain() {
	opts := []Option{
		{Label: "Deposit All Reagents", Action: ActionDepositAll},
		{Label: "Withdraw All Reagents", Action: ActionWithdrawAll},
	}
	for _, cat := range ledger.Categories() {
		opts = append(opts, Option{Label: cat.Label(), Action: ActionOpenCategory, Param: uint32(cat)})
	}
	c.gw.RenderMenu(opts)
}

func (c *Controller) renderCategory(l bank.Listing, page nav.Page) {
	cat := uint32(l.Category)
	opts := []Option{
		{Label: fmt.Sprintf("%s: %d types, %d total", l.Category.Label(), len(l.Items), l.TotalQuantity), Action: ActionHeader},
		{Label: "Deposit All", Action: ActionDepositCategory, Param: cat},
		{Label: "Withdraw All", Action: ActionWithdrawCategory, Param: cat},
	}
	if page.HasNext {
		opts = append(opts, Option{
			Label:  fmt.Sprintf("Next Page (%d/%d)", page.Index+2, page.Total),
			Action: ActionNextPage,
			Param:  uint32(page.Index + 1),
		})
	}
	if page.HasPrev {
		opts = append(opts, Option{
			Label:  fmt.Sprintf("Previous Page (%d/%d)", page.Index, page.Total),
			Action: ActionPrevPage,
			Param:  uint32(page.Index - 1),
		})
	}
	for _, it := range l.Items[page.Start:page.End] {
		o := Option{Label: fmt.Sprintf("%s x %d", it.Name, it.Quantity), Action: ActionOpenItem, Param: it.ItemID}
		if it.Known {
			o.Quality = it.Quality.String()
		}
		opts = append(opts, o)
	}
	opts = append(opts, Option{Label: "Back to Categories", Action: ActionMainMenu})
	c.gw.RenderMenu(opts)
}

func (c *Controller) renderItem(ctx context.Context) {
	id := c.state.ItemID
	stored, err := c.bank.Stored(ctx, c.owner, id)
	if err != nil {
		c.log.Error("read stored quantity", zap.Uint32("item", id), zap.Error(err))
		c.gw.ReportMessage("Error: storage is unavailable, try again later.")
		c.state.Reset()
		c.renderMain()
		return
	}
	def, known := c.catalog.Lookup(id)
	name, quality := "Unknown", ""
	if known {
		name, quality = def.DisplayName(c.player.Locale), def.Quality.String()
	}
	opts := []Option{{Label: fmt.Sprintf("%s Stored: %d", name, stored), Action: ActionHeader, Quality: quality}}
	if stored > 0 {
		opts = append(opts, Option{Label: "Withdraw 1", Action: ActionWithdrawOne, Param: id})
	}
	if stored > 1 && known && def.MaxStack > 1 {
		opts = append(opts, Option{Label: "Withdraw Stack", Action: ActionWithdrawStack, Param: id})
	}
	if stored > 0 {
		opts = append(opts, Option{Label: "Withdraw All", Action: ActionWithdrawItemAll, Param: id})
	}
	opts = append(opts, Option{Label: "Back", Action: ActionBack})
	c.gw.RenderMenu(opts)
}
