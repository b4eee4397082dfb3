package menu

import "fmt"

// Action is what selecting a menu option does. Param carries the category,
// item id or page depending on the action.
type Action uint8

const (
	ActionHeader Action = iota
	ActionMainMenu
	ActionDepositAll
	ActionWithdrawAll
	ActionOpenCategory
	ActionNextPage
	ActionPrevPage
	ActionOpenItem
	ActionWithdrawOne
	ActionWithdrawStack
	ActionWithdrawItemAll
	ActionDepositCategory
	ActionWithdrawCategory
	ActionBack
)

var actionNames = [...]string{
	ActionHeader:           "header",
	ActionMainMenu:         "main_menu",
	ActionDepositAll:       "deposit_all",
	ActionWithdrawAll:      "withdraw_all",
	ActionOpenCategory:     "open_category",
	ActionNextPage:         "next_page",
	ActionPrevPage:         "prev_page",
	ActionOpenItem:         "open_item",
	ActionWithdrawOne:      "withdraw_one",
	ActionWithdrawStack:    "withdraw_stack",
	ActionWithdrawItemAll:  "withdraw_item_all",
	ActionDepositCategory:  "deposit_category",
	ActionWithdrawCategory: "withdraw_category",
	ActionBack:             "back",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

func ParseAction(s string) (Action, error) {
	for i, n := range actionNames {
		if n == s {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// ActionNames lists every wire name, in code order.
func ActionNames() []string {
	out := make([]string, len(actionNames))
	copy(out, actionNames[:])
	return out
}

// Option is one selectable line of a menu.
type Option struct {
	Label   string
	Action  Action
	Param   uint32
	Quality string
}

// Gateway is the session side that shows menus and messages to the player.
type Gateway interface {
	RenderMenu(opts []Option)
	ReportMessage(text string)
	CloseMenu()
}
