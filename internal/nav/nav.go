// Package nav tracks where a player is in the storage menus and computes the
// page window of a category listing.
package nav

import (
	"sort"
	"strings"

	"reagentbank.io/internal/ledger"
)

type View uint8

const (
	MainMenu View = iota
	CategoryView
	ItemSubmenu
)

func (v View) String() string {
	switch v {
	case CategoryView:
		return "category"
	case ItemSubmenu:
		return "item"
	default:
		return "main"
	}
}

// State is one session's menu position. The zero value is the main menu.
type State struct {
	View     View            `json:"view"`
	Category ledger.Category `json:"category"`
	Page     int             `json:"page"`
	ItemID   uint32          `json:"item_id,omitempty"`
	// Where ItemSubmenu goes back to.
	ReturnCategory ledger.Category `json:"return_category,omitempty"`
	ReturnPage     int             `json:"return_page,omitempty"`
}

func (s *State) Reset() { *s = State{} }

func (s *State) OpenCategory(c ledger.Category) {
	*s = State{View: CategoryView, Category: c}
}

// NextPage and PrevPage move within [0, totalPages-1].
func (s *State) NextPage(totalPages int) {
	s.Page = clamp(s.Page+1, totalPages)
}

func (s *State) PrevPage(totalPages int) {
	s.Page = clamp(s.Page-1, totalPages)
}

// OpenItem enters an item's submenu, remembering the page it was picked from.
func (s *State) OpenItem(itemID uint32) {
	ret, page := s.Category, s.Page
	if s.View == ItemSubmenu {
		ret, page = s.ReturnCategory, s.ReturnPage
	}
	*s = State{
		View:           ItemSubmenu,
		Category:       ret,
		Page:           page,
		ItemID:         itemID,
		ReturnCategory: ret,
		ReturnPage:     page,
	}
}

// Back leaves the current view: item submenus return to their page, category
// views to the main menu.
func (s *State) Back() {
	switch s.View {
	case ItemSubmenu:
		s.returnToCategory()
	default:
		s.Reset()
	}
}

// AfterWithdraw is the transition after a transfer from an item submenu:
// back to the page the item was picked from, or the main menu when there is
// no category to return to.
func (s *State) AfterWithdraw() {
	if s.View == ItemSubmenu {
		s.returnToCategory()
		return
	}
	s.Reset()
}

func (s *State) returnToCategory() {
	if !s.ReturnCategory.Valid() {
		s.Reset()
		return
	}
	*s = State{View: CategoryView, Category: s.ReturnCategory, Page: s.ReturnPage}
}

// Page is the window of a listing shown on one screen. Items [Start, End)
// are displayed.
type Page struct {
	Index   int
	Total   int
	Start   int
	End     int
	HasPrev bool
	HasNext bool
}

// Paginate clamps page into range and returns its window. There is always
// at least one page, even for an empty listing.
func Paginate(totalItems, pageSize, page int) Page {
	if pageSize < 1 {
		pageSize = 1
	}
	if totalItems < 0 {
		totalItems = 0
	}
	pages := max(1, (totalItems+pageSize-1)/pageSize)
	idx := clamp(page, pages)
	start := min(idx*pageSize, totalItems)
	return Page{
		Index:   idx,
		Total:   pages,
		Start:   start,
		End:     min(totalItems, (idx+1)*pageSize),
		HasPrev: idx > 0,
		HasNext: idx < pages-1,
	}
}

// TotalPages is Paginate(totalItems, pageSize, 0).Total.
func TotalPages(totalItems, pageSize int) int {
	return Paginate(totalItems, pageSize, 0).Total
}

func clamp(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page >= totalPages {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}
	return page
}

// SortItems orders items by case-insensitive name, ties by item id.
func SortItems[T any](items []T, key func(T) (string, uint32)) {
	sort.SliceStable(items, func(i, j int) bool {
		ni, ii := key(items[i])
		nj, ij := key(items[j])
		li, lj := strings.ToLower(ni), strings.ToLower(nj)
		if li != lj {
			return li < lj
		}
		return ii < ij
	})
}
