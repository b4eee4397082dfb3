package nav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reagentbank.io/internal/ledger"
)

func TestPaginate(t *testing.T) {
	cases := []struct {
		name              string
		total, size, page int
		want              Page
	}{
		{"empty", 0, 10, 0, Page{Index: 0, Total: 1, Start: 0, End: 0}},
		{"exactly one page", 10, 10, 0, Page{Index: 0, Total: 1, Start: 0, End: 10}},
		{"one over", 11, 10, 0, Page{Index: 0, Total: 2, Start: 0, End: 10, HasNext: true}},
		{"last partial", 11, 10, 1, Page{Index: 1, Total: 2, Start: 10, End: 11, HasPrev: true}},
		{"clamped high", 25, 10, 9, Page{Index: 2, Total: 3, Start: 20, End: 25, HasPrev: true}},
		{"clamped low", 25, 10, -3, Page{Index: 0, Total: 3, Start: 0, End: 10, HasNext: true}},
		{"bad size", 3, 0, 1, Page{Index: 1, Total: 3, Start: 1, End: 2, HasPrev: true, HasNext: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Paginate(tc.total, tc.size, tc.page))
		})
	}
	require.Equal(t, 1, TotalPages(0, 10))
}

func TestStateTransitions(t *testing.T) {
	var s State
	require.Equal(t, MainMenu, s.View)

	s.OpenCategory(ledger.CategoryHerb)
	require.Equal(t, State{View: CategoryView, Category: ledger.CategoryHerb}, s)

	s.NextPage(3)
	s.NextPage(3)
	s.NextPage(3)
	require.Equal(t, 2, s.Page)
	s.PrevPage(3)
	require.Equal(t, 1, s.Page)

	s.OpenItem(785)
	require.Equal(t, ItemSubmenu, s.View)
	require.Equal(t, ledger.CategoryHerb, s.ReturnCategory)
	require.Equal(t, 1, s.ReturnPage)

	s.Back()
	require.Equal(t, State{View: CategoryView, Category: ledger.CategoryHerb, Page: 1}, s)

	s.Back()
	require.Equal(t, State{}, s)
}

func TestAfterWithdraw(t *testing.T) {
	var s State
	s.OpenCategory(ledger.CategoryCloth)
	s.NextPage(2)
	s.OpenItem(2589)
	s.AfterWithdraw()
	require.Equal(t, State{View: CategoryView, Category: ledger.CategoryCloth, Page: 1}, s)

	s = State{View: ItemSubmenu, ItemID: 2589}
	s.AfterWithdraw()
	require.Equal(t, MainMenu, s.View)
}

func TestSortItems(t *testing.T) {
	type row struct {
		name string
		id   uint32
	}
	rows := []row{{"copper Ore", 2770}, {"Bolt", 9}, {"Copper ore", 12}, {"bolt", 3}}
	SortItems(rows, func(r row) (string, uint32) { return r.name, r.id })
	require.Equal(t, []row{{"bolt", 3}, {"Bolt", 9}, {"Copper ore", 12}, {"copper Ore", 2770}}, rows)
}

func TestResume(t *testing.T) {
	r := NewResume(time.Minute)
	st := State{View: CategoryView, Category: ledger.CategoryLeather, Page: 2}
	r.Park(70, st)
	r.Park(71, State{})
	require.Equal(t, 1, r.Len())

	got, ok := r.Take(70)
	require.True(t, ok)
	require.Equal(t, st, got)
	_, ok = r.Take(70)
	require.False(t, ok)
}
