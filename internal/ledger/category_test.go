package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		class    uint8
		subclass uint8
		maxStack uint32
		want     Category
		ok       bool
	}{
		{"cloth", ClassTradeGoods, uint8(CategoryCloth), 20, CategoryCloth, true},
		{"herb", ClassTradeGoods, uint8(CategoryHerb), 20, CategoryHerb, true},
		{"gem keeps jewelcrafting", ClassGem, 5, 20, CategoryJewelcrafting, true},
		{"gem subclass outside set", ClassGem, 99, 20, CategoryJewelcrafting, true},
		{"legacy trade goods", ClassTradeGoods, 0, 20, CategoryOtherTradeGoods, true},
		{"unknown trade goods subclass", ClassTradeGoods, 42, 20, CategoryNone, false},
		{"unique material", ClassTradeGoods, uint8(CategoryCloth), 1, CategoryNone, false},
		{"unique gem", ClassGem, 0, 1, CategoryNone, false},
		{"weapon", 2, 7, 20, CategoryNone, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Classify(tc.class, tc.subclass, tc.maxStack)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCategories_OrderAndLabels(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 15)
	require.Equal(t, CategoryCloth, cats[0])
	require.Equal(t, CategoryWeaponVellum, cats[len(cats)-1])

	seen := map[Category]bool{}
	for _, c := range cats {
		require.True(t, c.Valid(), "category %d", c)
		require.False(t, seen[c], "duplicate %s", c)
		seen[c] = true
	}

	require.Equal(t, "Metal & Stone", CategoryMetalStone.Label())
	require.Equal(t, "Reagents", CategoryNone.Label())
	require.False(t, CategoryNone.Valid())

	// Mutating the returned slice must not affect later calls.
	cats[0] = CategoryNone
	require.Equal(t, CategoryCloth, Categories()[0])
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("Cloth")
	require.NoError(t, err)
	require.Equal(t, CategoryCloth, c)

	c, err = ParseCategory("4")
	require.NoError(t, err)
	require.Equal(t, CategoryJewelcrafting, c)

	_, err = ParseCategory("0")
	require.Error(t, err)
	_, err = ParseCategory("spices")
	require.Error(t, err)
}

func TestKeyFor(t *testing.T) {
	shared := KeyFor(ModeShared, 7, 99)
	require.Equal(t, OwnerKey{Account: 7}, shared)
	require.True(t, shared.Valid())
	require.Equal(t, "account:7", shared.String())

	solo := KeyFor(ModeIndividual, 7, 99)
	require.Equal(t, OwnerKey{Character: 99}, solo)
	require.Equal(t, "character:99", solo.String())

	require.False(t, OwnerKey{}.Valid())
	require.False(t, OwnerKey{Account: 1, Character: 1}.Valid())
}
