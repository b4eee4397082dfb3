package ledgerdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"reagentbank.io/internal/ledger"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index", "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PointOperations(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	owner := ledger.OwnerKey{Account: 42}

	_, ok, err := s.Get(ctx, owner, 2589)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Upsert(ctx, ledger.Entry{Owner: owner, ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 60}))
	require.NoError(t, s.Upsert(ctx, ledger.Entry{Owner: owner, ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 25}))

	e, ok, err := s.Get(ctx, owner, 2589)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ledger.Entry{Owner: owner, ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 25}, e)

	require.ErrorIs(t, s.Upsert(ctx, ledger.Entry{Owner: owner, ItemID: 2589, Category: ledger.CategoryCloth}), ledger.ErrZeroQuantity)

	require.NoError(t, s.Delete(ctx, owner, 2589))
	require.NoError(t, s.Delete(ctx, owner, 2589))
	_, ok, err = s.Get(ctx, owner, 2589)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_OwnerKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	acct := ledger.OwnerKey{Account: 7}
	char := ledger.OwnerKey{Character: 7}

	require.NoError(t, s.Upsert(ctx, ledger.Entry{Owner: acct, ItemID: 2453, Category: ledger.CategoryHerb, Quantity: 3}))
	require.NoError(t, s.Upsert(ctx, ledger.Entry{Owner: char, ItemID: 2453, Category: ledger.CategoryHerb, Quantity: 9}))

	a, _, err := s.Get(ctx, acct, 2453)
	require.NoError(t, err)
	c, _, err := s.Get(ctx, char, 2453)
	require.NoError(t, err)
	require.Equal(t, uint32(3), a.Quantity)
	require.Equal(t, uint32(9), c.Quantity)
}

func TestStore_ApplyIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	owner := ledger.OwnerKey{Character: 11}

	require.NoError(t, s.Apply(ctx, owner, []ledger.Write{
		{ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 40},
		{ItemID: 2453, Category: ledger.CategoryHerb, Quantity: 12},
	}))

	// The second row violates the category check, so the first must not land either.
	err := s.Apply(ctx, owner, []ledger.Write{
		{ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 99},
		{ItemID: 1, Category: ledger.Category(77), Quantity: 1},
	})
	require.Error(t, err)

	e, ok, err := s.Get(ctx, owner, 2589)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(40), e.Quantity)

	require.NoError(t, s.Apply(ctx, owner, []ledger.Write{{ItemID: 2453, Category: ledger.CategoryHerb, Quantity: 0}}))
	herbs, err := s.ScanCategory(ctx, owner, ledger.CategoryHerb)
	require.NoError(t, err)
	require.Empty(t, herbs)
}

func TestStore_ScansAndStats(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	a := ledger.OwnerKey{Account: 1}
	b := ledger.OwnerKey{Account: 2}

	require.NoError(t, s.Apply(ctx, a, []ledger.Write{
		{ItemID: 2592, Category: ledger.CategoryCloth, Quantity: 5},
		{ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 40},
		{ItemID: 2772, Category: ledger.CategoryMetalStone, Quantity: 8},
	}))
	require.NoError(t, s.Apply(ctx, b, []ledger.Write{{ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 1}}))

	cloth, err := s.ScanCategory(ctx, a, ledger.CategoryCloth)
	require.NoError(t, err)
	require.Len(t, cloth, 2)
	require.Equal(t, uint32(2589), cloth[0].ItemID)
	require.Equal(t, uint32(2592), cloth[1].ItemID)

	all, err := s.ScanAll(ctx, a)
	require.NoError(t, err)
	require.Len(t, all, 3)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Owners: 2, Rows: 4, Quantity: 54}, st)
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	owner := ledger.OwnerKey{Character: 3}

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, ledger.Entry{Owner: owner, ItemID: 2589, Category: ledger.CategoryCloth, Quantity: 7}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	e, ok, err := s.Get(ctx, owner, 2589)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(7), e.Quantity)
}
