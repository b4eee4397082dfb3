package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpsertOverwritesAndDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := OwnerKey{Character: 1}

	require.NoError(t, s.Upsert(ctx, Entry{Owner: owner, ItemID: 2589, Category: CategoryCloth, Quantity: 10}))
	require.NoError(t, s.Upsert(ctx, Entry{Owner: owner, ItemID: 2589, Category: CategoryCloth, Quantity: 3}))

	e, ok, err := s.Get(ctx, owner, 2589)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(3), e.Quantity)

	require.ErrorIs(t, s.Upsert(ctx, Entry{Owner: owner, ItemID: 2589, Category: CategoryCloth}), ErrZeroQuantity)
	require.ErrorIs(t, s.Upsert(ctx, Entry{Owner: owner, ItemID: 1, Category: CategoryNone, Quantity: 1}), ErrInvalidCategory)

	require.NoError(t, s.Delete(ctx, owner, 2589))
	require.NoError(t, s.Delete(ctx, owner, 2589))
	_, ok, err = s.Get(ctx, owner, 2589)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore_ScansArePartitionedByOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := OwnerKey{Account: 1}
	b := OwnerKey{Character: 1}

	require.NoError(t, s.Apply(ctx, a, []Write{
		{ItemID: 2589, Category: CategoryCloth, Quantity: 40},
		{ItemID: 2592, Category: CategoryCloth, Quantity: 5},
		{ItemID: 2453, Category: CategoryHerb, Quantity: 7},
	}))
	require.NoError(t, s.Upsert(ctx, Entry{Owner: b, ItemID: 2589, Category: CategoryCloth, Quantity: 1}))

	cloth, err := s.ScanCategory(ctx, a, CategoryCloth)
	require.NoError(t, err)
	require.Len(t, cloth, 2)
	require.Equal(t, uint32(2589), cloth[0].ItemID)

	all, err := s.ScanAll(ctx, a)
	require.NoError(t, err)
	require.Len(t, all, 3)

	other, err := s.ScanAll(ctx, b)
	require.NoError(t, err)
	require.Len(t, other, 1)
	require.Equal(t, uint32(1), other[0].Quantity)
}

func TestMemoryStore_ApplyRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := OwnerKey{Character: 5}

	err := s.Apply(ctx, owner, []Write{
		{ItemID: 2589, Category: CategoryCloth, Quantity: 40},
		{ItemID: 1, Category: Category(200), Quantity: 1},
	})
	require.ErrorIs(t, err, ErrInvalidCategory)

	all, err := s.ScanAll(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, all)

	require.ErrorIs(t, s.Apply(ctx, OwnerKey{}, nil), ErrInvalidOwner)
}

func TestMemoryStore_ApplyZeroDeletes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	owner := OwnerKey{Character: 5}

	require.NoError(t, s.Upsert(ctx, Entry{Owner: owner, ItemID: 2589, Category: CategoryCloth, Quantity: 4}))
	require.NoError(t, s.Apply(ctx, owner, []Write{{ItemID: 2589, Category: CategoryCloth, Quantity: 0}}))

	_, ok, err := s.Get(ctx, owner, 2589)
	require.NoError(t, err)
	require.False(t, ok)
}
