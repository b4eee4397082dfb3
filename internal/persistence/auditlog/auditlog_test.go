package auditlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reagentbank.io/internal/ledger"
)

func change(id string, at time.Time, delta int64) ledger.Change {
	return ledger.Change{
		ID:       id,
		At:       at,
		Owner:    ledger.OwnerKey{Character: 70},
		ItemID:   2589,
		Category: ledger.CategoryCloth,
		Op:       ledger.OpWithdraw,
		Delta:    delta,
		Quantity: 10,
	}
}

func TestWriter_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	ctx := context.Background()
	t0 := time.Date(2026, 5, 4, 10, 59, 0, 0, time.UTC)

	require.NoError(t, w.Record(ctx, change("a", t0, -1)))
	require.NoError(t, w.Record(ctx, change("b", t0.Add(30*time.Second), -2)))
	require.NoError(t, w.Record(ctx, change("c", t0.Add(2*time.Minute), -3)))
	require.NoError(t, w.Close())

	files, err := Files(dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "ledger-2026-05-04-10.jsonl.zst"),
		filepath.Join(dir, "ledger-2026-05-04-11.jsonl.zst"),
	}, files)

	first, err := ReadFile(files[0])
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "a", first[0].ID)
	require.Equal(t, int64(-2), first[1].Delta)

	second, err := ReadFile(files[1])
	require.NoError(t, err)
	require.Equal(t, []ledger.Change{change("c", t0.Add(2*time.Minute), -3)}, second)
}

func TestWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"1", "2"} {
		w := NewWriter(dir)
		require.NoError(t, w.Record(context.Background(), change(id, at, -1)))
		require.NoError(t, w.Close())
	}
	files, err := Files(dir)
	require.NoError(t, err)
	got, err := ReadFile(files[0])
	require.NoError(t, err)
	require.Len(t, got, 2)
}
