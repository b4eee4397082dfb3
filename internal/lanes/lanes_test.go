package lanes

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroup_SameKeyRunsInOrder(t *testing.T) {
	g := NewGroup()
	defer g.Close()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		i := i
		wg.Add(1)
		require.True(t, g.Submit("owner", func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	wg.Wait()
	require.Len(t, got, 200)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestGroup_SameKeyNeverOverlaps(t *testing.T) {
	g := NewGroup()
	defer g.Close()

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), "k", func() error {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxRunning.Load())
}

func TestGroup_DifferentKeysRunConcurrently(t *testing.T) {
	g := NewGroup()
	defer g.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	g.Submit("a", func() {
		close(started)
		<-release
	})
	<-started

	// "b" must not wait behind the blocked "a".
	done := make(chan struct{})
	g.Submit("b", func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("lane b blocked behind lane a")
	}
	close(release)
}

func TestGroup_DoSkipsCancelledWork(t *testing.T) {
	g := NewGroup()
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := g.Do(ctx, "k", func() error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ran)
}

func TestGroup_CloseDrainsAndRejects(t *testing.T) {
	g := NewGroup()
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		g.Submit("k", func() {
			time.Sleep(time.Millisecond)
			n.Add(1)
		})
	}
	g.Close()
	require.Equal(t, int32(10), n.Load())
	require.Equal(t, 0, g.Active())
	require.False(t, g.Submit("k", func() {}))
	require.ErrorIs(t, g.Do(context.Background(), "k", func() error { return nil }), ErrClosed)
}
