// Package lanes runs work sequentially per key. Work for one key never
// overlaps; work for different keys runs in parallel.
package lanes

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("lanes: group closed")

type lane struct {
	queue []func()
}

// Group owns one goroutine per busy key. A lane's goroutine exits once its
// queue drains, so idle keys cost nothing.
type Group struct {
	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

func NewGroup() *Group {
	return &Group{lanes: map[string]*lane{}}
}

// Submit queues fn behind everything already queued for key. It reports
// false if the group is closed.
func (g *Group) Submit(key string, fn func()) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	if l, ok := g.lanes[key]; ok {
		l.queue = append(l.queue, fn)
		g.mu.Unlock()
		return true
	}
	l := &lane{}
	g.lanes[key] = l
	g.wg.Add(1)
	g.mu.Unlock()

	go g.run(key, l, fn)
	return true
}

func (g *Group) run(key string, l *lane, fn func()) {
	defer g.wg.Done()
	for {
		fn()

		g.mu.Lock()
		if len(l.queue) == 0 {
			delete(g.lanes, key)
			g.mu.Unlock()
			return
		}
		fn = l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		g.mu.Unlock()
	}
}

// Do runs fn on key's lane and waits for it. If ctx is already done when fn's
// turn comes, fn is skipped and ctx.Err() returned; once started, fn always
// runs to completion.
func (g *Group) Do(ctx context.Context, key string, fn func() error) error {
	done := make(chan error, 1)
	ok := g.Submit(key, func() {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- fn()
	})
	if !ok {
		return ErrClosed
	}
	return <-done
}

// Active is the number of keys with queued or running work.
func (g *Group) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lanes)
}

// Close rejects new work and waits for queued work to finish.
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}
