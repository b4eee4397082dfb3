package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"reagentbank.io/internal/menu"
	"reagentbank.io/internal/nav"
	"reagentbank.io/internal/protocol"
)

type session struct {
	id        string
	character uint64
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
	out       chan []byte
	box       *mailbox
	limiter   *rate.Limiter
	ctl       *menu.Controller
	initial   nav.State
	log       *zap.Logger
}

// run drives the controller until the session ends.
func (s *session) run() {
	s.ctl.Open(s.ctx, s.initial)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.box.ready:
			for _, ev := range s.box.drain() {
				if s.ctx.Err() != nil {
					return
				}
				if err := s.ctl.Handle(s.ctx, ev); err != nil {
					code := protocol.ErrBadRequest
					if errors.Is(err, menu.ErrBadParam) {
						code = protocol.ErrInvalidTarget
					}
					s.sendError(code, err.Error())
				}
			}
		}
	}
}

func (s *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode frame", zap.Error(err))
		return
	}
	select {
	case s.out <- b:
	case <-s.ctx.Done():
	}
}

func (s *session) sendError(code, text string) {
	s.send(protocol.NewError(code, text))
}

func (s *session) RenderMenu(opts []menu.Option) {
	wire := make([]protocol.MenuOption, len(opts))
	for i, o := range opts {
		wire[i] = protocol.MenuOption{Label: o.Label, Action: o.Action.String(), Param: o.Param, Quality: o.Quality}
	}
	s.send(protocol.NewMenu(wire))
}

func (s *session) ReportMessage(text string) { s.send(protocol.NewMessage(text)) }

func (s *session) CloseMenu() { s.send(protocol.NewClose()) }

// mailbox is an unbounded event queue. Post never blocks, so bank lanes can
// deliver completions without waiting on a busy session.
type mailbox struct {
	mu    sync.Mutex
	q     []menu.Event
	ready chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) Post(ev menu.Event) {
	m.mu.Lock()
	m.q = append(m.q, ev)
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []menu.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.q
	m.q = nil
	return q
}
