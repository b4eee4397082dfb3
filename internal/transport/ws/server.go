package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"reagentbank.io/internal/catalog"
	"reagentbank.io/internal/inventory"
	"reagentbank.io/internal/ledger"
	"reagentbank.io/internal/menu"
	"reagentbank.io/internal/nav"
	"reagentbank.io/internal/protocol"
)

type Config struct {
	PageSize      int
	Mode          ledger.Mode
	SelectsPerSec float64
	Burst         int
}

type Server struct {
	cfg       Config
	bank      menu.Bank
	catalog   *catalog.Catalog
	roster    *inventory.Roster
	resume    *nav.Resume
	validator *protocol.Validator
	log       *zap.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[uint64]*session
	closed   bool
	wg       sync.WaitGroup
}

func NewServer(cfg Config, b menu.Bank, cat *catalog.Catalog, roster *inventory.Roster, resume *nav.Resume, v *protocol.Validator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Server{
		cfg:       cfg,
		bank:      b,
		catalog:   cat,
		roster:    roster,
		resume:    resume,
		validator: v,
		log:       logger.With(zap.String("component", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[uint64]*session{},
	}
}

// Sessions is the number of connected characters.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close disconnects every session and waits for their lanes to stop.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for _, sess := range s.sessions {
		sess.cancel()
		_ = sess.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		defer s.release(sess)
		log := sess.log

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-sess.ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						sess.cancel()
						return
					}
				}
			}
		}()

		// Session lane: the only goroutine touching the controller.
		laneDone := make(chan struct{})
		go func() {
			defer close(laneDone)
			sess.run()
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				sess.sendError(protocol.ErrProtoBadRequest, "malformed frame")
				continue
			}
			if base.Type != protocol.TypeSelect {
				sess.sendError(protocol.ErrProtoBadRequest, "expected SELECT")
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				sess.sendError(protocol.ErrProtoVersion, "bad protocol_version")
				continue
			}
			if err := s.validator.Validate(protocol.TypeSelect, msg); err != nil {
				sess.sendError(protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			var sel protocol.SelectMsg
			if err := json.Unmarshal(msg, &sel); err != nil {
				sess.sendError(protocol.ErrProtoBadRequest, "malformed SELECT")
				continue
			}
			if !sess.limiter.Allow() {
				sess.sendError(protocol.ErrRateLimit, "too many selections")
				continue
			}
			action, err := menu.ParseAction(sel.Action)
			if err != nil {
				sess.sendError(protocol.ErrBadRequest, err.Error())
				continue
			}
			sess.box.Post(menu.Selection{Action: action, Param: sel.Param})
		}

		// Cleanup.
		sess.cancel()
		<-laneDone
		s.resume.Park(sess.character, sess.ctl.State())
		log.Info("session closed")
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	reject := func(code, text string) *session {
		_ = writeJSON(conn, protocol.NewError(code, text))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, text), time.Now().Add(time.Second))
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return reject(protocol.ErrProtoBadRequest, "expected HELLO")
	}
	if base.ProtocolVersion != protocol.Version {
		return reject(protocol.ErrProtoVersion, "bad protocol_version")
	}
	if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
		return reject(protocol.ErrProtoBadRequest, err.Error())
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return reject(protocol.ErrProtoBadRequest, "malformed HELLO")
	}

	sess := s.newSession(conn, hello)
	if !s.claim(sess) {
		sess.cancel()
		return reject(protocol.ErrConflict, "character already connected")
	}

	parked, resumed := s.resume.Take(hello.CharacterID)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		OwnerMode:       s.cfg.Mode.String(),
		PageSize:        s.cfg.PageSize,
		Resumed:         resumed,
		CatalogDigest:   s.catalog.Digest,
		ItemCount:       s.catalog.Len(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.release(sess)
		return nil
	}
	sess.initial = parked
	_ = conn.SetReadDeadline(time.Time{})
	sess.log.Info("session opened", zap.Bool("resumed", resumed), zap.String("locale", hello.Locale))
	return sess
}

func (s *Server) newSession(conn *websocket.Conn, hello protocol.HelloMsg) *session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	sess := &session{
		id:        id,
		character: hello.CharacterID,
		conn:      conn,
		ctx:       ctx,
		cancel:    cancel,
		out:       make(chan []byte, 64),
		box:       newMailbox(),
		limiter:   rate.NewLimiter(rate.Limit(s.cfg.SelectsPerSec), s.cfg.Burst),
		log: s.log.With(
			zap.String("session", id),
			zap.Uint64("account", hello.AccountID),
			zap.Uint64("character", hello.CharacterID)),
	}
	player := menu.Player{Account: hello.AccountID, Character: hello.CharacterID, Locale: strings.TrimSpace(hello.Locale)}
	sess.ctl = menu.NewController(
		menu.Config{PageSize: s.cfg.PageSize},
		s.bank, s.catalog, s.roster.Bags(hello.CharacterID),
		sess, sess.box.Post, player, s.log)
	return sess
}

func (s *Server) claim(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, busy := s.sessions[sess.character]; busy {
		return false
	}
	s.sessions[sess.character] = sess
	s.wg.Add(1)
	return true
}

func (s *Server) release(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.character]; ok && cur == sess {
		delete(s.sessions, sess.character)
		s.wg.Done()
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
