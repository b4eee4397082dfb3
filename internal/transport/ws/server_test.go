package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"reagentbank.io/internal/bank"
	"reagentbank.io/internal/catalog"
	"reagentbank.io/internal/inventory"
	"reagentbank.io/internal/ledger"
	"reagentbank.io/internal/nav"
	"reagentbank.io/internal/protocol"
)

const linen uint32 = 2589

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cat, err := catalog.New([]catalog.Item{
		{ID: linen, Name: "Linen Cloth", Class: 7, Subclass: 5, MaxStack: 20},
	})
	require.NoError(t, err)
	eng := bank.New(bank.Config{}, ledger.NewMemoryStore(), cat)
	roster := inventory.NewRoster(cat, inventory.Layout{BackpackSlots: 8, StarterItems: map[uint32]uint32{linen: 40}})
	v, err := protocol.NewValidator()
	require.NoError(t, err)

	srv := NewServer(Config{PageSize: 5, SelectsPerSec: 100, Burst: 100}, eng, cat, roster, nav.NewResume(time.Minute), v, nil)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
		eng.Close()
	})
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, url string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

func (c *client) hello(character uint64) {
	c.send(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AccountID: 1, CharacterID: character})
}

func (c *client) sel(action string, param uint32) {
	c.send(protocol.SelectMsg{Type: protocol.TypeSelect, ProtocolVersion: protocol.Version, Action: action, Param: param})
}

// next reads one frame and decodes it into v, returning its type.
func (c *client) next(v any) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	base, err := protocol.DecodeBase(msg)
	require.NoError(c.t, err)
	if v != nil {
		require.NoError(c.t, json.Unmarshal(msg, v))
	}
	return base.Type
}

func (c *client) menu() protocol.MenuMsg {
	c.t.Helper()
	var m protocol.MenuMsg
	require.Equal(c.t, protocol.TypeMenu, c.next(&m))
	return m
}

func TestSession_HelloDepositAndBrowse(t *testing.T) {
	_, url := newTestServer(t)
	c := dial(t, url)
	c.hello(70)

	var w protocol.WelcomeMsg
	require.Equal(t, protocol.TypeWelcome, c.next(&w))
	require.NotEmpty(t, w.SessionID)
	require.Equal(t, "character", w.OwnerMode)
	require.Equal(t, 5, w.PageSize)
	require.False(t, w.Resumed)
	require.Equal(t, 1, w.ItemCount)

	m := c.menu()
	require.Equal(t, "Deposit All Reagents", m.Options[0].Label)
	require.Equal(t, "deposit_all", m.Options[0].Action)

	c.sel("deposit_all", 0)
	var msg protocol.MessageMsg
	require.Equal(t, protocol.TypeMessage, c.next(&msg))
	require.Equal(t, "The following was deposited:", msg.Text)
	require.Equal(t, protocol.TypeMessage, c.next(&msg))
	require.Equal(t, "40 Linen Cloth", msg.Text)
	require.Equal(t, protocol.TypeClose, c.next(nil))

	c.sel("open_category", uint32(ledger.CategoryCloth))
	m = c.menu()
	require.Equal(t, "Cloth: 1 types, 40 total", m.Options[0].Label)
	require.Equal(t, "Linen Cloth x 40", m.Options[3].Label)
	require.Equal(t, "open_item", m.Options[3].Action)
}

func TestSession_Errors(t *testing.T) {
	_, url := newTestServer(t)
	c := dial(t, url)
	c.hello(71)
	c.next(nil)
	c.menu()

	var e protocol.ErrorMsg
	c.sel("open_category", 99)
	require.Equal(t, protocol.TypeError, c.next(&e))
	require.Equal(t, protocol.ErrInvalidTarget, e.Code)

	c.sel("dance", 0)
	require.Equal(t, protocol.TypeError, c.next(&e))
	require.Equal(t, protocol.ErrProtoBadRequest, e.Code)

	c.send(map[string]any{"type": "SELECT", "protocol_version": "0.1", "action": "back"})
	require.Equal(t, protocol.TypeError, c.next(&e))
	require.Equal(t, protocol.ErrProtoVersion, e.Code)
}

func TestHandshake_RejectsSecondSessionForCharacter(t *testing.T) {
	_, url := newTestServer(t)
	first := dial(t, url)
	first.hello(72)
	first.next(nil)

	second := dial(t, url)
	second.hello(72)
	var e protocol.ErrorMsg
	require.Equal(t, protocol.TypeError, second.next(&e))
	require.Equal(t, protocol.ErrConflict, e.Code)
}

func TestHandshake_RejectsBadHello(t *testing.T) {
	_, url := newTestServer(t)
	c := dial(t, url)
	c.send(map[string]any{"type": "HELLO", "protocol_version": protocol.Version, "account_id": 1})
	var e protocol.ErrorMsg
	require.Equal(t, protocol.TypeError, c.next(&e))
	require.Equal(t, protocol.ErrProtoBadRequest, e.Code)
}

func TestReconnectResumesMenuPosition(t *testing.T) {
	srv, url := newTestServer(t)
	c := dial(t, url)
	c.hello(73)
	c.next(nil)
	c.menu()
	c.sel("open_category", uint32(ledger.CategoryHerb))
	c.menu()
	require.NoError(t, c.conn.Close())
	require.Eventually(t, func() bool { return srv.Sessions() == 0 }, 3*time.Second, 10*time.Millisecond)

	again := dial(t, url)
	again.hello(73)
	var w protocol.WelcomeMsg
	require.Equal(t, protocol.TypeWelcome, again.next(&w))
	require.True(t, w.Resumed)
	require.Equal(t, "Herb: 0 types, 0 total", again.menu().Options[0].Label)
}
