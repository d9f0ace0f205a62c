package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/songduel/go/internal/events"
	"github.com/mcdev12/songduel/go/internal/models"
)

type testGateway struct {
	service *Service
	server  *httptest.Server
	clock   *clockwork.FakeClock
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	fc := clockwork.NewFakeClock()
	svc := NewService(DefaultConfig(), fc, nil)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return &testGateway{service: svc, server: srv, clock: fc}
}

type frame struct {
	Type events.Type     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (g *testGateway) dial(t *testing.T) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/match"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(typ ActionType, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := c.conn.WriteJSON(ClientMessage{Type: typ, Data: raw}); err != nil {
		c.t.Fatalf("write %s: %v", typ, err)
	}
}

func (c *testClient) sendRaw(raw string) {
	c.t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		c.t.Fatalf("write raw frame: %v", err)
	}
}

func (c *testClient) next() frame {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := c.conn.ReadJSON(&f); err != nil {
		c.t.Fatalf("read frame: %v", err)
	}
	return f
}

// expect reads the next frame, requires its type and decodes its data into v
func (c *testClient) expect(typ events.Type, v any) {
	c.t.Helper()
	f := c.next()
	if f.Type != typ {
		c.t.Fatalf("got %s frame %s, want %s", f.Type, f.Data, typ)
	}
	if v != nil {
		if err := json.Unmarshal(f.Data, v); err != nil {
			c.t.Fatalf("decode %s: %v", typ, err)
		}
	}
}

// expectSilence fails if a frame arrives within d
func (c *testClient) expectSilence(d time.Duration) {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(d))
	var f frame
	if err := c.conn.ReadJSON(&f); err == nil {
		c.t.Fatalf("unexpected %s frame %s", f.Type, f.Data)
	}
}

// pair creates a session and joins it, returning host and guest with their
// player ids.
func (g *testGateway) pair(t *testing.T) (host, guest *testClient, hostID, guestID, code string) {
	t.Helper()
	host = g.dial(t)
	guest = g.dial(t)

	host.send(ActionCreateSession, CreateSessionRequest{Name: "Hana"})
	var created events.SessionCreatedPayload
	host.expect(events.TypeSessionCreated, &created)

	guest.send(ActionJoinSession, JoinSessionRequest{Code: created.Code, Name: "Gus"})
	var joined events.SessionJoinedPayload
	guest.expect(events.TypeSessionJoined, &joined)
	host.expect(events.TypePlayerJoined, nil)

	return host, guest, created.Player.ID, joined.Guest.ID, created.Code
}

func testTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			ID:     "trk-" + string(rune('a'+i)),
			Title:  "Title " + string(rune('A'+i)),
			Artist: "Artist",
		}
	}
	return tracks
}

// serverConn returns the server side of the connection seated as playerID
func (g *testGateway) serverConn(t *testing.T, playerID string) *Connection {
	t.Helper()
	cm := g.service.connectionManager
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for conn := range cm.connections {
		if conn.PlayerID == playerID {
			return conn
		}
	}
	t.Fatalf("no connection for player %s", playerID)
	return nil
}
