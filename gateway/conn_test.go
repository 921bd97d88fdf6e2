package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer upgrades every request, records the Authorization header and the
// first text frame, then writes frames from the returned channel.
type testServer struct {
	*httptest.Server
	auth     chan string
	received chan string
	send     chan func(*websocket.Conn)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		auth:     make(chan string, 1),
		received: make(chan string, 16),
		send:     make(chan func(*websocket.Conn), 16),
	}
	upgrader := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				ts.received <- string(data)
			}
		}()
		for fn := range ts.send {
			fn(conn)
		}
	}))
	t.Cleanup(func() {
		close(ts.send)
		ts.Close()
	})
	return ts
}

func text(s string) func(*websocket.Conn) {
	return func(c *websocket.Conn) { c.WriteMessage(websocket.TextMessage, []byte(s)) }
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	panic("unreachable")
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"https://chat.example.com", "wss://chat.example.com/ws"},
		{"http://localhost:3000", "ws://localhost:3000/ws"},
		{"http://localhost:3000/", "ws://localhost:3000/ws"},
		{"wss://chat.example.com", "wss://chat.example.com/ws"},
	}
	for _, tt := range tests {
		got, err := EndpointURL(tt.host)
		require.NoError(t, err, tt.host)
		assert.Equal(t, tt.want, got)
	}

	_, err := EndpointURL("ftp://example.com")
	assert.Error(t, err)
}

func TestLooksLikeJSON(t *testing.T) {
	assert.True(t, LooksLikeJSON(`{"name":"X"}`))
	assert.True(t, LooksLikeJSON(" [1,2] \n"))
	assert.False(t, LooksLikeJSON("hello"))
	assert.False(t, LooksLikeJSON("{"))
	assert.False(t, LooksLikeJSON(`{"a":1`))
	assert.False(t, LooksLikeJSON(""))
}

func TestOpenSendsGreetingAndAuth(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(ts.URL, "secret", nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	assert.Equal(t, "Bearer secret", receive(t, ts.auth))
	assert.Equal(t, "Connected: 2026-01-02T03:04:05Z", receive(t, ts.received))
	assert.True(t, c.IsOpen())

	assert.ErrorIs(t, c.Open(context.Background()), ErrAlreadyOpen)
}

func TestSendWritesEnvelope(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(ts.URL, "secret", nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()
	receive(t, ts.received) // greeting

	require.NoError(t, c.Send("VOICE_STATE_UPDATE", map[string]string{"channel_id": "v1"}))
	assert.JSONEq(t, `{"name":"VOICE_STATE_UPDATE","data":{"channel_id":"v1"}}`, receive(t, ts.received))
}

func TestFramesDispatchedInOrder(t *testing.T) {
	ts := newTestServer(t)

	got := make(chan Envelope, 8)
	c, err := New(ts.URL, "tok", func(env Envelope) { got <- env }, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	ts.send <- text(`{"name":"MESSAGE_CREATE","data":{"id":"m1"}}`)
	ts.send <- text("hello")
	ts.send <- text(`[1,2,3]`)
	ts.send <- text(`{"name":"MESSAGE_DELETE","data":{"id":"m1"}}`)

	first := receive(t, got)
	second := receive(t, got)
	assert.Equal(t, "MESSAGE_CREATE", first.Name)
	assert.JSONEq(t, `{"id":"m1"}`, string(first.Data))
	assert.Equal(t, "MESSAGE_DELETE", second.Name)

	select {
	case extra := <-got:
		t.Fatalf("unexpected envelope %q", extra.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCompressedFrames(t *testing.T) {
	ts := newTestServer(t)

	got := make(chan Envelope, 1)
	c, err := New(ts.URL, "tok", func(env Envelope) { got <- env },
		WithLogger(quietLogger()), WithCompression())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(c.URL(), "/ws?compress=zstd"))

	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	frame, err := Encode("CHANNEL_CREATE", map[string]string{"id": "c1"})
	require.NoError(t, err)
	ts.send <- func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.BinaryMessage, Compress(frame))
	}

	env := receive(t, got)
	assert.Equal(t, "CHANNEL_CREATE", env.Name)
}

func TestServerCloseEndsConnection(t *testing.T) {
	ts := newTestServer(t)

	c, err := New(ts.URL, "tok", nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))

	ts.send <- func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}

	receive(t, c.Done())
	assert.False(t, c.IsOpen())
	assert.ErrorIs(t, c.SendText("x"), ErrClosed)
}

func TestOpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "bad", nil, WithLogger(quietLogger()))
	require.NoError(t, err)

	err = c.Open(context.Background())
	require.Error(t, err)
	assert.False(t, c.IsOpen())
	receive(t, c.Done())
	assert.NoError(t, c.Close())
}

func TestCloseFromHandler(t *testing.T) {
	ts := newTestServer(t)

	var c *Conn
	took := make(chan time.Duration, 1)
	c, err := New(ts.URL, "tok", func(Envelope) {
		start := time.Now()
		assert.NoError(t, c.Close())
		took <- time.Since(start)
	}, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))

	ts.send <- text(`{"name":"MESSAGE_CREATE","data":{"id":"m1"}}`)

	assert.Less(t, receive(t, took), closeWait/2)
	receive(t, c.Done())
	assert.False(t, c.IsOpen())
}
