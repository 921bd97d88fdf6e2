package hub

import (
	"context"
	"errors"
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

	"github.com/clk-66/spectrus-go/gateway"
)

func startHub(t *testing.T, opts ...Option) (*Hub, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	h := New("", func() string { return "g1" }, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, r.URL.Query().Get("uid"))
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, h *Hub, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	uid := strings.TrimPrefix(strings.Split(query, "&")[0], "uid=")
	require.Eventually(t, func() bool { return h.Connected(uid) }, 5*time.Second, 10*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) gateway.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	if mt == websocket.BinaryMessage {
		data, err = gateway.Decompress(data)
		require.NoError(t, err)
	}
	env, err := gateway.Decode(data)
	require.NoError(t, err)
	return env
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	h, srv := startHub(t)
	a := dial(t, h, srv, "uid=a")
	b := dial(t, h, srv, "uid=b")

	require.NoError(t, h.Broadcast(EventChannelCreate, map[string]string{"id": "c1"}))

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, EventChannelCreate, env.Name)
		assert.JSONEq(t, `{"id":"c1"}`, string(env.Data))
	}
}

func TestCompressedClientGetsBinaryFrames(t *testing.T) {
	h, srv := startHub(t)
	conn := dial(t, h, srv, "uid=a&compress=zstd")

	require.NoError(t, h.Broadcast(EventGuildUpdate, map[string]string{"name": "g"}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	plain, err := gateway.Decompress(data)
	require.NoError(t, err)
	assert.Contains(t, string(plain), EventGuildUpdate)
}

func TestVoiceJoinAndDisconnect(t *testing.T) {
	h, srv := startHub(t)
	watcher := dial(t, h, srv, "uid=watcher")
	speaker := dial(t, h, srv, "uid=speaker")

	require.NoError(t, speaker.WriteMessage(websocket.TextMessage, []byte("Connected: now")))
	require.NoError(t, speaker.WriteMessage(websocket.TextMessage,
		[]byte(`{"name":"VOICE_STATE_UPDATE","data":{"channel_id":"v1","self_mute":true}}`)))

	env := readEnvelope(t, watcher)
	assert.Equal(t, EventVoiceStateUpdate, env.Name)
	assert.Contains(t, string(env.Data), `"channel_id":"v1"`)
	assert.Contains(t, string(env.Data), `"guild_id":"g1"`)
	assert.Contains(t, string(env.Data), `"self_mute":true`)

	ch, ok := h.VoiceChannelOf("speaker")
	require.True(t, ok)
	assert.Equal(t, "v1", ch)
	assert.Equal(t, []string{"speaker"}, h.VoiceMembers("v1"))

	speaker.Close()
	env = readEnvelope(t, watcher)
	assert.Equal(t, EventVoiceStateUpdate, env.Name)
	assert.Contains(t, string(env.Data), `"channel_id":null`)
	assert.Contains(t, string(env.Data), `"user_id":"speaker"`)

	_, ok = h.VoiceChannelOf("speaker")
	assert.False(t, ok)
}

func TestVoiceCheckRejectsJoin(t *testing.T) {
	h, srv := startHub(t, WithVoiceCheck(func(ctx context.Context, userID, channelID string) error {
		if channelID != "voice" {
			return errors.New("not a voice channel")
		}
		return nil
	}))
	conn := dial(t, h, srv, "uid=a")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"name":"VOICE_STATE_UPDATE","data":{"channel_id":"text"}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"name":"VOICE_STATE_UPDATE","data":{"channel_id":"voice"}}`)))

	env := readEnvelope(t, conn)
	assert.Contains(t, string(env.Data), `"channel_id":"voice"`)
}

func TestBroadcastAfterStop(t *testing.T) {
	h := New("", func() string { return "" })
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.ErrorIs(t, h.Broadcast(EventGuildUpdate, nil), ErrStopped)
}

func TestCheckOrigin(t *testing.T) {
	check := makeCheckOrigin("chat.example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	assert.True(t, check(req("")))
	assert.True(t, check(req("https://chat.example.com")))
	assert.True(t, check(req("http://localhost:5173")))
	assert.False(t, check(req("https://evil.example.net")))
}
