package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clk-66/spectrus-go/gateway"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	voiceCheckWait = 5 * time.Second
)

// Client is a single active WebSocket connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	compress  bool
	UserID    string
	SessionID string
}

func newClient(hub *Hub, conn *websocket.Conn, userID, sessionID string, compress bool) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		compress:  compress,
		UserID:    userID,
		SessionID: sessionID,
	}
}

// queue hands a frame to the write pump without blocking. It reports false
// when the buffer is full.
func (c *Client) queue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("ws read error", "user_id", c.UserID, "err", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			mt := websocket.TextMessage
			if c.compress {
				mt, frame = websocket.BinaryMessage, gateway.Compress(frame)
			}
			if err := c.conn.WriteMessage(mt, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage runs on the readPump goroutine. Clients also send plain
// diagnostic text (connect and disconnect notices); that is only logged.
func (c *Client) handleMessage(raw []byte) {
	if !gateway.LooksLikeJSON(string(raw)) {
		c.hub.logger.Debug("ws diagnostic", "user_id", c.UserID, "text", string(raw))
		return
	}
	env, err := gateway.Decode(raw)
	if err != nil {
		c.hub.logger.Warn("ws bad message", "user_id", c.UserID, "err", err)
		return
	}

	switch env.Name {
	case EventVoiceStateUpdate:
		c.handleVoiceStateUpdate(env.Data)
	default:
		c.hub.logger.Debug("ws unknown op", "name", env.Name, "user_id", c.UserID)
	}
}

// handleVoiceStateUpdate joins, switches or leaves a voice channel:
//
//	{"name":"VOICE_STATE_UPDATE","data":{"channel_id":"<id>","self_mute":false}}
//	{"name":"VOICE_STATE_UPDATE","data":{"channel_id":null}}
func (c *Client) handleVoiceStateUpdate(raw json.RawMessage) {
	var st VoiceState
	if err := json.Unmarshal(raw, &st); err != nil {
		c.hub.logger.Warn("ws bad voice state", "user_id", c.UserID, "err", err)
		return
	}
	h := c.hub
	st.UserID = c.UserID
	st.SessionID = c.SessionID
	st.GuildID = h.guildID()

	if st.ChannelID == nil || *st.ChannelID == "" {
		if _, was := h.LeaveVoice(c.UserID); !was {
			return
		}
		st.ChannelID = nil
		if err := h.Broadcast(EventVoiceStateUpdate, st); err != nil {
			h.logger.Warn("voice state broadcast failed", "err", err)
		}
		return
	}

	if h.check != nil {
		ctx, cancel := context.WithTimeout(context.Background(), voiceCheckWait)
		err := h.check(ctx, c.UserID, *st.ChannelID)
		cancel()
		if err != nil {
			h.logger.Warn("voice join rejected", "user_id", c.UserID, "channel_id", *st.ChannelID, "err", err)
			return
		}
	}

	if prev := h.JoinVoice(st); prev != "" && prev != *st.ChannelID {
		h.logger.Debug("voice channel switch", "user_id", c.UserID, "from", prev, "to", *st.ChannelID)
	}
	if err := h.Broadcast(EventVoiceStateUpdate, st); err != nil {
		h.logger.Warn("voice state broadcast failed", "err", err)
	}
}
