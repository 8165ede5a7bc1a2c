package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/timvw/command-center/internal/events"
	"github.com/timvw/command-center/internal/model"
)

// Message types exchanged over /ws besides the hub topics.
const (
	TypeInit           = "init"
	TypeSessionInput   = "session:input"
	TypeTerminalAttach = "terminal:attach"
	TypeTerminalDetach = "terminal:detach"
	TypeTerminalData   = "terminal:data"
	TypeTerminalError  = "terminal:error"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeError          = "error"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = maxBodyBytes
	wsSendBuffer     = 256

	// TerminalLines is how much scrollback an attached terminal streams.
	TerminalLines = 200
	// TerminalInterval is the attached terminal refresh period.
	TerminalInterval = 500 * time.Millisecond
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// InitPayload is the snapshot sent to every new connection.
type InitPayload struct {
	Sessions      []model.Session       `json:"sessions"`
	Notifications []events.Notification `json:"notifications"`
	Projects      []model.Project       `json:"projects"`
}

// ClientMessage is a message received from a connection.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SessionRef names a session in client messages.
type SessionRef struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text,omitempty"`
}

// TerminalData is the payload of TypeTerminalData.
type TerminalData struct {
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	srv  *Server
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	detach context.CancelFunc
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger().Warn("websocket upgrade failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsClient{
		id:     uuid.NewString()[:8],
		conn:   conn,
		srv:    s,
		send:   make(chan []byte, wsSendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	sub := s.Events.Subscribe(wsSendBuffer)
	s.logger().Debug("websocket connected", "client", c.id)

	projects, _ := s.catalog()
	sessions := s.Sessions.ListAll(ctx)
	if sessions == nil {
		sessions = []model.Session{}
	}
	c.push(TypeInit, InitPayload{
		Sessions:      sessions,
		Notifications: s.Events.History(),
		Projects:      projects,
	})

	go c.relay(sub)
	go c.writePump()
	c.readPump()

	c.stopTerminal()
	cancel()
	sub.Close()
	s.logger().Debug("websocket disconnected", "client", c.id)
}

// relay forwards hub messages until the subscription or the client ends.
func (c *wsClient) relay(sub *events.Subscription) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			b, err := json.Marshal(msg)
			if err != nil {
				c.srv.logger().Warn("marshal push message", "topic", msg.Topic, "err", err)
				continue
			}
			c.enqueue(b)
		}
	}
}

func (c *wsClient) push(typ string, data any) {
	b, err := json.Marshal(events.Message{Topic: typ, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		c.srv.logger().Warn("marshal ws message", "type", typ, "err", err)
		return
	}
	c.enqueue(b)
}

// enqueue never blocks. A slow client misses messages.
func (c *wsClient) enqueue(b []byte) {
	select {
	case <-c.ctx.Done():
	case c.send <- b:
	default:
		c.srv.logger().Debug("websocket send buffer full, dropping", "client", c.id)
	}
}

func (c *wsClient) readPump() {
	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.srv.logger().Debug("websocket read error", "client", c.id, "err", err)
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.push(TypeError, map[string]string{"message": "invalid message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *wsClient) handle(msg ClientMessage) {
	switch msg.Type {
	case TypePing:
		c.push(TypePong, nil)
	case TypeSessionInput:
		var ref SessionRef
		if err := json.Unmarshal(msg.Data, &ref); err != nil || ref.SessionID == "" {
			c.push(TypeError, map[string]string{"message": "session:input needs sessionId and text"})
			return
		}
		if err := c.srv.Sessions.SendInput(c.ctx, ref.SessionID, ref.Text); err != nil {
			c.srv.logger().Debug("ws input failed", "id", ref.SessionID, "err", err)
		}
	case TypeTerminalAttach:
		var ref SessionRef
		if err := json.Unmarshal(msg.Data, &ref); err != nil || ref.SessionID == "" {
			c.push(TypeTerminalError, map[string]string{"error": "sessionId is required"})
			return
		}
		if _, err := c.srv.Sessions.Get(ref.SessionID); err != nil {
			c.push(TypeTerminalError, map[string]string{"error": "Session not found"})
			return
		}
		c.startTerminal(ref.SessionID)
	case TypeTerminalDetach:
		c.stopTerminal()
	default:
		c.push(TypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// startTerminal streams captures of one session, replacing any previous
// attachment on this connection.
func (c *wsClient) startTerminal(id string) {
	ctx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	if c.detach != nil {
		c.detach()
	}
	c.detach = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(TerminalInterval)
		defer ticker.Stop()
		for {
			out, err := c.srv.Sessions.Capture(ctx, id, TerminalLines)
			if err != nil {
				if ctx.Err() == nil {
					c.push(TypeTerminalError, map[string]string{"error": err.Error()})
				}
				return
			}
			c.push(TypeTerminalData, TerminalData{SessionID: id, Data: out})
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (c *wsClient) stopTerminal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
}
