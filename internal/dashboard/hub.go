package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 50 * time.Second

	// Maximum request size allowed from peer.
	maxMessageSize = 1 << 20

	sendBuffer = 64
)

// Events pushed to every connected dashboard.
const (
	EventFreshProjectStatus = "freshProjectStatus"
	EventInitProjectStatus  = "initProjectStatus"
	EventChangeFile         = "changeFile"
)

// Request is a message sent by the browser. ID correlates the reply.
type Request struct {
	ID    int64           `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Reply answers a Request.
type Reply struct {
	ID      int64       `json:"id"`
	Event   string      `json:"event"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// Push is a server initiated message.
type Push struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ChangedFile is the payload of changeFile.
type ChangedFile struct {
	Path        string `json:"path"`
	FileContent string `json:"fileContent"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	cancel context.CancelFunc
}

func (s *Server) runHub(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.clientsMutex.Lock()
			for c := range s.clients {
				delete(s.clients, c)
				c.cancel()
			}
			s.clientsMutex.Unlock()
			return

		case c := <-s.register:
			s.clientsMutex.Lock()
			s.clients[c] = struct{}{}
			count := len(s.clients)
			s.clientsMutex.Unlock()
			s.logger.Debug(ctx, "Dashboard client connected", "clients", count)

		case c := <-s.unregister:
			s.clientsMutex.Lock()
			delete(s.clients, c)
			count := len(s.clients)
			s.clientsMutex.Unlock()
			s.logger.Debug(ctx, "Dashboard client disconnected", "clients", count)

		case message := <-s.broadcast:
			var slow []*client
			s.clientsMutex.RLock()
			for c := range s.clients {
				select {
				case c.send <- message:
				default:
					slow = append(slow, c)
				}
			}
			s.clientsMutex.RUnlock()

			if len(slow) > 0 {
				s.clientsMutex.Lock()
				for _, c := range slow {
					delete(s.clients, c)
					c.cancel()
				}
				s.clientsMutex.Unlock()
			}
		}
	}
}

// readPump answers requests from the browser until the connection closes.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var req Request
		if err := wsjson.Read(ctx, c.conn, &req); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.server.logger.Debug(ctx, "Dashboard read failed", "error", err)
			}
			return
		}

		reply := c.server.answer(ctx, req)
		raw, err := json.Marshal(reply)
		if err != nil {
			raw, _ = json.Marshal(Reply{ID: req.ID, Event: req.Event, Data: err.Error()})
		}

		select {
		case c.send <- raw:
		case <-ctx.Done():
			return
		}
	}
}

// writePump is the only writer of the connection.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) answer(ctx context.Context, req Request) (reply Reply) {
	reply = Reply{ID: req.ID, Event: req.Event}

	h, ok := s.listeners.Get(req.Event)
	if !ok {
		reply.Data = fmt.Sprintf("unknown event %q", req.Event)
		return reply
	}

	defer func() {
		if r := recover(); r != nil {
			reply.Success = false
			reply.Data = fmt.Sprintf("%s panicked: %v", req.Event, r)
		}
	}()

	data, err := h(ctx, req.Data)
	if err != nil {
		s.logger.Warn(ctx, err, "Socket listener failed", "event", req.Event)
		reply.Data = err.Error()
		return reply
	}

	reply.Success = true
	reply.Data = data
	return reply
}
