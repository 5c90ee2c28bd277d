package gateway

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
)

const streamWriteTimeout = 5 * time.Second

type streamClient struct {
	conn   *websocket.Conn
	userID int64 // 0 receives every user's events
	mu     sync.Mutex
}

func (c *streamClient) write(ctx context.Context, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, payload)
}

// handleWS implements GET /ws?user_id=N. It pushes every progression event
// (quest completed, xp awarded, level up, quests reset) as a JSON text frame,
// optionally filtered to one user. Client frames are ignored.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Bus == nil {
		writeMessage(w, http.StatusServiceUnavailable, "event stream not available: event bus not configured")
		return
	}
	var userID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeMessage(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = id
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Same-origin requests are always allowed by the websocket library.
		OriginPatterns: s.cfg.AllowOrigins,
	})
	if err != nil {
		s.logger.Warn("ws: accept failed", "error", err)
		return
	}
	c := &streamClient{conn: conn, userID: userID}

	// Subscribe before announcing the client so no event published after
	// the client is visible can be missed.
	sub := s.cfg.Bus.Subscribe(bus.TopicProgress)
	s.addClient(r.Context(), c)
	s.logger.Info("ws: client connected", "user_id", userID)
	defer func() {
		s.cfg.Bus.Unsubscribe(sub)
		s.removeClient(context.Background(), c)
		s.logger.Info("ws: client disconnected", "user_id", userID)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Ch():
			if !ok {
				return
			}
			payload, ok := ev.Payload.(domain.Event)
			if !ok {
				continue
			}
			if userID != 0 && payload.UserID != userID {
				continue
			}
			if err := c.write(ctx, payload); err != nil {
				s.logger.Debug("ws: write failed", "topic", ev.Topic, "error", err)
				return
			}
		}
	}
}

func (s *Server) addClient(ctx context.Context, c *streamClient) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.StreamClients.Add(ctx, 1)
	}
}

func (s *Server) removeClient(ctx context.Context, c *streamClient) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.StreamClients.Add(ctx, -1)
	}
}

func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// StreamClients reports the connected /ws clients.
func (s *Server) StreamClients() int { return s.clientCount() }
