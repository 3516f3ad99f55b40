package sink

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// WebSocket broadcasts results to every connected subscriber. A subscriber
// whose buffer is full misses the result instead of slowing the others.
type WebSocket struct {
	upgrader websocket.Upgrader
	logger   log.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient
	closed  bool
}

type wsClient struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time
	closeOnce   sync.Once
}

// NewWebSocket creates a sink with no subscribers.
func NewWebSocket(logger log.Logger) *WebSocket {
	return &WebSocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  log.With(logger, log.String("component", "websocket")),
		clients: make(map[string]*wsClient),
	}
}

// ServeHTTP upgrades the request and subscribes the connection.
func (s *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Err(err))
		return
	}

	c := &wsClient{
		id:          uuid.NewString(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		connectedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c.id] = c
	s.mu.Unlock()

	s.logger.Info("subscriber connected",
		log.String("client_id", c.id),
		log.String("remote_addr", r.RemoteAddr),
	)
	go s.writePump(c)
	go s.readPump(c)
}

// Clients returns the number of subscribers.
func (s *WebSocket) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Publish queues r for every subscriber without blocking.
func (s *WebSocket) Publish(ctx context.Context, r *domain.Result) error {
	b, err := Encode(r)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- b:
		default:
			s.logger.Debug("slow subscriber, result dropped",
				log.String("client_id", c.id),
				log.Uint64("seq", r.Seq),
			)
		}
	}
	return nil
}

// Close disconnects every subscriber.
func (s *WebSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, c := range s.clients {
		c.close()
		delete(s.clients, id)
	}
	return nil
}

func (s *WebSocket) remove(c *wsClient) {
	s.mu.Lock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		c.close()
	}
	s.mu.Unlock()
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump discards client messages and detects disconnects.
func (s *WebSocket) readPump(c *wsClient) {
	defer func() {
		s.remove(c)
		_ = c.conn.Close()
		s.logger.Info("subscriber disconnected",
			log.String("client_id", c.id),
			log.Duration("connected_for", time.Since(c.connectedAt)),
		)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("subscriber read failed", log.String("client_id", c.id), log.Err(err))
			}
			return
		}
	}
}

func (s *WebSocket) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.remove(c)
				return
			}
		}
	}
}
