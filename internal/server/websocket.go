package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"spy-game/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// wsHub delivers room messages to connections. Every connection has its own
// buffered queue drained by a single writer, so messages reach a client in
// the order they were sent.
type wsHub struct {
	mu         sync.Mutex
	clients    map[string]*wsClient
	bufferSize int
}

func newWSHub(bufferSize int) *wsHub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &wsHub{
		clients:    make(map[string]*wsClient),
		bufferSize: bufferSize,
	}
}

func (h *wsHub) Add(conn *websocket.Conn) *wsClient {
	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.bufferSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	return client
}

func (h *wsHub) Remove(client *wsClient) {
	h.mu.Lock()
	if h.clients[client.id] == client {
		delete(h.clients, client.id)
	}
	h.mu.Unlock()
	client.close()
}

func (h *wsHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Send implements game.Notifier. It never blocks: a client whose queue is
// full is disconnected.
func (h *wsHub) Send(connID string, msg game.Message) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	h.mu.Unlock()
	if !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("event", msg.Type).Msg("marshal websocket message failed")
		return
	}
	select {
	case <-client.done:
	case client.send <- data:
	default:
		log.Warn().Str("conn_id", connID).Str("event", msg.Type).Msg("send buffer full, closing connection")
		h.Remove(client)
	}
}

func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := s.ws.Add(conn)
	log.Info().Str("conn_id", client.id).Str("remote", c.Request.RemoteAddr).Msg("websocket connected")
	go s.writeWS(client)
	go s.readWS(client)
}

func (s *Server) readWS(client *wsClient) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		roomID, closed := s.game.Disconnect(client.id)
		s.ws.Remove(client)
		log.Info().
			Str("conn_id", client.id).
			Str("room_id", roomID).
			Bool("room_closed", closed).
			Msg("websocket disconnected")
	}()

	conn := client.conn
	if s.cfg.WSMaxMessageBytes > 0 {
		conn.SetReadLimit(s.cfg.WSMaxMessageBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("conn_id", client.id).Msg("websocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(ctx, client.id, data)
	}
}

func (s *Server) writeWS(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.close()
	}()

	conn := client.conn
	for {
		select {
		case <-client.done:
			return
		case data := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("conn_id", client.id).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
