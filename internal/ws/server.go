package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chess-arena-server/internal/obslog"
	"github.com/park285/chess-arena-server/internal/session"
)

// Handler is the hub-facing boundary of the transport: one open, any number
// of messages, exactly one close per connection.
type Handler interface {
	OnConnectionOpen(p session.Peer)
	OnConnectionMessage(ctx context.Context, peerID string, raw []byte)
	OnConnectionClose(peerID string)
}

// Server upgrades HTTP requests to websocket connections and pumps inbound
// frames into the handler. One goroutine per connection does the reads; the
// handler decides everything else.
type Server struct {
	handler        Handler
	originPatterns []string
	sendTimeout    time.Duration
}

func NewServer(handler Handler, originPatterns []string, sendTimeout time.Duration) *Server {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Server{handler: handler, originPatterns: originPatterns, sendTimeout: sendTimeout}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	}
	if len(s.originPatterns) > 0 {
		opts.OriginPatterns = s.originPatterns
	} else {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	c := &Conn{id: uuid.NewString(), conn: conn, sendTimeout: s.sendTimeout}
	s.handler.OnConnectionOpen(c)
	s.readPump(r.Context(), c)
}

// readPump blocks until the connection dies, then reports the close exactly
// once. An abrupt disconnect and a clean close look the same to the handler.
func (s *Server) readPump(ctx context.Context, c *Conn) {
	defer func() {
		s.handler.OnConnectionClose(c.id)
		_ = c.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			obslog.L().Debug("ws_read_end", zap.String("conn_id", c.id), zap.Error(err))
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		s.handler.OnConnectionMessage(ctx, c.id, data)
	}
}
