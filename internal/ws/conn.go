package ws

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Conn is one accepted client connection. It implements session.Peer. Writes
// are serialized under writeMu because wsjson.Write is not safe for
// concurrent use across goroutines.
type Conn struct {
	id   string
	conn *websocket.Conn

	writeMu     sync.Mutex
	sendTimeout time.Duration
}

func (c *Conn) ID() string { return c.id }

// Send writes one JSON text frame with a bounded deadline so a stalled
// client can never block session progress indefinitely.
func (c *Conn) Send(ctx context.Context, v any) error {
	dctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, c.sendTimeout)
		defer cancel()
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(dctx, c.conn, v)
}

// Close closes the underlying socket.
func (c *Conn) Close(code websocket.StatusCode, reason string) error {
	return c.conn.Close(code, reason)
}
