// Package signal streams a client's session view over a WebSocket and takes
// renderer callbacks back.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Rana-X/nora/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

type SignalWSController struct {
	Registry     *app.Registry
	ReadLimit    int64
	PingPeriod   time.Duration
	MessageRate  float64
	MessageBurst int
}

func NewSignalWSController(reg *app.Registry, readLimit int64, pingPeriod time.Duration) *SignalWSController {
	return &SignalWSController{
		Registry:   reg,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

type WsSignalConn struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *MessageRateLimiter

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

// Finish stops accepting frames; writePump flushes what is queued and then
// closes the socket.
func (c *WsSignalConn) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal attaches the socket to the client's current session. Without
// a session there is nothing to stream.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := app.ClientID(c.GetString("client_token"))
	sess, ok := ctl.Registry.Get(sid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn:    ws,
		send:    make(chan []byte, 32),
		limiter: NewMessageRateLimiter(ctl.MessageRate, ctl.MessageBurst),
	}

	ctx, cancel := context.WithCancel(ctx)
	views, unwatch := sess.Watch()

	go ctl.writePump(ctx, conn)
	go ctl.forwardViews(ctx, conn, views)
	go func() {
		defer cancel()
		defer unwatch()
		ctl.readPump(ctx, sid, sess, conn)
	}()
}
