package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/GateWayConnection/meds-healthcare-sub000/internal/app"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/config"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/core"
	"github.com/GateWayConnection/meds-healthcare-sub000/internal/domain"
)

// Controller exposes the signaling hub over websocket connections.
type Controller struct {
	Hub     *app.SignalingHub
	cfg     *config.Config
	limiter *SendRateLimiter
}

func NewController(hub *app.SignalingHub, cfg *config.Config) *Controller {
	return &Controller{
		Hub:     hub,
		cfg:     cfg,
		limiter: NewSendRateLimiter(cfg.SendRateLimit, cfg.SendRateInterval),
	}
}

// clientConn is one live websocket with a buffered outbound queue.
// The user identity is bound by the join_user event, not the handshake.
type clientConn struct {
	id   core.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
	userID domain.UserID
}

func (c *clientConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *clientConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *clientConn) user() domain.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *clientConn) bindUser(u domain.UserID) {
	c.mu.Lock()
	c.userID = u
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection's pumps until
// the peer goes away or the server shuts down.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &clientConn{
		id:   core.ConnID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
		ctl.Hub.Registry.Deregister(conn.id)
		conn.Close()
	}()
}

// handle is the ConnectionHandle for this connection once a user joined.
func (ctl *Controller) handle(conn *clientConn, u domain.UserID) *core.ConnectionHandle {
	return &core.ConnectionHandle{
		ID:          conn.id,
		UserID:      u,
		ConnectedAt: time.Now(),
		Conn:        conn,
	}
}
