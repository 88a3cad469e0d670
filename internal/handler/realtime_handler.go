package handler

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/config"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/store"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RealtimeHandler streams change feed subscriptions over WebSocket.
type RealtimeHandler struct {
	store store.Store
	wsCfg config.WebSocketConfig
}

func NewRealtimeHandler(s store.Store, wsCfg config.WebSocketConfig) *RealtimeHandler {
	return &RealtimeHandler{store: s, wsCfg: wsCfg}
}

// RegisterRoutes registers the realtime endpoint.
func (h *RealtimeHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/realtime", h.Subscribe)
}

// Subscribe upgrades to a WebSocket that receives one JSON domain.Change per
// message, for changes committed after the upgrade completes.
//
//	GET /realtime?table=stream_chat&event=INSERT&filter=stream_id=eq.{id}
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	spec, err := feed.ParseSpec(c.Query("table"), c.Query("event"), c.Query("filter"))
	if err != nil {
		response.ValidationFailed(c, "subscription", err.Error())
		return
	}

	// Registered before the upgrade so nothing committed after the
	// handshake is missed.
	sub, err := h.store.Subscribe(ctx, spec)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			response.ValidationFailed(c, ve.Field, ve.Reason)
			return
		}
		l.Error().Err(err).Str(log.FieldTable, spec.Table).Msg("failed to subscribe")
		response.InternalError(c, "failed to subscribe")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newRealtimeClient(conn, sub, h.wsCfg, l.With().
		Str(log.FieldTable, spec.Table).
		Str(log.FieldFilter, spec.Filter.String()).
		Logger())

	go client.writePump()
	go client.readPump()
}

// realtimeClient pumps one subscription to one connection.
type realtimeClient struct {
	conn   *websocket.Conn
	sub    feed.Subscription
	config config.WebSocketConfig
	logger zerolog.Logger

	done     chan struct{}
	doneOnce sync.Once
}

func newRealtimeClient(conn *websocket.Conn, sub feed.Subscription, cfg config.WebSocketConfig, logger zerolog.Logger) *realtimeClient {
	return &realtimeClient{
		conn:   conn,
		sub:    sub,
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *realtimeClient) stop() {
	c.doneOnce.Do(func() { close(c.done) })
}

// readPump only handles control frames; clients send nothing else.
func (c *realtimeClient) readPump() {
	defer c.stop()

	if c.config.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.config.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

func (c *realtimeClient) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		c.conn.Close()
	}()

	for {
		select {
		case change, ok := <-c.sub.Changes():
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.closeWith(c.sub.Err())
				return
			}
			if err := c.conn.WriteJSON(change); err != nil {
				c.logger.Warn().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// closeWith tells the client why the feed ended.
func (c *realtimeClient) closeWith(err error) {
	code, reason := websocket.CloseNormalClosure, ""
	switch {
	case errors.Is(err, feed.ErrLagged):
		code, reason = websocket.CloseTryAgainLater, err.Error()
	case errors.Is(err, feed.ErrClosed):
		code, reason = websocket.CloseGoingAway, err.Error()
	}
	c.logger.Info().Err(err).Msg("closing realtime subscription")
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
