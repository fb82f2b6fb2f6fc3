package wsjsonrpc

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/protocol"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type RequestHandler func(context.Context, protocol.Request) protocol.Response

type SubscribeFunc func() (<-chan protocol.Notification, func())

// conn serialises writes; gorilla allows a single concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// Handler upgrades to a websocket carrying one JSON-RPC message per frame.
// Every connection also receives the notifications from subscribe.
func Handler(handle RequestHandler, subscribe SubscribeFunc, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		c := &conn{ws: ws}
		defer ws.Close()

		notes, unsubscribe := subscribe()
		defer unsubscribe()
		go func() {
			for n := range notes {
				if err := c.write(n); err != nil {
					return
				}
			}
		}()

		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("websocket read", zap.Error(err))
				}
				return
			}
			req, perr := protocol.ParseRequest(payload)
			if perr != nil {
				if err := c.write(protocol.ErrorResponse(protocol.NullID, perr)); err != nil {
					return
				}
				continue
			}
			resp := handle(r.Context(), req)
			if req.IsNotification() {
				continue
			}
			if err := c.write(resp); err != nil {
				return
			}
		}
	}
}
