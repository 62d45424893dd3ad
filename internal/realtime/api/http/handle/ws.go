package handle

import (
	"net/http"
	"time"

	"deliveryhub/internal/realtime/app/core"
	"deliveryhub/internal/realtime/app/services"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub      *services.Hub
	auth     *httpx.Authenticator
	upgrader websocket.Upgrader
	mylog    logger.Logger
}

func NewWSHandler(hub *services.Hub, auth *httpx.Authenticator, mylog logger.Logger) *WSHandler {
	return &WSHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// browsers connect from the app origin; the token authenticates, not cookies
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mylog: mylog,
	}
}

// Connect upgrades GET /ws. The token comes from ?token= or the Authorization header.
func (h *WSHandler) Connect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mylog := h.mylog.Action("ws_connect")

		id, ok := httpx.IdentityFrom(r.Context())
		if !ok {
			token := r.URL.Query().Get("token")
			if token == "" {
				httpx.JSONError(w, http.StatusUnauthorized, xerrors.ErrUnauthorized)
				return
			}
			var err error
			if id, err = h.auth.Parse(token); err != nil {
				httpx.JSONError(w, http.StatusUnauthorized, xerrors.ErrUnauthorized)
				return
			}
		}

		client, err := h.hub.Register(id)
		if err != nil {
			httpx.JSONError(w, http.StatusServiceUnavailable, err)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader already answered
			h.hub.Unregister(client)
			mylog.Debug("upgrade failed", "err", err.Error())
			return
		}

		go h.writePump(conn, client)
		go h.readPump(conn, client)
	}
}

func (h *WSHandler) readPump(conn *websocket.Conn, c *services.Client) {
	defer func() {
		h.hub.Unregister(c)
		c.Close(websocket.CloseNormalClosure, "")
		conn.Close()
	}()

	conn.SetReadLimit(core.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(core.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(core.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.mylog.Action("ws_read").Debug("connection dropped", "client_id", c.ID, "err", err.Error())
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(core.PongWait))
		h.hub.HandleMessage(c, raw)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, c *services.Client) {
	ticker := time.NewTicker(core.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case b := <-c.Send():
			conn.SetWriteDeadline(time.Now().Add(core.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(core.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.Done():
			code, reason := c.CloseInfo()
			if code != websocket.CloseAbnormalClosure {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(core.WriteWait))
			}
			return
		}
	}
}
