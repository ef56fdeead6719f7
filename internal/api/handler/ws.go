package handler

import (
	"net/http"

	"pairchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.originAllowed(r.Header.Get("Origin"))
		},
	}
}

// ServeWebSocket upgrades the request to the participant's live channel and
// hands it to the hub. A newer channel for the same participant replaces this one.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID := currentUserID(c)

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, userID, conn)
	select {
	case h.Hub.RegisterCh <- client:
	case <-c.Request.Context().Done():
		conn.Close()
		return
	}
	client.Run()
}
