package handler

import (
	"net/http"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/messaging"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler holds the services behind the HTTP and WebSocket endpoints.
type Handler struct {
	Hub      *chathub.ManagerService
	Messages *messaging.Service
	Tokens   *auth.TokenManager

	// AllowedOrigin is the browser origin allowed to call the API and open
	// the live channel. "*" allows any origin.
	AllowedOrigin string
}

func NewHandler(hub *chathub.ManagerService, messages *messaging.Service, tokens *auth.TokenManager, allowedOrigin string) *Handler {
	return &Handler{
		Hub:           hub,
		Messages:      messages,
		Tokens:        tokens,
		AllowedOrigin: allowedOrigin,
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), h.cors())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.ProtectRoute(), h.ServeWebSocket)

	api := r.Group("/api", h.ProtectRoute())
	{
		api.GET("/messages/users", h.GetUsers)
		api.GET("/messages/:id", h.GetMessages)
		api.POST("/messages/send/:id", h.SendMessage)

		api.GET("/ai/participant", h.GetAIParticipant)
		api.POST("/ai/chat", h.ChatWithAI)
	}
	return r
}

func (h *Handler) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && h.originAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) originAllowed(origin string) bool {
	return origin == "" || h.AllowedOrigin == "*" || origin == h.AllowedOrigin
}

// respondError writes err with the status of its apperr class.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if errors.Is(err, auth.ErrUnauthorized) {
		status = http.StatusUnauthorized
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "reason": apperr.Reason(err)})
}
