package handler

import (
	"net/http"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/messaging"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type chatRequest struct {
	Text string `json:"text"`
}

// GetUsers lists every participant except the caller, AI participant first.
func (h *Handler) GetUsers(c *gin.Context) {
	users, err := h.Messages.Users(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetMessages returns the caller's conversation with :id, oldest first.
func (h *Handler) GetMessages(c *gin.Context) {
	messages, err := h.Messages.History(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage persists a message to :id and relays it. It responds with the
// persisted message; an AI reply reaches the sender over the live channel.
func (h *Handler) SendMessage(c *gin.Context) {
	var in messaging.SendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errors.Wrap(apperr.ErrInvalid, err.Error()))
		return
	}

	res, err := h.Messages.Send(c.Request.Context(), currentUserID(c), c.Param("id"), in)
	if err != nil {
		respondSendError(c, res, err)
		return
	}
	c.JSON(http.StatusCreated, res.Message)
}

// ChatWithAI sends text to the AI participant and waits for its reply.
func (h *Handler) ChatWithAI(c *gin.Context) {
	var in chatRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errors.Wrap(apperr.ErrInvalid, err.Error()))
		return
	}

	res, err := h.Messages.SendToAI(c.Request.Context(), currentUserID(c), in.Text)
	if err != nil {
		respondSendError(c, res, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": res.Message, "reply": res.Reply})
}

func (h *Handler) GetAIParticipant(c *gin.Context) {
	ai, err := h.Messages.Responder.Participant(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ai)
}

// respondSendError distinguishes a failed reply from a failed send: with a
// ReplyError the inbound message is in the body so the sender can keep it.
func respondSendError(c *gin.Context, res *messaging.SendResult, err error) {
	var replyErr *apperr.ReplyError
	if !errors.As(err, &replyErr) || res == nil {
		respondError(c, err)
		return
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{
		"message":     res.Message,
		"reply_error": apperr.Reason(err),
		"error":       err.Error(),
	})
}
