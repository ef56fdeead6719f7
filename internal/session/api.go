package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/messaging"
	"pairchat/backend/internal/models"

	"github.com/pkg/errors"
)

// API is the request side of the server as used by a session.
type API interface {
	Users(ctx context.Context) ([]models.Participant, error)
	History(ctx context.Context, peerID string) ([]models.Message, error)
	Send(ctx context.Context, peerID string, in messaging.SendInput) (*models.Message, error)
	// ChatAI returns the exchange even when only the reply failed; the error
	// is then an *apperr.ReplyError.
	ChatAI(ctx context.Context, text string) (*AIExchange, error)
}

type AIExchange struct {
	Message *models.Message `json:"message"`
	Reply   *models.Message `json:"reply"`
}

// APIError is a non-2xx response. It unwraps to the apperr sentinel named by
// the response reason.
type APIError struct {
	StatusCode int
	Reason     string
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Msg)
}

func (e *APIError) Unwrap() error {
	switch e.Reason {
	case "timeout":
		return apperr.ErrTimeout
	case "unavailable":
		return apperr.ErrUnavailable
	case "not_found":
		return apperr.ErrNotFound
	case "invalid":
		return apperr.ErrInvalid
	}
	return nil
}

// HTTPAPI talks to the server's JSON API with a bearer token.
type HTTPAPI struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPAPI(baseURL, token string) *HTTPAPI {
	return &HTTPAPI{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: time.Minute},
	}
}

func (a *HTTPAPI) Users(ctx context.Context) ([]models.Participant, error) {
	var users []models.Participant
	if err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (a *HTTPAPI) History(ctx context.Context, peerID string) ([]models.Message, error) {
	var messages []models.Message
	if err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(peerID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (a *HTTPAPI) Send(ctx context.Context, peerID string, in messaging.SendInput) (*models.Message, error) {
	var msg models.Message
	if err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(peerID), in, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *HTTPAPI) ChatAI(ctx context.Context, text string) (*AIExchange, error) {
	var exchange AIExchange
	err := a.do(ctx, http.MethodPost, "/api/ai/chat", map[string]string{"text": text}, &exchange)
	if err != nil {
		if exchange.Message != nil {
			return &exchange, &apperr.ReplyError{Cause: err}
		}
		return nil, err
	}
	return &exchange, nil
}

// errorBody is the server's error shape. Message is set only when the send
// succeeded and the AI reply failed.
type errorBody struct {
	Error      string          `json:"error"`
	Reason     string          `json:"reason"`
	ReplyError string          `json:"reply_error"`
	Message    *models.Message `json:"message"`
}

// do performs one request. On error responses carrying the persisted message,
// out is still filled when it is an *AIExchange.
func (a *HTTPAPI) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Token)

	resp, err := a.Client.Do(req)
	if err != nil {
		return errors.Wrapf(apperr.ErrUnavailable, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		reason := eb.Reason
		if eb.ReplyError != "" {
			reason = eb.ReplyError
		}
		if ex, ok := out.(*AIExchange); ok && eb.Message != nil {
			ex.Message = eb.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Reason: reason, Msg: eb.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
