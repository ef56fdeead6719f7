package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"pairchat/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Conn is an open live channel delivering server events.
type Conn interface {
	ReadEvent() (models.Event, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WSDialer opens the live channel at <BaseURL>/ws with a bearer token.
type WSDialer struct {
	BaseURL string
	Token   string
}

func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(strings.TrimRight(d.BaseURL, "/") + "/ws")
	if err != nil {
		return nil, errors.Wrap(err, "live channel url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.Token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, errors.Wrap(err, "dial live channel")
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadEvent() (models.Event, error) {
	var ev models.Event
	err := c.conn.ReadJSON(&ev)
	return ev, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
