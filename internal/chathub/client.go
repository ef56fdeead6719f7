package chathub

import (
	"pairchat/backend/internal/models"

	"github.com/pkg/errors"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowConsumer = errors.New("client send buffer full")
)

// Client is one live channel bound to one participant identity. It abstracts
// the transport so the registry, presence and relay code can be exercised
// with test doubles.
type Client interface {
	// GetUserID returns the identity the channel was opened with.
	GetUserID() string

	// Push enqueues an event for delivery and never blocks. It returns
	// ErrClientClosed or ErrSlowConsumer when the event cannot be queued.
	Push(ev models.Event) error

	// Run starts the client's read and write pumps.
	Run()
	// Close stops the write pump. Safe to call more than once.
	Close()
}
