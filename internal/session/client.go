// internal/session/client.go
package session

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultClientBuffer is the outbound queue length of a connection.
const DefaultClientBuffer = 32

// Client is one live connection. The transport drains Out until Done closes.
type Client struct {
	ConnID   uuid.UUID
	PlayerID uuid.UUID
	Name     string

	out       chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(playerID uuid.UUID, name string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ConnID:   uuid.New(),
		PlayerID: playerID,
		Name:     name,
		out:      make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

// Out is the queue of events waiting to be written.
func (c *Client) Out() <-chan Event {
	return c.out
}

// Done is closed once the hub has let go of the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send queues ev without blocking. It reports false if the client is closed or its
// queue is full, in which case the event is dropped.
func (c *Client) Send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
