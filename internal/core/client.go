package core

// DefaultClientBuffer is the outbound queue length used when none is configured.
const DefaultClientBuffer = 64

// Client is one live connection as seen by the core layer.
// The hub owns the Events channel: it closes it on Unregister.
// UserID and Role are set by Hub.Identify and read under the hub lock.
type Client struct {
	ID     string
	UserID string
	Role   string
	Events chan Event

	// rooms is guarded by the owning Hub's lock.
	rooms  map[string]struct{}
	closed bool
}

// NewClient constructs a client with a bounded outbound queue.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ID:     id,
		Events: make(chan Event, buffer),
		rooms:  make(map[string]struct{}),
	}
}

// deliver queues an event without blocking. It reports false when the
// queue is full and the event was dropped.
func (c *Client) deliver(ev Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
