package core

// Room groups clients that receive the same broadcast events.
// Rooms are created lazily by the hub and dropped once empty.
type Room struct {
	Name    string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast offers an event to every client in the room and returns how many
// accepted it. A client with a full queue misses the event.
func (r *Room) Broadcast(event Event) (delivered, dropped int) {
	for client := range r.clients {
		if client.deliver(event) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

// Len returns the number of clients in the room.
func (r *Room) Len() int {
	return len(r.clients)
}
