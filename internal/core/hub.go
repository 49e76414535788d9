package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Hub is the connection registry and room router.
//
// Membership changes (register, unregister, join, leave) take the write lock;
// they never block on I/O. Emit takes the read lock, so emits to unrelated
// rooms run in parallel, and a membership change waits until in-flight emits
// have finished offering their event. Delivery is a non-blocking send into
// each client's queue, so a slow client never stalls its siblings.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]*Room
	log     *zerolog.Logger
}

// NewHub creates an empty hub. A nil logger disables logging.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]*Room),
		log:     logger,
	}
}

// Register adds a live connection. A client that was unregistered before has
// a closed event queue and is refused with ErrClientClosed.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if old, exists := h.clients[c.ID]; exists && old != c {
		h.removeLocked(old)
	}
	h.clients[c.ID] = c
	h.log.Debug().Str("client_id", c.ID).Msg("client registered")
	return nil
}

// Unregister removes the connection from every room it joined, forgets it and
// closes its event queue, all under one lock. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return
	}
	h.removeLocked(c)
	h.log.Debug().Str("client_id", id).Msg("client unregistered")
}

func (h *Hub) removeLocked(c *Client) {
	for name := range c.rooms {
		if room, ok := h.rooms[name]; ok {
			room.RemoveClient(c)
			if room.Empty() {
				delete(h.rooms, name)
			}
		}
	}
	c.rooms = make(map[string]struct{})
	delete(h.clients, c.ID)
	if !c.closed {
		c.closed = true
		close(c.Events)
	}
}

// Join adds the connection to a room on the server's behalf. It returns false
// when the connection is unknown or already a member.
func (h *Hub) Join(id, roomName string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		h.log.Debug().Str("client_id", id).Str("room", roomName).Msg("join for unknown client ignored")
		return false
	}
	return h.joinLocked(c, roomName)
}

// Subscribe joins a room on the client's own request. Reserved names are
// refused with ErrReservedRoom.
func (h *Hub) Subscribe(id, roomName string) (bool, error) {
	if IsReservedRoom(roomName) {
		return false, ErrReservedRoom
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return false, nil
	}
	return h.joinLocked(c, roomName), nil
}

// Identify binds a connection to a user and joins its server-assigned rooms:
// the personal room, the personal order room and, when admin is set,
// AdminRoom. It returns the rooms joined, or nil when the connection is
// unknown or already identified.
func (h *Hub) Identify(id, userID, role string, admin bool) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok || c.UserID != "" || userID == "" {
		return nil
	}
	c.UserID = userID
	c.Role = role

	rooms := []string{userID, UserOrdersRoom(userID)}
	if admin {
		rooms = append(rooms, AdminRoom)
	}
	for _, name := range rooms {
		h.joinLocked(c, name)
	}
	return rooms
}

func (h *Hub) joinLocked(c *Client, roomName string) bool {
	room, ok := h.rooms[roomName]
	if !ok {
		room = NewRoom(roomName)
		h.rooms[roomName] = room
	}
	if !room.AddClient(c) {
		return false
	}
	c.rooms[roomName] = struct{}{}
	return true
}

// Leave removes the connection from a room. It returns false when it was not a member.
func (h *Hub) Leave(id, roomName string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return false
	}
	room, ok := h.rooms[roomName]
	if !ok || !room.RemoveClient(c) {
		return false
	}
	delete(c.rooms, roomName)
	if room.Empty() {
		delete(h.rooms, roomName)
	}
	return true
}

// Emit offers the event to every member of the room at the time of the call
// and returns the number of clients that accepted it. An empty or unknown
// room is a no-op.
func (h *Hub) Emit(roomName string, ev Event) int {
	return h.EmitRooms([]string{roomName}, ev)
}

// EmitRooms offers the event once to every member of the union of rooms, so a
// connection that sits in several target rooms still receives it once.
func (h *Hub) EmitRooms(roomNames []string, ev Event) int {
	return h.emit(roomNames, ev, false)
}

// EmitUsers treats each name as a user id and delivers only to members of
// that personal room identified as the user. Subscribers that merely share
// the room name are skipped.
func (h *Hub) EmitUsers(userIDs []string, ev Event) int {
	return h.emit(userIDs, ev, true)
}

func (h *Hub) emit(roomNames []string, ev Event, ownersOnly bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var delivered, dropped int
	if len(roomNames) == 1 && !ownersOnly {
		if room, ok := h.rooms[roomNames[0]]; ok {
			delivered, dropped = room.Broadcast(ev)
		}
	} else {
		seen := make(map[*Client]struct{})
		for _, name := range roomNames {
			room, ok := h.rooms[name]
			if !ok {
				continue
			}
			for c := range room.clients {
				if ownersOnly && c.UserID != name {
					continue
				}
				if _, dup := seen[c]; dup {
					continue
				}
				seen[c] = struct{}{}
				if c.deliver(ev) {
					delivered++
				} else {
					dropped++
				}
			}
		}
	}
	if dropped > 0 {
		h.log.Warn().
			Strs("rooms", roomNames).
			Str("event", ev.Kind().String()).
			Int("dropped", dropped).
			Msg("slow clients missed event")
	}
	return delivered
}

// Rooms returns the sorted names of the rooms a connection belongs to.
func (h *Hub) Rooms(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[id]
	if !ok {
		return nil
	}
	names := lo.Keys(c.rooms)
	sort.Strings(names)
	return names
}

// Members returns the sorted connection ids currently in a room.
func (h *Hub) Members(roomName string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomName]
	if !ok {
		return nil
	}
	ids := lo.Map(lo.Keys(room.clients), func(c *Client, _ int) string { return c.ID })
	sort.Strings(ids)
	return ids
}

// Stats reports the number of live connections and non-empty rooms.
// A nil hub reports zero.
func (h *Hub) Stats() (clients, rooms int) {
	if h == nil {
		return 0, 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.rooms)
}
