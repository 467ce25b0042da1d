package relay

import (
	"errors"
	"sync"
)

// ConnID identifies one live client connection. It is the Socket.IO socket
// id; connections are never persisted.
type ConnID string

// RoomKind tags what a broadcast room is used for. Document rooms carry
// editor sessions keyed by document id, Whiteboard rooms carry drawing
// sessions, Call rooms carry WebRTC mesh calls. Capacity limits apply only
// to Call rooms.
type RoomKind int

const (
	RoomDocument RoomKind = iota
	RoomWhiteboard
	RoomCall
)

func (k RoomKind) String() string {
	switch k {
	case RoomDocument:
		return "document"
	case RoomWhiteboard:
		return "whiteboard"
	case RoomCall:
		return "call"
	}
	return "unknown"
}

// DefaultCallCapacity is the mesh-call member limit. A join attempt past it
// is rejected with ErrRoomFull rather than silently admitted.
const DefaultCallCapacity = 4

// ErrRoomFull is returned by Join when a Call room is at capacity.
var ErrRoomFull = errors.New("room full")

// RoomRef names one room a connection was a member of.
type RoomRef struct {
	ID   string
	Kind RoomKind
}

type room struct {
	kind     RoomKind
	capacity int // 0 means unlimited
	members  map[ConnID]struct{}
}

// Registry tracks which connections belong to which rooms, plus the reverse
// index used for disconnect cleanup. It owns all of its state and is handed
// to handlers by reference; state is process-local and lost on restart,
// which is acceptable for ephemeral presence. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	byConn  map[ConnID]map[string]struct{}
	callCap int
}

// NewRegistry creates an empty registry with the default call capacity.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*room),
		byConn:  make(map[ConnID]map[string]struct{}),
		callCap: DefaultCallCapacity,
	}
}

// Join adds conn to the room, creating the room lazily with the given kind.
// Rejoining is a no-op. Returns the member count after the join, or
// ErrRoomFull when a Call room is already at capacity.
func (g *Registry) Join(conn ConnID, roomID string, kind RoomKind) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		r = &room{kind: kind, members: make(map[ConnID]struct{})}
		if kind == RoomCall {
			r.capacity = g.callCap
		}
		g.rooms[roomID] = r
	}

	if _, member := r.members[conn]; member {
		return len(r.members), nil
	}
	if r.capacity > 0 && len(r.members) >= r.capacity {
		return len(r.members), ErrRoomFull
	}

	r.members[conn] = struct{}{}
	joined, ok := g.byConn[conn]
	if !ok {
		joined = make(map[string]struct{})
		g.byConn[conn] = joined
	}
	joined[roomID] = struct{}{}
	return len(r.members), nil
}

// Leave removes conn from the room and returns the remaining member count.
// Empty rooms are evicted. Leaving a room the connection is not a member of
// is a no-op.
func (g *Registry) Leave(conn ConnID, roomID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leaveLocked(conn, roomID)
}

func (g *Registry) leaveLocked(conn ConnID, roomID string) int {
	r, ok := g.rooms[roomID]
	if !ok {
		return 0
	}
	delete(r.members, conn)
	if joined, ok := g.byConn[conn]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(g.byConn, conn)
		}
	}
	if len(r.members) == 0 {
		delete(g.rooms, roomID)
		return 0
	}
	return len(r.members)
}

// LeaveAll removes the connection from every room it was a member of and
// returns the affected rooms, for lifecycle notifications to survivors.
func (g *Registry) LeaveAll(conn ConnID) []RoomRef {
	g.mu.Lock()
	defer g.mu.Unlock()

	joined, ok := g.byConn[conn]
	if !ok {
		return nil
	}
	affected := make([]RoomRef, 0, len(joined))
	for roomID := range joined {
		if r, ok := g.rooms[roomID]; ok {
			affected = append(affected, RoomRef{ID: roomID, Kind: r.kind})
		}
	}
	for _, ref := range affected {
		g.leaveLocked(conn, ref.ID)
	}
	return affected
}

// Members returns the current member set of a room. Unknown rooms yield an
// empty slice.
func (g *Registry) Members(roomID string) []ConnID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]ConnID, 0, len(r.members))
	for conn := range r.members {
		members = append(members, conn)
	}
	return members
}

// Count returns the number of members currently joined to a room.
func (g *Registry) Count(roomID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return 0
	}
	return len(r.members)
}

// Kind reports the kind of an existing room.
func (g *Registry) Kind(roomID string) (RoomKind, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return 0, false
	}
	return r.kind, true
}

// Rooms returns the rooms of the given kind the connection has joined.
func (g *Registry) Rooms(conn ConnID, kind RoomKind) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	joined, ok := g.byConn[conn]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(joined))
	for roomID := range joined {
		if r, ok := g.rooms[roomID]; ok && r.kind == kind {
			ids = append(ids, roomID)
		}
	}
	return ids
}
