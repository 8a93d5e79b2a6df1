package socket

import (
	"strconv"
	"sync"

	"heartline/client/internal/wire"
)

type RoomKind string

const (
	RoomChat     RoomKind = "chat"
	RoomPost     RoomKind = "post"
	RoomBlog     RoomKind = "blog"
	RoomDocument RoomKind = "document"
)

// BlogRoomID names the single room every blog-list view shares.
const BlogRoomID = "blog"

type roomKey struct {
	kind RoomKind
	id   string
}

// Rooms tracks which logical rooms this connection has joined. Join is
// idempotent and Leave without a prior Join emits nothing. Both are
// silently skipped while disconnected; views rejoin on their next
// mount, so nothing is queued.
type Rooms struct {
	emit      func(event string, payload any) error
	connected func() bool

	mu     sync.Mutex
	joined map[roomKey]struct{}
}

func NewRooms(emit func(event string, payload any) error, connected func() bool) *Rooms {
	return &Rooms{emit: emit, connected: connected, joined: map[roomKey]struct{}{}}
}

func (r *Rooms) Join(kind RoomKind, id string) {
	if !r.connected() {
		return
	}
	key := roomKey{kind: kind, id: id}
	r.mu.Lock()
	if _, ok := r.joined[key]; ok {
		r.mu.Unlock()
		return
	}
	r.joined[key] = struct{}{}
	r.mu.Unlock()

	_ = r.emit(joinEvent(kind), roomPayload(kind, id))
}

func (r *Rooms) Leave(kind RoomKind, id string) {
	key := roomKey{kind: kind, id: id}
	r.mu.Lock()
	if _, ok := r.joined[key]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.joined, key)
	r.mu.Unlock()

	if !r.connected() {
		return
	}
	_ = r.emit(leaveEvent(kind), roomPayload(kind, id))
}

func (r *Rooms) Joined(kind RoomKind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.joined[roomKey{kind: kind, id: id}]
	return ok
}

// LeaveAll sends a leave for every held membership, used on explicit
// teardown while still connected.
func (r *Rooms) LeaveAll() {
	r.mu.Lock()
	keys := make([]roomKey, 0, len(r.joined))
	for key := range r.joined {
		keys = append(keys, key)
	}
	r.joined = map[roomKey]struct{}{}
	r.mu.Unlock()

	if !r.connected() {
		return
	}
	for _, key := range keys {
		_ = r.emit(leaveEvent(key.kind), roomPayload(key.kind, key.id))
	}
}

// Reset forgets every membership without emitting. Called when the
// transport drops: the server already discarded them, and views rejoin
// on their next mount.
func (r *Rooms) Reset() {
	r.mu.Lock()
	r.joined = map[roomKey]struct{}{}
	r.mu.Unlock()
}

func joinEvent(kind RoomKind) string {
	switch kind {
	case RoomPost:
		return wire.EvJoinPost
	case RoomBlog:
		return wire.EvJoinBlog
	case RoomDocument:
		return wire.EvJoinDocument
	}
	return wire.EvJoinRoom
}

func leaveEvent(kind RoomKind) string {
	switch kind {
	case RoomPost:
		return wire.EvLeavePost
	case RoomBlog:
		return wire.EvLeaveBlog
	case RoomDocument:
		return wire.EvLeaveDocument
	}
	return wire.EvLeaveRoom
}

func roomPayload(kind RoomKind, id string) any {
	switch kind {
	case RoomPost:
		postID, _ := strconv.ParseInt(id, 10, 64)
		return wire.PostRoomPayload{PostID: postID}
	case RoomBlog:
		return nil
	case RoomDocument:
		return wire.DocumentRoomPayload{DocumentID: id}
	}
	return wire.RoomPayload{RoomID: id}
}
