package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"heartline/client/internal/wire"
)

const redisChannelPrefix = "heartline:room:"

// Hub routes pushed events to connected clients by room. With a Redis
// client it mirrors room traffic through pub/sub so multiple server
// instances see each other's broadcasts; without one it stays local.
type Hub struct {
	instanceID string
	redis      *redis.Client

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		instanceID: uuid.NewString(),
		redis:      redisClient,
		clients:    map[*Client]struct{}{},
		rooms:      map[string]map[*Client]struct{}{},
	}
	if redisClient != nil {
		go h.redisListener()
	}
	return h
}

func RoomKey(kind, id string) string { return kind + ":" + id }

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.BroadcastAll(wire.EvUserCount, wire.UserCountPayload{Count: count})
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	var left []string
	for key, members := range h.rooms {
		if _, ok := members[client]; ok {
			delete(members, client)
			left = append(left, key)
			if len(members) == 0 {
				delete(h.rooms, key)
			}
		}
	}
	count := len(h.clients)
	close(client.send)
	h.mu.Unlock()

	for _, key := range left {
		h.Broadcast(key, wire.EvUserLeft, wire.PresencePayload{
			RoomID:   roomID(key),
			UserID:   client.UserID,
			Nickname: client.Nickname,
		})
	}
	h.BroadcastAll(wire.EvUserCount, wire.UserCountPayload{Count: count})
}

// Join adds a client to a room and announces it. Joining a room twice
// announces once.
func (h *Hub) Join(client *Client, key string) {
	h.mu.Lock()
	members := h.rooms[key]
	if members == nil {
		members = map[*Client]struct{}{}
		h.rooms[key] = members
	}
	if _, ok := members[client]; ok {
		h.mu.Unlock()
		return
	}
	members[client] = struct{}{}
	h.mu.Unlock()

	h.Broadcast(key, wire.EvUserJoined, wire.PresencePayload{
		RoomID:   roomID(key),
		UserID:   client.UserID,
		Nickname: client.Nickname,
	})
}

func (h *Hub) Leave(client *Client, key string) {
	h.mu.Lock()
	members, ok := h.rooms[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := members[client]; !member {
		h.mu.Unlock()
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, key)
	}
	h.mu.Unlock()

	h.Broadcast(key, wire.EvUserLeft, wire.PresencePayload{
		RoomID:   roomID(key),
		UserID:   client.UserID,
		Nickname: client.Nickname,
	})
}

// Broadcast delivers one event to every member of a room, through
// Redis when configured so sibling instances deliver it too.
func (h *Hub) Broadcast(key, event string, payload any) {
	raw, err := wire.Encode(event, payload)
	if err != nil {
		log.Printf("hub: encode %s: %v", event, err)
		return
	}

	if h.redis != nil {
		frame, err := json.Marshal(relayFrame{Origin: h.instanceID, Data: raw})
		if err == nil {
			if err := h.redis.Publish(context.Background(), redisChannelPrefix+key, frame).Err(); err != nil {
				log.Printf("hub: redis publish: %v", err)
			}
		}
	}
	h.deliverLocal(key, raw)
}

// BroadcastAll delivers one event to every connected client.
func (h *Hub) BroadcastAll(event string, payload any) {
	raw, err := wire.Encode(event, payload)
	if err != nil {
		log.Printf("hub: encode %s: %v", event, err)
		return
	}

	h.mu.RLock()
	for client := range h.clients {
		client.trySend(raw)
	}
	h.mu.RUnlock()
}

// Send delivers one event to a single client.
func (h *Hub) Send(client *Client, event string, payload any) {
	raw, err := wire.Encode(event, payload)
	if err != nil {
		log.Printf("hub: encode %s: %v", event, err)
		return
	}
	client.trySend(raw)
}

func (h *Hub) deliverLocal(key string, raw []byte) {
	h.mu.RLock()
	for client := range h.rooms[key] {
		client.trySend(raw)
	}
	h.mu.RUnlock()
}

// Participants returns how many clients a room currently holds.
func (h *Hub) Participants(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[key])
}

type relayFrame struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

func (h *Hub) redisListener() {
	pubsub := h.redis.PSubscribe(context.Background(), redisChannelPrefix+"*")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var frame relayFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			log.Printf("hub: bad relay frame: %v", err)
			continue
		}
		if frame.Origin == h.instanceID {
			continue
		}
		key := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
		h.deliverLocal(key, frame.Data)
	}
}

func roomID(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
