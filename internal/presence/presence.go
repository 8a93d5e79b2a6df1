// Package presence derives who is online, who is typing, and who is in
// which room from the event stream. It holds no truth of its own: every
// value is a projection of the events applied so far.
package presence

import (
	"sort"
	"sync"
	"time"

	"heartline/client/internal/wire"
)

// DefaultTypingTTL expires a typing entry whose stop event never
// arrives, for example when the typist's client crashed.
const DefaultTypingTTL = 6 * time.Second

type TypingUser struct {
	UserID   int64
	Nickname string
	RoomID   string
}

type Participant struct {
	UserID   int64
	Nickname string
}

type typingEntry struct {
	user  TypingUser
	timer *time.Timer
}

type Aggregator struct {
	typingTTL time.Duration

	mu           sync.Mutex
	onlineCount  int
	typing       map[int64]*typingEntry
	participants map[string][]Participant
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		typingTTL:    DefaultTypingTTL,
		typing:       map[int64]*typingEntry{},
		participants: map[string][]Participant{},
	}
}

// SetTypingTTL overrides the expiry window, used by tests.
func (a *Aggregator) SetTypingTTL(ttl time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.typingTTL = ttl
}

// ApplyUserCount records the server's announced online count. The count
// is never computed locally.
func (a *Aggregator) ApplyUserCount(p wire.UserCountPayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onlineCount = p.Count
}

func (a *Aggregator) OnlineCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.onlineCount
}

// ApplyTypingStart adds or refreshes a typing entry. A start arriving
// without a prior stop just resets the entry's expiry.
func (a *Aggregator) ApplyTypingStart(p wire.TypingPayload) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry, ok := a.typing[p.UserID]; ok {
		entry.user = TypingUser{UserID: p.UserID, Nickname: p.Nickname, RoomID: p.RoomID}
		entry.timer.Reset(a.typingTTL)
		return
	}

	userID := p.UserID
	entry := &typingEntry{
		user: TypingUser{UserID: p.UserID, Nickname: p.Nickname, RoomID: p.RoomID},
		timer: time.AfterFunc(a.typingTTL, func() {
			a.expireTyping(userID)
		}),
	}
	a.typing[p.UserID] = entry
}

func (a *Aggregator) ApplyTypingStop(p wire.TypingPayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if entry, ok := a.typing[p.UserID]; ok {
		entry.timer.Stop()
		delete(a.typing, p.UserID)
	}
}

func (a *Aggregator) expireTyping(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.typing, userID)
}

// TypingUsers returns the current typists sorted by user ID.
func (a *Aggregator) TypingUsers() []TypingUser {
	a.mu.Lock()
	defer a.mu.Unlock()
	users := make([]TypingUser, 0, len(a.typing))
	for _, entry := range a.typing {
		users = append(users, entry.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// ApplyUserJoined adds a participant to a room, guarding against
// duplicate join events for the same user.
func (a *Aggregator) ApplyUserJoined(p wire.PresencePayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.participants[p.RoomID] {
		if existing.UserID == p.UserID {
			return
		}
	}
	a.participants[p.RoomID] = append(a.participants[p.RoomID],
		Participant{UserID: p.UserID, Nickname: p.Nickname})
}

func (a *Aggregator) ApplyUserLeft(p wire.PresencePayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	list := a.participants[p.RoomID]
	for i, existing := range list {
		if existing.UserID == p.UserID {
			a.participants[p.RoomID] = append(list[:i:i], list[i+1:]...)
			if len(a.participants[p.RoomID]) == 0 {
				delete(a.participants, p.RoomID)
			}
			return
		}
	}
}

// Participants returns a copy of a room's member list in join order.
func (a *Aggregator) Participants(roomID string) []Participant {
	a.mu.Lock()
	defer a.mu.Unlock()
	list := a.participants[roomID]
	out := make([]Participant, len(list))
	copy(out, list)
	return out
}
