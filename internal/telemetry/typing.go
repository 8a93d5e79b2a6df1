// Package telemetry reports interaction signals: typing indicators and
// reading sessions. It only decides when to emit; the how is injected.
package telemetry

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is how long after the last keystroke the stop
// signal fires.
const DefaultQuietPeriod = 2 * time.Second

// TypingNotifier turns raw keystrokes into a single start signal and a
// trailing-debounced stop signal per room. Every keystroke restarts the
// quiet timer, so a steady typist emits exactly one start.
type TypingNotifier struct {
	quiet time.Duration
	start func(roomID string) error
	stop  func(roomID string) error

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTypingNotifier(start, stop func(roomID string) error) *TypingNotifier {
	return &TypingNotifier{
		quiet:  DefaultQuietPeriod,
		start:  start,
		stop:   stop,
		timers: map[string]*time.Timer{},
	}
}

// SetQuietPeriod overrides the debounce window, used by tests.
func (n *TypingNotifier) SetQuietPeriod(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quiet = d
}

// Keystroke records typing activity in a room. The first keystroke of a
// burst emits the start signal; the stop signal fires once the quiet
// period elapses with no further keystrokes.
func (n *TypingNotifier) Keystroke(roomID string) {
	n.mu.Lock()
	if timer, ok := n.timers[roomID]; ok {
		timer.Reset(n.quiet)
		n.mu.Unlock()
		return
	}
	n.timers[roomID] = time.AfterFunc(n.quiet, func() {
		n.expire(roomID)
	})
	n.mu.Unlock()

	_ = n.start(roomID)
}

func (n *TypingNotifier) expire(roomID string) {
	n.mu.Lock()
	if _, ok := n.timers[roomID]; !ok {
		n.mu.Unlock()
		return
	}
	delete(n.timers, roomID)
	n.mu.Unlock()

	_ = n.stop(roomID)
}

// Flush ends the typing burst immediately, used when a message is sent
// or the view goes away. No-op when nothing is pending.
func (n *TypingNotifier) Flush(roomID string) {
	n.mu.Lock()
	timer, ok := n.timers[roomID]
	if ok {
		timer.Stop()
		delete(n.timers, roomID)
	}
	n.mu.Unlock()

	if ok {
		_ = n.stop(roomID)
	}
}

// Close flushes every pending room.
func (n *TypingNotifier) Close() {
	n.mu.Lock()
	rooms := make([]string, 0, len(n.timers))
	for roomID, timer := range n.timers {
		timer.Stop()
		rooms = append(rooms, roomID)
	}
	n.timers = map[string]*time.Timer{}
	n.mu.Unlock()

	for _, roomID := range rooms {
		_ = n.stop(roomID)
	}
}
