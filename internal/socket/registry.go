package socket

import (
	"reflect"
	"sync"
	"unsafe"

	"heartline/client/internal/wire"
)

// Local lifecycle events dispatched through the registry alongside
// server pushes. They never travel over the wire.
const (
	EvConnect         = "connect"
	EvDisconnect      = "disconnect"
	EvReconnectFailed = "reconnect-failed"
)

type handlerEntry struct {
	key uintptr
	fn  func(wire.Envelope)
}

// Registry maps event names to ordered callback lists. Registering the
// same function value twice keeps one entry; distinct callbacks all
// fire, in registration order.
type Registry struct {
	mu       sync.Mutex
	handlers map[string][]handlerEntry
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string][]handlerEntry{}}
}

// callbackKey identifies a callback by the address of its function
// value, giving reference equality: re-registering the same stored
// value is a no-op, while method values bound to different receivers
// and closures from separate evaluations stay distinct. A code-pointer
// key would collapse the latter and silently drop subscribers. The
// flip side is that each evaluation of a method value or closure
// literal allocates anew, so unsubscribing requires the value that was
// registered.
func callbackKey(fn any) uintptr {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}
	type eface struct {
		_    unsafe.Pointer
		data unsafe.Pointer
	}
	return uintptr((*eface)(unsafe.Pointer(&fn)).data)
}

func (r *Registry) On(event string, key uintptr, fn func(wire.Envelope)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.handlers[event] {
		if entry.key == key {
			return
		}
	}
	r.handlers[event] = append(r.handlers[event], handlerEntry{key: key, fn: fn})
}

// Off removes a single callback. Removing one that was never registered
// is a no-op.
func (r *Registry) Off(event string, key uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.handlers[event]
	for i, entry := range entries {
		if entry.key == key {
			r.handlers[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// OffAll drops every callback for an event.
func (r *Registry) OffAll(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, event)
}

// Dispatch invokes the callbacks registered for the envelope's event.
// Events nobody listens for are dropped; there is no buffering.
func (r *Registry) Dispatch(env wire.Envelope) {
	r.mu.Lock()
	entries := make([]handlerEntry, len(r.handlers[env.Event]))
	copy(entries, r.handlers[env.Event])
	r.mu.Unlock()

	for _, entry := range entries {
		entry.fn(env)
	}
}
