package realtime

import (
	"chat-client/domain/event"
	"sync"
)

type binding struct {
	id      uint64
	handler event.Handler
}

// Registry keeps at most one handler per event name.
// Installing a handler for a name replaces the previous one.
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[event.Name]binding
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[event.Name]binding)}
}

// On installs handler for name and returns the handle owning it.
func (r *Registry) On(name event.Name, handler event.Handler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.handlers[name] = binding{id: r.nextID, handler: handler}
	return &Subscription{registry: r, name: name, id: r.nextID}
}

// Off removes whatever handler is installed for name.
func (r *Registry) Off(name event.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// Handler returns the handler currently installed for name.
func (r *Registry) Handler(name event.Name) (event.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.handlers[name]
	return b.handler, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// release removes the handler of name only if it is still the one owned by id.
func (r *Registry) release(name event.Name, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.handlers[name]; ok && b.id == id {
		delete(r.handlers, name)
	}
}

// Subscription owns one handler of the registry.
// Once replaced by a newer handler for the same name, Unsubscribe does nothing.
type Subscription struct {
	once     sync.Once
	registry *Registry
	name     event.Name
	id       uint64
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.registry.release(s.name, s.id)
	})
}
