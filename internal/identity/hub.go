package identity

import (
	"sync"

	"thoughts/internal/models"
)

// Watcher receives the current principal of a session, nil when signed out.
// Watchers run while the hub lock is held: they must not block and must not
// call back into the Hub.
type Watcher func(p *models.Principal)

// Hub holds the current principal per browser session and fans changes out
// to the live views watching that session. The identity adapter is its only
// writer.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
	nextID   uint64
}

type sessionState struct {
	principal *models.Principal
	known     bool
	watchers  map[uint64]Watcher
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*sessionState)}
}

// Publish replaces the principal of sid and notifies its watchers.
func (h *Hub) Publish(sid string, p *models.Principal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sid]
	if !ok {
		// Nobody is watching; the session cookie carries the value until
		// the next Watch seeds it.
		return
	}
	s.principal = clonePrincipal(p)
	s.known = true
	for _, w := range s.watchers {
		w(clonePrincipal(s.principal))
	}
}

// Watch registers fn for sid and calls it once with the current principal.
// seed is used when the hub has not seen sid yet. The returned func removes
// the watcher and is safe to call more than once.
func (h *Hub) Watch(sid string, seed *models.Principal, fn Watcher) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sid]
	if !ok {
		s = &sessionState{watchers: make(map[uint64]Watcher)}
		h.sessions[sid] = s
	}
	if !s.known {
		s.principal = clonePrincipal(seed)
		s.known = true
	}
	h.nextID++
	id := h.nextID
	s.watchers[id] = fn
	fn(clonePrincipal(s.principal))

	var once sync.Once
	return func() {
		once.Do(func() { h.unwatch(sid, id) })
	}
}

func (h *Hub) unwatch(sid string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sid]
	if !ok {
		return
	}
	delete(s.watchers, id)
	if len(s.watchers) == 0 {
		delete(h.sessions, sid)
	}
}

// Current returns the principal last seen for sid by a watched session.
func (h *Hub) Current(sid string) (*models.Principal, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sid]
	if !ok || !s.known {
		return nil, false
	}
	return clonePrincipal(s.principal), true
}

func clonePrincipal(p *models.Principal) *models.Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
