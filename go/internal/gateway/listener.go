package gateway

import "sync"

// Listener receives push events from a channel. Calls arrive one at a time
// from the channel's read loop, in the order the server sent them.
type Listener interface {
	HandleMatchData(data MatchData)
	HandleMatchPresence(event MatchPresenceEvent)
}

// Registry tracks listener registrations for a channel. Registrations
// stack: the most recent one receives events, and releasing it
// re-activates whichever registration was active before it.
type Registry struct {
	mu      sync.Mutex
	entries []*Registration
	nextID  uint64
}

// Registration is the token returned by Register
type Registration struct {
	id       uint64
	listener Listener
	registry *Registry
	once     sync.Once
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register installs l as the active listener
func (r *Registry) Register(l Listener) *Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	reg := &Registration{
		id:       r.nextID,
		listener: l,
		registry: r,
	}
	r.entries = append(r.entries, reg)
	return reg
}

// Active returns the listener that currently receives events, or nil
func (r *Registry) Active() Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 0 {
		return nil
	}
	return r.entries[len(r.entries)-1].listener
}

// Len returns the number of live registrations
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear drops every registration
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Release removes this registration. If it was active, the previously
// registered listener becomes active again. Safe to call more than once.
func (reg *Registration) Release() {
	if reg == nil {
		return
	}
	reg.once.Do(func() {
		reg.registry.remove(reg.id)
	})
}

// dispatchData delivers a match data message to the active listener
func (r *Registry) dispatchData(data MatchData) bool {
	l := r.Active()
	if l == nil {
		return false
	}
	l.HandleMatchData(data)
	return true
}

// dispatchPresence delivers a presence event to the active listener
func (r *Registry) dispatchPresence(event MatchPresenceEvent) bool {
	l := r.Active()
	if l == nil {
		return false
	}
	l.HandleMatchPresence(event)
	return true
}
