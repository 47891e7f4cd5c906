package realtime

import (
	"sort"
	"sync"
)

type slot struct {
	mu    sync.Mutex
	conns map[string]*Conn
	dead  bool
}

// Registry tracks live connections per identity. Each identity owns a slot
// with its own lock; slots are dropped once their last connection leaves.
type Registry struct {
	slots sync.Map
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds conn under its identity and returns a cleanup func that
// unregisters it.
func (r *Registry) Register(conn *Conn) func() {
	for {
		value, _ := r.slots.LoadOrStore(conn.identity, &slot{conns: make(map[string]*Conn)})
		s := value.(*slot)
		s.mu.Lock()
		if s.dead {
			// Lost a race with the last Unregister; the slot is being
			// removed, so load a fresh one.
			s.mu.Unlock()
			continue
		}
		s.conns[conn.id] = conn
		s.mu.Unlock()
		return func() { r.Unregister(conn) }
	}
}

// Unregister removes conn and reports whether it was registered.
func (r *Registry) Unregister(conn *Conn) bool {
	value, ok := r.slots.Load(conn.identity)
	if !ok {
		return false
	}
	s := value.(*slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, present := s.conns[conn.id]; !present {
		return false
	}
	delete(s.conns, conn.id)
	if len(s.conns) == 0 {
		s.dead = true
		r.slots.CompareAndDelete(conn.identity, s)
	}
	return true
}

// IsOnline reports whether identity has at least one live connection.
func (r *Registry) IsOnline(identity string) bool {
	value, ok := r.slots.Load(identity)
	if !ok {
		return false
	}
	s := value.(*slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.dead && len(s.conns) > 0
}

// Connections returns a snapshot of identity's live connections.
func (r *Registry) Connections(identity string) []*Conn {
	value, ok := r.slots.Load(identity)
	if !ok {
		return nil
	}
	s := value.(*slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		out = append(out, conn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Identities lists identities with at least one live connection.
func (r *Registry) Identities() []string {
	var out []string
	r.slots.Range(func(key, value any) bool {
		s := value.(*slot)
		s.mu.Lock()
		if !s.dead && len(s.conns) > 0 {
			out = append(out, key.(string))
		}
		s.mu.Unlock()
		return true
	})
	sort.Strings(out)
	return out
}

// Len counts live connections across all identities.
func (r *Registry) Len() int {
	total := 0
	r.slots.Range(func(_, value any) bool {
		s := value.(*slot)
		s.mu.Lock()
		total += len(s.conns)
		s.mu.Unlock()
		return true
	})
	return total
}
