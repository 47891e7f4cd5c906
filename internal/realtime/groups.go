package realtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Groups maps audiences to their current member connections. Membership
// changes only affect publishes that start after the change.
type Groups struct {
	mu     sync.RWMutex
	groups map[GroupKey]map[string]*Conn
}

// NewGroups returns an empty membership table.
func NewGroups() *Groups {
	return &Groups{groups: make(map[GroupKey]map[string]*Conn)}
}

// Admit places conn in its identity group and, when it carries one, its role
// group. Resource groups start empty.
func (g *Groups) Admit(conn *Conn) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if conn.Closed() {
		return ErrConnClosed
	}
	g.addLocked(IdentityGroup(conn.identity), conn)
	if conn.role != "" {
		g.addLocked(RoleGroup(conn.role), conn)
	}
	return nil
}

// JoinResource subscribes conn to resource. Joining twice is a no-op.
func (g *Groups) JoinResource(conn *Conn, resource string) error {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidResource)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if conn.Closed() {
		return ErrConnClosed
	}
	g.addLocked(ResourceGroup(resource), conn)
	conn.addResource(resource)
	return nil
}

// LeaveResource unsubscribes conn from resource and reports whether it was a
// member.
func (g *Groups) LeaveResource(conn *Conn, resource string) bool {
	resource = strings.TrimSpace(resource)
	g.mu.Lock()
	defer g.mu.Unlock()
	if !conn.removeResource(resource) {
		return false
	}
	g.removeLocked(ResourceGroup(resource), conn)
	return true
}

// Remove drops every membership of conn and deletes groups left empty.
func (g *Groups) Remove(conn *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(IdentityGroup(conn.identity), conn)
	if conn.role != "" {
		g.removeLocked(RoleGroup(conn.role), conn)
	}
	for _, resource := range conn.Resources() {
		conn.removeResource(resource)
		g.removeLocked(ResourceGroup(resource), conn)
	}
}

// Members returns a snapshot of the group's connections.
func (g *Groups) Members(key GroupKey) []*Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := g.groups[key]
	out := make([]*Conn, 0, len(members))
	for _, conn := range members {
		out = append(out, conn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Size counts the group's members.
func (g *Groups) Size(key GroupKey) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.groups[key])
}

// Keys lists every non-empty group.
func (g *Groups) Keys() []GroupKey {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]GroupKey, 0, len(g.groups))
	for key := range g.groups {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (g *Groups) addLocked(key GroupKey, conn *Conn) {
	members, ok := g.groups[key]
	if !ok {
		members = make(map[string]*Conn)
		g.groups[key] = members
	}
	members[conn.id] = conn
}

func (g *Groups) removeLocked(key GroupKey, conn *Conn) {
	members, ok := g.groups[key]
	if !ok {
		return
	}
	delete(members, conn.id)
	if len(members) == 0 {
		delete(g.groups, key)
	}
}
