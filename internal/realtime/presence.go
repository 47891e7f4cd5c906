package realtime

// Presence answers read-only online questions over the registry.
type Presence struct {
	registry *Registry
}

// IsOnline reports whether identity has a live connection.
func (p Presence) IsOnline(identity string) bool {
	return p.registry.IsOnline(identity)
}

// Devices counts identity's live connections.
func (p Presence) Devices(identity string) int {
	return len(p.registry.Connections(identity))
}

// Online lists identities with at least one live connection.
func (p Presence) Online() []string {
	return p.registry.Identities()
}
