// Package realtime fans domain events out to live client connections.
//
// A Hub composes four pieces: the Registry tracks every live Conn per
// identity so one person may be connected from several devices; Groups maps
// audiences (one identity, one role, one resource) to their current members;
// the Publisher resolves an Event's audience and enqueues the encoded
// envelope on each member's ordered outbound queue; Presence answers
// read-only online questions.
//
// Delivery is at-most-once. A full queue or closed connection counts as a
// delivery failure that is logged and dropped, never retried and never
// reported to the publisher's caller. Clients that reconnect recompute what
// they missed from persisted state.
package realtime
