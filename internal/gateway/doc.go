// Package gateway admits WebSocket clients into the realtime hub.
//
// The bearer token is verified before the HTTP upgrade, so a rejected client
// never touches the registry. Admitted connections get their unread count
// pushed immediately, then the server reads JSON control frames (join,
// leave, ping, read) under a per-connection rate limit. Outbound frames are
// written by the connection's own writer goroutine in publish order.
package gateway
