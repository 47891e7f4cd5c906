// Package daemon hosts the long-running templateflow server: it holds the
// single-instance lock next to the database, serves the HTTP API and the
// WebSocket gateway, and tears the realtime hub down on shutdown.
//
// The HTTP surface lives in api_server.go. Every /api route is wrapped in
// bearer-token middleware; /ws performs its own verification before the
// upgrade so rejected clients never reach the hub.
package daemon
