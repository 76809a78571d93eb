// Package ws streams fleet snapshots to browser clients over WebSocket.
//
// The poller calls Hub.Publish after every poll; each connected client also
// receives the most recent snapshot immediately on connect. Slow clients
// whose send buffer fills up are disconnected.
package ws
