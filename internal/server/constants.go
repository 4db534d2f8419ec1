// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection inbound message limit (sliding window)
	RateLimitMessages = 30
	RateLimitWindow   = time.Second

	// Bound on a single websocket write before the client is considered stalled
	WriteTimeout = 5 * time.Second

	// Upper bound on request bodies (templates are small)
	MaxBodyBytes = 1 << 20

	// Default window for GET /api/streams/{id}/events
	DefaultEventWindow = 10 * time.Minute
)
