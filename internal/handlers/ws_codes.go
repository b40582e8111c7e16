// internal/handlers/ws_codes.go
package handlers

import "time"

// Subprotocol clients must request on /friends/ws.
const friendsSubprotocol = "friends"

// Custom WebSocket close codes used by the friend event feed.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
)

// wsWriteTimeout bounds a single event write to the client.
const wsWriteTimeout = 5 * time.Second
