// internal/handlers/friend_ws.go
package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/huddle/internal/middleware"
)

// FriendEventsWSHandler upgrades to a WebSocket and streams every committed
// friend event that concerns the caller. The stream is server to client only;
// anything the client sends is ignored.
func (s *APIServer) FriendEventsWSHandler(w http.ResponseWriter, r *http.Request) {
	// authenticate before upgrading so failures are plain HTTP errors
	userID, ok := s.actor(w, r)
	if !ok {
		return
	}

	// subscribe before the handshake completes so no event after it is missed
	events, unsubscribe := s.Hub.Subscribe(userID)
	defer unsubscribe()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{friendsSubprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warnf("WebSocket accept error for user %s: %v", userID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "internal server error during handler exit")

	if c.Subprotocol() != friendsSubprotocol {
		c.Close(BadSubprotocolError, "client must use the 'friends' subprotocol")
		return
	}
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path)

	// CloseRead discards client frames and cancels ctx when the peer goes away.
	ctx := c.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, ctx.Err())
			return
		case ev, open := <-events:
			if !open {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, c, ev)
			cancel()
			if err != nil {
				middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
				return
			}
		}
	}
}
