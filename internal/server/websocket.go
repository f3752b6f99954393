package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades to WebSocket and streams parse results (record
// and/or diagnostic) to the client as JSON.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	results := s.hub.Subscribe()
	defer s.hub.Unsubscribe(results)

	// Read pump: detect client disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Write pump.
	for {
		select {
		case <-gone:
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			if err := conn.WriteJSON(res); err != nil {
				s.log.Warn("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
