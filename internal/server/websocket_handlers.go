package server

import (
	"log/slog"

	"murmur/internal/middleware"
	"murmur/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketUpgrade rejects plain HTTP requests to the websocket endpoint.
func (s *Server) WebsocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebsocketHandler handles GET /ws. Every connected client receives every
// realtime event; inbound messages are ignored.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		client, err := s.hub.Register(conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration failed", slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		if welcome, err := notifications.NewEvent(notifications.EventConnected, nil).Encode(); err == nil {
			client.TrySend(welcome)
		}

		middleware.Logger.Debug("websocket client connected", slog.String("client_id", client.ID))

		// The connection is released when this handler returns, so wait for
		// the write pump as well.
		written := make(chan struct{})
		go func() {
			defer close(written)
			client.WritePump()
		}()

		client.ReadPump()
		<-written
	})
}
