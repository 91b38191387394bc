package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	// Auth happens inside the handler because websocket clients send the
	// token as a query parameter, not a header.
	e.GET("/ws/chat", wsHandler.HandleWebSocket)
}
