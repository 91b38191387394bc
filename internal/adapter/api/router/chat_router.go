package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
)

// SetupChatRouter sets up the REST chat routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate) // All chat endpoints require authentication

	chatGroup.GET("", chatHandler.GetActiveChats)                          // GET /v1/chats - Get active chat list
	chatGroup.GET("/:partnerId/messages", chatHandler.GetConversationMessages) // GET /v1/chats/:partnerId/messages
	chatGroup.POST("/:partnerId/messages", chatHandler.SendMessage)        // POST /v1/chats/:partnerId/messages
	chatGroup.PUT("/:partnerId/read", chatHandler.MarkConversationRead)    // PUT /v1/chats/:partnerId/read
}
