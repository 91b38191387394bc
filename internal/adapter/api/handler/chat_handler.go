package handler

import (
	"marketchat/internal/domain/entity"
	"marketchat/internal/usecase"
	"marketchat/pkg/response"
	"marketchat/pkg/utils"

	"github.com/labstack/echo/v4"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

// GetActiveChats returns the caller's inbox, newest conversation first.
func (h *ChatHandler) GetActiveChats(c echo.Context) error {
	userID := c.Get("uid").(string)

	summaries, err := h.chatUseCase.GetActiveChats(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, summaries)
}

// GetConversationMessages returns the ordered history between the
// caller and the partner in the path.
func (h *ChatHandler) GetConversationMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	partnerID := c.Param("partnerId")
	limit := utils.HistoryLimit(c)

	messages, err := h.chatUseCase.GetConversationMessages(c.Request().Context(), userID, partnerID, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

// SendMessage runs the send pipeline for a one-shot HTTP send.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	partnerID := c.Param("partnerId")
	ctx := c.Request().Context()

	conversationID, err := entity.DeriveConversationID(userID, partnerID)
	if err != nil {
		return response.Error(c, err)
	}

	sender, err := h.chatUseCase.LoadCurrentUser(ctx, userID)
	if err != nil {
		return response.Error(c, err)
	}

	partner, err := h.chatUseCase.GetChatPartner(ctx, partnerID)
	if err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(ctx, sender, partner, conversationID, req.Body)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// MarkConversationRead resets the caller's unread counter for the
// partner in the path.
func (h *ChatHandler) MarkConversationRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	partnerID := c.Param("partnerId")

	if err := h.chatUseCase.MarkConversationRead(c.Request().Context(), userID, partnerID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "ok"})
}
