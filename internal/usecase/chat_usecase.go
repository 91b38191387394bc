package usecase

import (
	"context"
	"strings"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// ChatUseCase implements the message send pipeline and the one-shot
// reads over the message log and the active-chat read model.
type ChatUseCase struct {
	messageRepo repository.MessageRepository
	summaryRepo repository.SummaryRepository
	userRepo    repository.UserRepository
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	messageRepo repository.MessageRepository,
	summaryRepo repository.SummaryRepository,
	userRepo repository.UserRepository,
	sendRateLimit int64,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter(int(sendRateLimit))
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		messageRepo: messageRepo,
		summaryRepo: summaryRepo,
		userRepo:    userRepo,
		rateLimiter: rateLimiter,
	}
}

// SendMessage appends a message and fans out the two summary writes.
//
// Preconditions are checked and reported independently before any store
// access. A blank body is silently dropped. The three writes run as a
// sequence of independent operations: there is no transaction and no
// rollback, so a failure after the append leaves the read model stale
// until the next successful send, which rewrites the same fields.
func (uc *ChatUseCase) SendMessage(ctx context.Context, sender *CurrentUser, partner *entity.ChatPartner, conversationID, body string) (*entity.Message, error) {
	if conversationID == "" {
		return nil, errors.NoConversationSelected()
	}
	if sender == nil || sender.ID == "" {
		return nil, errors.NotAuthenticated()
	}
	if sender.Profile == nil {
		return nil, errors.ProfileNotLoaded()
	}
	if partner == nil || partner.ID == "" {
		return nil, errors.NoPartnerSelected()
	}

	body = strings.TrimSpace(body)
	if body == "" {
		// Blank submits are ignored, not rejected.
		return nil, nil
	}

	allowed, waitTime := uc.rateLimiter.Allow(sender.ID, "send_message")
	if !allowed {
		logger.Warn("SendMessage Rate Limited: User %s must wait %v", sender.ID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	message := &entity.Message{
		SenderID:    sender.ID,
		SenderEmail: sender.Email,
		Body:        body,
	}

	if err := uc.messageRepo.Append(ctx, conversationID, message); err != nil {
		logger.Error("SendMessage Error: Failed to append message to conversation %s: %v", conversationID, err)
		return nil, errors.Internal("Failed to send message", err)
	}

	// Sender-owned summary: the partner column describes the recipient
	// and the sender has implicitly read their own message.
	senderSummary := &entity.ActiveChatSummary{
		ConversationID:      conversationID,
		PartnerID:           partner.ID,
		PartnerName:         partner.DisplayName,
		PartnerEmail:        partner.Email,
		PartnerPhotoURL:     partner.PhotoURL,
		LastMessageText:     body,
		LastMessageSenderID: sender.ID,
	}
	if err := uc.summaryRepo.RecordOutgoing(ctx, sender.ID, senderSummary); err != nil {
		logger.Error("SendMessage Error: Failed to update sender summary for user %s: %v", sender.ID, err)
		return nil, errors.Internal("Failed to send message", err)
	}

	// Recipient-owned summary: the partner column describes the sender
	// and the unread counter is incremented store-side.
	recipientSummary := &entity.ActiveChatSummary{
		ConversationID:      conversationID,
		PartnerID:           sender.ID,
		PartnerName:         sender.Profile.DisplayName,
		PartnerEmail:        sender.Email,
		PartnerPhotoURL:     sender.Profile.PhotoURL,
		LastMessageText:     body,
		LastMessageSenderID: sender.ID,
	}
	if err := uc.summaryRepo.RecordIncoming(ctx, partner.ID, recipientSummary); err != nil {
		logger.Error("SendMessage Error: Failed to update recipient summary for user %s: %v", partner.ID, err)
		return nil, errors.Internal("Failed to send message", err)
	}

	return message, nil
}

// AllowConversationSelect rate limits conversation switching, which
// tears down and rebuilds a listener each time.
func (uc *ChatUseCase) AllowConversationSelect(userID string) error {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "select_conversation")
	if !allowed {
		logger.Warn("SelectConversation Rate Limited: User %s must wait %v", userID, waitTime)
		return errors.TooManyRequests("Too many conversation switches. Please slow down", waitTime)
	}
	return nil
}

// GetActiveChats returns the user's inbox, newest conversation first.
func (uc *ChatUseCase) GetActiveChats(ctx context.Context, userID string) ([]*entity.ActiveChatSummary, error) {
	summaries, err := uc.summaryRepo.ListByOwner(ctx, userID)
	if err != nil {
		logger.Error("GetActiveChats Error: Failed to list active chats for user %s: %v", userID, err)
		return nil, err
	}
	return summaries, nil
}

// GetConversationMessages returns the ordered history between the user
// and a partner. A limit above zero returns only the newest messages.
func (uc *ChatUseCase) GetConversationMessages(ctx context.Context, userID, partnerID string, limit int) ([]*entity.Message, error) {
	conversationID, err := entity.DeriveConversationID(userID, partnerID)
	if err != nil {
		return nil, err
	}

	messages, err := uc.messageRepo.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		logger.Error("GetConversationMessages Error: Failed to get messages for conversation %s: %v", conversationID, err)
		return nil, err
	}
	return messages, nil
}

// MarkConversationRead resets the user's unread counter for a partner.
func (uc *ChatUseCase) MarkConversationRead(ctx context.Context, userID, partnerID string) error {
	if _, err := entity.DeriveConversationID(userID, partnerID); err != nil {
		return err
	}

	if err := uc.summaryRepo.ResetUnread(ctx, userID, partnerID); err != nil {
		logger.Error("MarkConversationRead Error: Failed to reset unread count for user %s partner %s: %v", userID, partnerID, err)
		return err
	}
	return nil
}

// LoadCurrentUser builds the signed-in identity for a verified uid. A
// missing profile document is not an error here; it leaves Profile nil
// and the send pipeline reports ProfileNotLoaded when it matters.
func (uc *ChatUseCase) LoadCurrentUser(ctx context.Context, uid string) (*CurrentUser, error) {
	user, err := uc.userRepo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return &CurrentUser{ID: uid}, nil
		}
		return nil, err
	}

	return &CurrentUser{
		ID:      uid,
		Email:   user.Email,
		Profile: user,
	}, nil
}

// GetChatPartner loads the partner's profile fields needed to open a
// conversation with them.
func (uc *ChatUseCase) GetChatPartner(ctx context.Context, partnerID string) (*entity.ChatPartner, error) {
	user, err := uc.userRepo.GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	return &entity.ChatPartner{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		PhotoURL:    user.PhotoURL,
	}, nil
}
