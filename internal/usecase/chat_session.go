package usecase

import (
	"context"
	"sync"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// ChatSession is the per-connection controller for one user's chat
// state: the selected partner, the single live message subscription and
// the standing inbox subscription. The subscription handles are owned
// exclusively by the session; replacing the active conversation cancels
// the previous handle before a new one is opened, so at most one message
// subscription is ever live and messages from an abandoned conversation
// cannot leak into the new one.
type ChatSession struct {
	identity    IdentityProvider
	chat        *ChatUseCase
	messageRepo repository.MessageRepository
	summaryRepo repository.SummaryRepository
	sink        EventSink

	mu             sync.Mutex
	ctx            context.Context
	partner        *entity.ChatPartner
	conversationID string
	active         repository.Subscription
	inbox          repository.Subscription
	unregister     func()
	closed         bool
}

func NewChatSession(
	identity IdentityProvider,
	chat *ChatUseCase,
	messageRepo repository.MessageRepository,
	summaryRepo repository.SummaryRepository,
	sink EventSink,
) *ChatSession {
	return &ChatSession{
		identity:    identity,
		chat:        chat,
		messageRepo: messageRepo,
		summaryRepo: summaryRepo,
		sink:        sink,
		ctx:         context.Background(),
	}
}

// Start binds the session to its lifetime context, follows identity
// changes and opens the inbox subscription if a user is signed in.
// Starting a session that is already closed is a no-op, so a connection
// dropping mid-startup cannot leak the identity listener.
func (s *ChatSession) Start(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.ctx = ctx
	s.unregister = s.identity.OnChange(s.handleIdentityChange)
	s.mu.Unlock()

	if _, ok := s.identity.CurrentUser(); ok {
		s.ListenToActiveChats(ctx)
	}
}

// SelectConversation makes the partner's conversation the active one:
// the previous message subscription is cancelled first, the displayed
// list is cleared, a new subscription ordered by send time is opened and
// the caller's own unread counter for this partner is reset.
//
// Precondition failures are surfaced through the sink and leave the
// session state untouched.
func (s *ChatSession) SelectConversation(partner *entity.ChatPartner) error {
	user, ok := s.identity.CurrentUser()
	if !ok {
		return s.reject(errors.NotAuthenticated())
	}
	if partner == nil || partner.ID == "" {
		return s.reject(errors.NoPartnerSelected())
	}
	if partner.ID == user.ID {
		// Rejected before key derivation and before any store access.
		return s.reject(errors.SelfChatRejected())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.NotAuthenticated()
	}

	// Replace-releases-previous: the old handle is cancelled before the
	// new subscription is established.
	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}

	conversationID, err := entity.DeriveConversationID(user.ID, partner.ID)
	if err != nil {
		s.sink.OnError(err)
		return err
	}

	s.partner = partner
	s.conversationID = conversationID

	s.sink.OnMessages([]*entity.Message{})
	s.sink.OnLoading(true)

	sub, err := s.messageRepo.Subscribe(s.ctx, conversationID,
		func(messages []*entity.Message) {
			// Snapshots carry the full current result set, so the list
			// is replaced wholesale rather than patched.
			s.sink.OnMessages(messages)
			s.sink.OnLoading(false)
		},
		func(err error) {
			// Keep whatever is already rendered; a transient failure
			// should not erase history the user can see.
			s.sink.OnLoading(false)
			s.sink.OnError(err)
		},
	)
	if err != nil {
		s.sink.OnLoading(false)
		s.sink.OnError(err)
		return err
	}
	s.active = sub

	// Best-effort badge reset. Failure is logged, never surfaced, and
	// does not affect the subscription just opened.
	go func() {
		if err := s.summaryRepo.ResetUnread(s.ctx, user.ID, partner.ID); err != nil {
			logger.Warn("SelectConversation: Failed to reset unread count for user %s partner %s: %v", user.ID, partner.ID, err)
		}
	}()

	return nil
}

// Send routes a message through the send pipeline using the session's
// selected conversation as context. Pipeline failures are surfaced
// through the sink.
func (s *ChatSession) Send(ctx context.Context, body string) error {
	s.mu.Lock()
	partner := s.partner
	conversationID := s.conversationID
	s.mu.Unlock()

	user, _ := s.identity.CurrentUser()

	if _, err := s.chat.SendMessage(ctx, user, partner, conversationID, body); err != nil {
		s.sink.OnError(err)
		return err
	}
	return nil
}

// LeaveConversation cancels the active message subscription, if any.
// Safe to call when none is active.
func (s *ChatSession) LeaveConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
	s.partner = nil
	s.conversationID = ""
}

// ListenToActiveChats opens the standing inbox subscription, replacing
// any previous one. It runs for the lifetime of the signed-in identity.
func (s *ChatSession) ListenToActiveChats(ctx context.Context) error {
	user, ok := s.identity.CurrentUser()
	if !ok {
		return s.reject(errors.NotAuthenticated())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.NotAuthenticated()
	}

	if s.inbox != nil {
		s.inbox.Cancel()
		s.inbox = nil
	}

	sub, err := s.summaryRepo.Subscribe(ctx, user.ID,
		func(summaries []*entity.ActiveChatSummary) {
			s.sink.OnActiveChats(summaries)
		},
		func(err error) {
			s.sink.OnError(err)
		},
	)
	if err != nil {
		s.sink.OnError(err)
		return err
	}
	s.inbox = sub

	return nil
}

// handleIdentityChange tears down everything bound to the previous
// identity. A new signed-in user gets a fresh inbox subscription; a
// sign-out clears the inbox and holds no subscriptions at all.
func (s *ChatSession) handleIdentityChange(user *CurrentUser) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx

	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
	s.partner = nil
	s.conversationID = ""

	if s.inbox != nil {
		s.inbox.Cancel()
		s.inbox = nil
	}

	if user == nil {
		s.mu.Unlock()
		s.sink.OnActiveChats([]*entity.ActiveChatSummary{})
		return
	}

	sub, err := s.summaryRepo.Subscribe(ctx, user.ID,
		func(summaries []*entity.ActiveChatSummary) {
			s.sink.OnActiveChats(summaries)
		},
		func(err error) {
			s.sink.OnError(err)
		},
	)
	if err != nil {
		s.mu.Unlock()
		s.sink.OnError(err)
		return
	}
	s.inbox = sub
	s.mu.Unlock()
}

// Close tears the session down: both subscriptions are cancelled and
// the identity listener is unregistered. Idempotent.
func (s *ChatSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	active := s.active
	inbox := s.inbox
	unregister := s.unregister
	s.active = nil
	s.inbox = nil
	s.partner = nil
	s.conversationID = ""
	s.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
	if inbox != nil {
		inbox.Cancel()
	}
	if unregister != nil {
		unregister()
	}
}

// SelectedPartner returns the currently selected partner, if any.
func (s *ChatSession) SelectedPartner() (*entity.ChatPartner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.partner == nil {
		return nil, false
	}
	return s.partner, true
}

func (s *ChatSession) reject(err *errors.AppError) error {
	s.sink.OnError(err)
	return err
}
