package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

// Subscription is a live handle on a realtime query. Cancel stops the
// flow of snapshots; it is safe to call more than once.
type Subscription interface {
	Cancel()
}

// MessageRepository is the append-only per-conversation message log.
type MessageRepository interface {
	// Append persists a new message under the conversation. The store
	// assigns the id if empty and the send time on write.
	Append(ctx context.Context, conversationID string, message *entity.Message) error

	// Subscribe opens a realtime subscription over the conversation's
	// messages ordered by send time ascending. Each snapshot delivers the
	// full current result set to onData. onError receives terminal
	// subscription failures; after it fires no further snapshots arrive.
	Subscribe(ctx context.Context, conversationID string, onData func([]*entity.Message), onError func(error)) (Subscription, error)

	// ListByConversation returns the conversation's messages ordered by
	// send time ascending, for one-shot reads. A limit above zero keeps
	// only the most recent messages, still in ascending order.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error)
}

// SummaryRepository maintains the per-user activeChats read model. All
// writes are merge upserts: fields not named here are preserved.
type SummaryRepository interface {
	// RecordOutgoing upserts the sender-owned summary after a send. The
	// owner has implicitly read their own message, so unreadCount is
	// written as a literal 0.
	RecordOutgoing(ctx context.Context, ownerID string, summary *entity.ActiveChatSummary) error

	// RecordIncoming upserts the recipient-owned summary after a send,
	// incrementing unreadCount by 1 atomically on the store side.
	RecordIncoming(ctx context.Context, ownerID string, summary *entity.ActiveChatSummary) error

	// ResetUnread upserts the owner's summary for the partner with
	// unreadCount 0, creating the document if it does not exist yet.
	ResetUnread(ctx context.Context, ownerID, partnerID string) error

	// ListByOwner returns the owner's summaries ordered by last message
	// time descending.
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.ActiveChatSummary, error)

	// Subscribe opens a realtime subscription over the owner's summaries
	// ordered by last message time descending.
	Subscribe(ctx context.Context, ownerID string, onData func([]*entity.ActiveChatSummary), onError func(error)) (Subscription, error)
}
