package entity

import "time"

// ActiveChatSummary is one row of a user's inbox: a denormalized
// projection of the latest state of one conversation, keyed by the
// partner's id within the owner's namespace. Two summaries exist per
// conversation, one per participant; the sender-owned side always has
// UnreadCount 0 while the recipient-owned side counts unread messages
// since the owner last opened the conversation.
type ActiveChatSummary struct {
	ConversationID      string    `json:"conversation_id" firestore:"conversationId"`
	PartnerID           string    `json:"partner_id" firestore:"partnerId"`
	PartnerName         string    `json:"partner_name" firestore:"partnerName"`
	PartnerEmail        string    `json:"partner_email,omitempty" firestore:"partnerEmail,omitempty"`
	PartnerPhotoURL     string    `json:"partner_photo_url,omitempty" firestore:"partnerPhotoUrl,omitempty"`
	LastMessageText     string    `json:"last_message_text" firestore:"lastMessageText"`
	LastMessageSenderID string    `json:"last_message_sender_id" firestore:"lastMessageSenderId"`
	LastMessageTime     time.Time `json:"last_message_time" firestore:"lastMessageTime"`
	UnreadCount         int64     `json:"unread_count" firestore:"unreadCount"`
}
