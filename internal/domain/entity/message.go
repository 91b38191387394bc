package entity

import "time"

// Message is one entry in a conversation's append-only log. Messages are
// never updated or deleted; SentAt is assigned by the store on write so
// ordering within a conversation does not depend on client clocks.
type Message struct {
	ID          string    `json:"id" firestore:"id"`
	SenderID    string    `json:"sender_id" firestore:"senderId"`
	SenderEmail string    `json:"sender_email" firestore:"senderEmail"`
	Body        string    `json:"body" firestore:"body"`
	SentAt      time.Time `json:"sent_at" firestore:"sentAt,serverTimestamp"`
}
