package entity

import "time"

// User is the profile document behind a stable auth uid. The chat core
// only reads the fields it denormalizes into summaries; everything else
// on the document belongs to other subsystems and is preserved by the
// merge writes.
type User struct {
	ID          string    `json:"id" firestore:"id"`
	Email       string    `json:"email" firestore:"email"`
	DisplayName string    `json:"display_name" firestore:"displayName"`
	PhotoURL    string    `json:"photo_url,omitempty" firestore:"photoUrl,omitempty"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}

// ChatPartner is the subset of a profile the session controller needs to
// open a conversation and label its summary rows.
type ChatPartner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}
