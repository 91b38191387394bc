package entity

import (
	"marketchat/pkg/errors"
)

// ConversationIDSeparator joins the two participant ids into a
// conversation key. The key is derived, never stored as its own
// document, so both participants compute the same value locally.
const ConversationIDSeparator = "_"

// DeriveConversationID returns the canonical key for the conversation
// between two users. The key is commutative: DeriveConversationID(a, b)
// and DeriveConversationID(b, a) are identical. Both ids must be
// non-empty and distinct; violations fail before any store access.
func DeriveConversationID(selfID, partnerID string) (string, error) {
	if selfID == "" || partnerID == "" {
		return "", errors.InvalidParticipants("Both participant ids are required")
	}
	if selfID == partnerID {
		return "", errors.InvalidParticipants("A conversation requires two distinct participants")
	}

	if partnerID < selfID {
		selfID, partnerID = partnerID, selfID
	}
	return selfID + ConversationIDSeparator + partnerID, nil
}
