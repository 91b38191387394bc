package repository

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

type firestoreSummaryRepository struct {
	client *firestore.Client
}

func NewFirestoreSummaryRepository(client *firestore.Client) repository.SummaryRepository {
	return &firestoreSummaryRepository{
		client: client,
	}
}

func (r *firestoreSummaryRepository) summaryDoc(ownerID, partnerID string) *firestore.DocumentRef {
	return r.client.Collection("users").Doc(ownerID).Collection("activeChats").Doc(partnerID)
}

func (r *firestoreSummaryRepository) activeChats(ownerID string) firestore.Query {
	return r.client.Collection("users").Doc(ownerID).Collection("activeChats").
		OrderBy("lastMessageTime", firestore.Desc)
}

// lastMessageFields are shared by both sides of the dual write. The
// summary is a merge upsert: fields another subsystem put on the
// document stay untouched.
func lastMessageFields(summary *entity.ActiveChatSummary) map[string]interface{} {
	return map[string]interface{}{
		"conversationId":      summary.ConversationID,
		"partnerId":           summary.PartnerID,
		"partnerName":         summary.PartnerName,
		"partnerEmail":        summary.PartnerEmail,
		"partnerPhotoUrl":     summary.PartnerPhotoURL,
		"lastMessageText":     summary.LastMessageText,
		"lastMessageSenderId": summary.LastMessageSenderID,
		"lastMessageTime":     firestore.ServerTimestamp,
	}
}

func (r *firestoreSummaryRepository) RecordOutgoing(ctx context.Context, ownerID string, summary *entity.ActiveChatSummary) error {
	fields := lastMessageFields(summary)
	// The sender has already seen their own message.
	fields["unreadCount"] = 0

	_, err := r.summaryDoc(ownerID, summary.PartnerID).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update sender chat summary", err)
	}
	return nil
}

func (r *firestoreSummaryRepository) RecordIncoming(ctx context.Context, ownerID string, summary *entity.ActiveChatSummary) error {
	fields := lastMessageFields(summary)
	// Atomic increment: correct under concurrent senders and multiple
	// devices, unlike a read-modify-write of the counter.
	fields["unreadCount"] = firestore.Increment(1)

	_, err := r.summaryDoc(ownerID, summary.PartnerID).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update recipient chat summary", err)
	}
	return nil
}

func (r *firestoreSummaryRepository) ResetUnread(ctx context.Context, ownerID, partnerID string) error {
	_, err := r.summaryDoc(ownerID, partnerID).Set(ctx, map[string]interface{}{
		"unreadCount": 0,
	}, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to reset unread count", err)
	}
	return nil
}

func (r *firestoreSummaryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entity.ActiveChatSummary, error) {
	iter := r.activeChats(ownerID).Documents(ctx)
	defer iter.Stop()

	var summaries []*entity.ActiveChatSummary
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating active chats for user %s: %v", ownerID, err)
			return nil, errors.Internal("Failed to iterate active chats", err)
		}

		summary, err := decodeSummary(doc)
		if err != nil {
			log.Printf("Error parsing active chat data for user %s: %v", ownerID, err)
			continue
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (r *firestoreSummaryRepository) Subscribe(ctx context.Context, ownerID string, onData func([]*entity.ActiveChatSummary), onError func(error)) (repository.Subscription, error) {
	if ownerID == "" {
		return nil, errors.NotAuthenticated()
	}

	ctx, cancel := context.WithCancel(ctx)
	snapshots := r.activeChats(ownerID).Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				log.Printf("Active chat subscription error for user %s: %v", ownerID, err)
				onError(errors.Internal("Active chat subscription failed", err))
				return
			}

			summaries, err := collectSummaries(snap.Documents)
			if err != nil {
				log.Printf("Error parsing active chat snapshot for user %s: %v", ownerID, err)
				onError(errors.Internal("Failed to parse active chat snapshot", err))
				return
			}
			onData(summaries)
		}
	}()

	return newListenerHandle(cancel), nil
}

func collectSummaries(docs *firestore.DocumentIterator) ([]*entity.ActiveChatSummary, error) {
	defer docs.Stop()

	summaries := make([]*entity.ActiveChatSummary, 0)
	for {
		doc, err := docs.Next()
		if err == iterator.Done {
			return summaries, nil
		}
		if err != nil {
			return nil, err
		}

		summary, err := decodeSummary(doc)
		if err != nil {
			// Skip malformed documents instead of failing the snapshot.
			log.Printf("Skipping malformed active chat document %s: %v", doc.Ref.ID, err)
			continue
		}
		summaries = append(summaries, summary)
	}
}

func decodeSummary(doc *firestore.DocumentSnapshot) (*entity.ActiveChatSummary, error) {
	var summary entity.ActiveChatSummary
	if err := doc.DataTo(&summary); err != nil {
		return nil, err
	}
	if summary.PartnerID == "" {
		summary.PartnerID = doc.Ref.ID
	}
	return &summary, nil
}
