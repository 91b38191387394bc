package repository

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.client.Collection("conversations").Doc(conversationID).Collection("messages")
}

// orderedQuery orders by send time ascending with the document id as
// tie-break, so two messages sharing a server timestamp still have a
// total order.
func (r *firestoreMessageRepository) orderedQuery(conversationID string) firestore.Query {
	return r.messages(conversationID).
		OrderBy("sentAt", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
}

func (r *firestoreMessageRepository) Append(ctx context.Context, conversationID string, message *entity.Message) error {
	if conversationID == "" {
		return errors.NoConversationSelected()
	}
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	// SentAt carries the serverTimestamp tag: the zero value is replaced
	// by the store's own clock on write.
	_, err := r.messages(conversationID).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*entity.Message, error) {
	query := r.orderedQuery(conversationID)
	if limit > 0 {
		// LimitToLast keeps the tail of the ascending order, so the
		// result is the newest messages in chronological order.
		query = query.LimitToLast(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		message, err := decodeMessage(doc)
		if err != nil {
			log.Printf("Error parsing message data for conversation %s: %v", conversationID, err)
			return nil, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, message)
	}

	return messages, nil
}

func (r *firestoreMessageRepository) Subscribe(ctx context.Context, conversationID string, onData func([]*entity.Message), onError func(error)) (repository.Subscription, error) {
	if conversationID == "" {
		return nil, errors.NoConversationSelected()
	}

	ctx, cancel := context.WithCancel(ctx)
	snapshots := r.orderedQuery(conversationID).Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				log.Printf("Message subscription error for conversation %s: %v", conversationID, err)
				onError(errors.Internal("Message subscription failed", err))
				return
			}

			messages, err := collectMessages(snap.Documents)
			if err != nil {
				log.Printf("Error parsing message snapshot for conversation %s: %v", conversationID, err)
				onError(errors.Internal("Failed to parse message snapshot", err))
				return
			}
			onData(messages)
		}
	}()

	return newListenerHandle(cancel), nil
}

func collectMessages(docs *firestore.DocumentIterator) ([]*entity.Message, error) {
	defer docs.Stop()

	messages := make([]*entity.Message, 0)
	for {
		doc, err := docs.Next()
		if err == iterator.Done {
			return messages, nil
		}
		if err != nil {
			return nil, err
		}

		message, err := decodeMessage(doc)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, err
	}
	message.ID = doc.Ref.ID
	return &message, nil
}
