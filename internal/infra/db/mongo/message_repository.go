package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "pingme/internal/domain/chat"
	domainuser "pingme/internal/domain/user"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection("messages")}
}

// EnsureIndexes creates the compound (chat_id, timestamp) index that backs
// ordered retrieval of a chat's messages.
func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}

func (r *MessageRepository) Insert(ctx context.Context, msg *domainchat.Message) error {
	_, err := r.col.InsertOne(ctx, newMessageDocument(msg))
	return err
}

func (r *MessageRepository) ByChat(ctx context.Context, chatID domainchat.ID) ([]domainchat.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"chat_id": string(chatID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []domainchat.Message
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		msgs = append(msgs, *doc.toAggregate())
	}
	return msgs, cursor.Err()
}

type messageDocument struct {
	ID        string `bson:"_id"`
	ChatID    string `bson:"chat_id"`
	SenderID  string `bson:"sender_id"`
	Content   string `bson:"content"`
	Timestamp int64  `bson:"timestamp"`
}

func newMessageDocument(m *domainchat.Message) messageDocument {
	return messageDocument{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		SenderID:  string(m.SenderID),
		Content:   m.Content,
		Timestamp: timeToTimestamp(m.Timestamp),
	}
}

func (d messageDocument) toAggregate() *domainchat.Message {
	return &domainchat.Message{
		ID:        domainchat.MessageID(d.ID),
		ChatID:    domainchat.ID(d.ChatID),
		SenderID:  domainuser.ID(d.SenderID),
		Content:   d.Content,
		Timestamp: timestampToTime(d.Timestamp),
	}
}
