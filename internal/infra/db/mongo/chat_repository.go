package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "pingme/internal/domain/chat"
	domainuser "pingme/internal/domain/user"
)

type ChatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{col: db.Collection("chats")}
}

// EnsureIndexes creates the unique pair-key index that serializes
// find-or-create across concurrent first-contact requests.
func (r *ChatRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "participants", Value: 1}},
		},
	})
	return err
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	var doc chatDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) ByPairKey(ctx context.Context, key string) (*domainchat.Chat, error) {
	var doc chatDocument
	if err := r.col.FindOne(ctx, bson.M{"pair_key": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) Create(ctx context.Context, chat *domainchat.Chat) error {
	doc := newChatDocument(chat)
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// AppendMessage pushes the message reference and refreshes the summary
// fields in a single document update. The timestamp guard keeps the summary
// from regressing when a newer append has already committed; in that case a
// second update pushes the reference alone.
func (r *ChatRepository) AppendMessage(ctx context.Context, id domainchat.ID, msgID domainchat.MessageID, content string, at time.Time) error {
	ts := timeToTimestamp(at)
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": string(id), "last_message_time": bson.M{"$lte": ts}},
		bson.M{
			"$push": bson.M{"message_ids": string(msgID)},
			"$set":  bson.M{"last_message": content, "last_message_time": ts},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	res, err = r.col.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$push": bson.M{"message_ids": string(msgID)}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrNotFound
	}
	return nil
}

func (r *ChatRepository) ByParticipant(ctx context.Context, userID domainuser.ID) ([]domainchat.Chat, error) {
	cursor, err := r.col.Find(ctx, bson.M{"participants": string(userID)})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chats []domainchat.Chat
	for cursor.Next(ctx) {
		var doc chatDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		chats = append(chats, *doc.toAggregate())
	}
	return chats, cursor.Err()
}

type chatDocument struct {
	ID              string   `bson:"_id"`
	Participants    []string `bson:"participants"`
	PairKey         string   `bson:"pair_key"`
	MessageIDs      []string `bson:"message_ids"`
	LastMessage     string   `bson:"last_message"`
	LastMessageTime int64    `bson:"last_message_time"`
	CreatedAt       int64    `bson:"created_at"`
}

func newChatDocument(c *domainchat.Chat) chatDocument {
	participants := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, string(p))
	}
	messageIDs := make([]string, 0, len(c.MessageIDs))
	for _, m := range c.MessageIDs {
		messageIDs = append(messageIDs, string(m))
	}
	return chatDocument{
		ID:              string(c.ID),
		Participants:    participants,
		PairKey:         c.PairKey,
		MessageIDs:      messageIDs,
		LastMessage:     c.LastMessage,
		LastMessageTime: timeToTimestamp(c.LastMessageTime),
		CreatedAt:       timeToTimestamp(c.CreatedAt),
	}
}

func (d chatDocument) toAggregate() *domainchat.Chat {
	participants := make([]domainuser.ID, 0, len(d.Participants))
	for _, p := range d.Participants {
		participants = append(participants, domainuser.ID(p))
	}
	messageIDs := make([]domainchat.MessageID, 0, len(d.MessageIDs))
	for _, m := range d.MessageIDs {
		messageIDs = append(messageIDs, domainchat.MessageID(m))
	}
	return &domainchat.Chat{
		ID:              domainchat.ID(d.ID),
		Participants:    participants,
		PairKey:         d.PairKey,
		MessageIDs:      messageIDs,
		LastMessage:     d.LastMessage,
		LastMessageTime: timestampToTime(d.LastMessageTime),
		CreatedAt:       timestampToTime(d.CreatedAt),
	}
}
