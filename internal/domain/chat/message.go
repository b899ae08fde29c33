package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	domainuser "pingme/internal/domain/user"
)

var (
	ErrEmptyContent    = errors.New("chat: message content is required")
	ErrSenderRequired  = errors.New("chat: message sender is required")
	ErrMessageNotFound = errors.New("chat: message not found")
)

type MessageID string

// Message is immutable once created. Timestamp defaults to creation time.
type Message struct {
	ID        MessageID
	ChatID    ID
	SenderID  domainuser.ID
	Content   string
	Timestamp time.Time
}

type MessageRepository interface {
	Insert(ctx context.Context, msg *Message) error
	// ByChat returns a chat's messages in chronological order.
	ByChat(ctx context.Context, chatID ID) ([]Message, error)
}

type MessageParams struct {
	ID        MessageID
	ChatID    ID
	SenderID  domainuser.ID
	Content   string
	Timestamp time.Time
}

func NewMessage(params MessageParams) (*Message, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, errors.New("chat: message id is required")
	}
	chatID := strings.TrimSpace(string(params.ChatID))
	if chatID == "" {
		return nil, ErrNotFound
	}
	sender := domainuser.ID(strings.TrimSpace(string(params.SenderID)))
	if sender == "" {
		return nil, ErrSenderRequired
	}
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	ts := params.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Message{
		ID:        MessageID(id),
		ChatID:    ID(chatID),
		SenderID:  sender,
		Content:   content,
		Timestamp: ts.UTC(),
	}, nil
}
