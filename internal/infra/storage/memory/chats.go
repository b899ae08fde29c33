package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainchat "pingme/internal/domain/chat"
	domainuser "pingme/internal/domain/user"
)

// ChatRepository stores chats in memory. The mutex serializes the
// check-then-create sequence, which is what keeps the pair key unique under
// concurrent first-contact.
type ChatRepository struct {
	mu        sync.RWMutex
	byID      map[domainchat.ID]*domainchat.Chat
	byPairKey map[string]domainchat.ID
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{
		byID:      make(map[domainchat.ID]*domainchat.Chat),
		byPairKey: make(map[string]domainchat.ID),
	}
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byID[id]; ok {
		return cloneChat(c), nil
	}
	return nil, domainchat.ErrNotFound
}

func (r *ChatRepository) ByPairKey(ctx context.Context, key string) (*domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPairKey[key]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	if c, ok := r.byID[id]; ok {
		return cloneChat(c), nil
	}
	return nil, domainchat.ErrNotFound
}

func (r *ChatRepository) Create(ctx context.Context, chat *domainchat.Chat) error {
	if chat == nil || chat.ID == "" {
		return domainchat.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPairKey[chat.PairKey]; ok {
		return domainchat.ErrAlreadyExists
	}
	r.byPairKey[chat.PairKey] = chat.ID
	r.byID[chat.ID] = cloneChat(chat)
	return nil
}

func (r *ChatRepository) AppendMessage(ctx context.Context, id domainchat.ID, msgID domainchat.MessageID, content string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return domainchat.ErrNotFound
	}
	c.MessageIDs = append(c.MessageIDs, msgID)
	// Concurrent appends may commit out of timestamp order; the summary keeps
	// the newest message only.
	if !at.Before(c.LastMessageTime) {
		c.LastMessage = content
		c.LastMessageTime = at
	}
	return nil
}

func (r *ChatRepository) ByParticipant(ctx context.Context, userID domainuser.ID) ([]domainchat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chats := make([]domainchat.Chat, 0)
	for _, c := range r.byID {
		if c.HasParticipant(userID) {
			chats = append(chats, *cloneChat(c))
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	return chats, nil
}

func cloneChat(c *domainchat.Chat) *domainchat.Chat {
	if c == nil {
		return nil
	}
	copyChat := *c
	copyChat.Participants = append([]domainuser.ID(nil), c.Participants...)
	copyChat.MessageIDs = append([]domainchat.MessageID(nil), c.MessageIDs...)
	return &copyChat
}

// MessageRepository stores messages in memory, ordered per chat.
type MessageRepository struct {
	mu     sync.RWMutex
	byChat map[domainchat.ID][]domainchat.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{byChat: make(map[domainchat.ID][]domainchat.Message)}
}

func (r *MessageRepository) Insert(ctx context.Context, msg *domainchat.Message) error {
	if msg == nil || msg.ID == "" {
		return domainchat.ErrMessageNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byChat[msg.ChatID] = append(r.byChat[msg.ChatID], *msg)
	return nil
}

func (r *MessageRepository) ByChat(ctx context.Context, chatID domainchat.ID) ([]domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := append([]domainchat.Message(nil), r.byChat[chatID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs, nil
}
