package dto

import "time"

// ChatMessage contains a single message payload with its sender resolved.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Sender    UserRef   `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat describes a conversation. Messages is populated only when a single
// chat is fetched; list responses carry the summary fields instead.
type Chat struct {
	ID              string        `json:"id"`
	Participants    []UserRef     `json:"participants"`
	Messages        []ChatMessage `json:"messages,omitempty"`
	LastMessage     string        `json:"last_message,omitempty"`
	LastMessageTime *time.Time    `json:"last_message_time,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

type ChatResponse struct {
	Chat Chat `json:"chat"`
}

type ChatList struct {
	Chats []Chat `json:"chats"`
}

type FindOrCreateChatResponse struct {
	Chat  Chat `json:"chat"`
	IsNew bool `json:"is_new"`
}

type MessageResponse struct {
	Message ChatMessage `json:"message"`
}
