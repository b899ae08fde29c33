package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"pingme/internal/app/dto"
	chatsvc "pingme/internal/app/services/chat"
	domainchat "pingme/internal/domain/chat"
	domainuser "pingme/internal/domain/user"
)

// ChatHandler exposes the chat endpoints.
type ChatHandler struct {
	Service *chatsvc.Service
	Logger  *slog.Logger
}

type sendMessageRequest struct {
	Content  string `json:"content"`
	SenderID string `json:"sender_id"`
}

type findOrCreateChatRequest struct {
	UserID      string `json:"user_id"`
	OtherUserID string `json:"other_user_id"`
}

// SendMessage appends a message to a chat and returns it with the sender
// resolved.
func (h ChatHandler) SendMessage(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}
	chatID := strings.TrimSpace(c.Param("chatId"))
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id is required"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content and sender_id are required"})
		return
	}
	if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.SenderID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content and sender_id are required"})
		return
	}

	msg, err := h.Service.AppendMessage(c.Request.Context(), domainchat.ID(chatID), domainuser.ID(req.SenderID), req.Content)
	if err != nil {
		h.respondChatError(c, err, "send message", "chat_id", chatID)
		return
	}
	c.JSON(http.StatusCreated, dto.MessageResponse{Message: mapMessage(*msg)})
}

// GetChat returns a chat with its messages resolved.
func (h ChatHandler) GetChat(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}
	chatID := strings.TrimSpace(c.Param("chatId"))
	resolved, err := h.Service.GetChat(c.Request.Context(), domainchat.ID(chatID))
	if err != nil {
		h.respondChatError(c, err, "load chat", "chat_id", chatID)
		return
	}
	c.JSON(http.StatusOK, dto.ChatResponse{Chat: mapChat(resolved, true)})
}

// ListChats returns the user's chats, most recently active first.
func (h ChatHandler) ListChats(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	chats, err := h.Service.ListChatsForUser(c.Request.Context(), domainuser.ID(userID))
	if err != nil {
		h.respondChatError(c, err, "list chats", "user_id", userID)
		return
	}
	list := dto.ChatList{Chats: make([]dto.Chat, 0, len(chats))}
	for i := range chats {
		list.Chats = append(list.Chats, mapChat(&chats[i], false))
	}
	c.JSON(http.StatusOK, list)
}

// FindOrCreateChat opens the chat between two users, creating it on first
// contact. Responds 201 only when the chat was just created.
func (h ChatHandler) FindOrCreateChat(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}
	var req findOrCreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and other_user_id are required"})
		return
	}
	resolved, isNew, err := h.Service.FindOrCreateChat(c.Request.Context(), domainuser.ID(req.UserID), domainuser.ID(req.OtherUserID))
	if err != nil {
		h.respondChatError(c, err, "find or create chat", "user_id", req.UserID, "other_user_id", req.OtherUserID)
		return
	}
	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	c.JSON(status, dto.FindOrCreateChatResponse{Chat: mapChat(resolved, false), IsNew: isNew})
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, op string, args ...any) {
	switch {
	case errors.Is(err, domainchat.ErrNotFound), errors.Is(err, domainuser.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domainchat.ErrEmptyContent),
		errors.Is(err, domainchat.ErrSenderRequired),
		errors.Is(err, domainchat.ErrParticipantMissing),
		errors.Is(err, domainchat.ErrSameParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainchat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
	default:
		if h.Logger != nil {
			h.Logger.Error(op+" failed", append([]any{"error", err}, args...)...)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func mapChat(rc *chatsvc.ResolvedChat, withMessages bool) dto.Chat {
	participants := make([]dto.UserRef, 0, len(rc.Participants))
	for i := range rc.Participants {
		participants = append(participants, dto.MapUserRef(&rc.Participants[i]))
	}
	out := dto.Chat{
		ID:           string(rc.Chat.ID),
		Participants: participants,
		LastMessage:  rc.Chat.LastMessage,
		CreatedAt:    rc.Chat.CreatedAt,
	}
	if !rc.Chat.LastMessageTime.IsZero() {
		t := rc.Chat.LastMessageTime
		out.LastMessageTime = &t
	}
	if withMessages {
		out.Messages = make([]dto.ChatMessage, 0, len(rc.Messages))
		for _, rm := range rc.Messages {
			out.Messages = append(out.Messages, mapMessage(rm))
		}
	}
	return out
}

func mapMessage(rm chatsvc.ResolvedMessage) dto.ChatMessage {
	return dto.ChatMessage{
		ID:        string(rm.Message.ID),
		ChatID:    string(rm.Message.ChatID),
		Sender:    dto.MapUserRef(&rm.Sender),
		Content:   rm.Message.Content,
		Timestamp: rm.Message.Timestamp,
	}
}

var _ ChatHTTP = ChatHandler{}
