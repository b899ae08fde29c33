package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pingme/internal/app/events"
	domainchat "pingme/internal/domain/chat"
	domainuser "pingme/internal/domain/user"
)

// Service owns all chat mutations. It is the sole writer of a chat's
// summary fields.
type Service struct {
	Chats     domainchat.Repository
	Messages  domainchat.MessageRepository
	Users     domainuser.Repository
	Publisher events.Publisher
	Clock     func() time.Time
	Logger    *slog.Logger
}

// ResolvedMessage pairs a message with its sender projection so a caller
// does not need a second lookup.
type ResolvedMessage struct {
	Message domainchat.Message
	Sender  domainuser.User
}

// ResolvedChat carries a chat with participants resolved. Messages is
// populated by GetChat and left nil by ListChatsForUser.
type ResolvedChat struct {
	Chat         domainchat.Chat
	Participants []domainuser.User
	Messages     []ResolvedMessage
}

// FindOrCreateChat returns the chat for the unordered pair {userID, otherID},
// creating it on first contact. The pair-key uniqueness constraint of the
// repository resolves concurrent first-contact: losers of the race refetch
// the winner's chat.
func (s *Service) FindOrCreateChat(ctx context.Context, userID, otherID domainuser.ID) (*ResolvedChat, bool, error) {
	a := domainuser.ID(strings.TrimSpace(string(userID)))
	b := domainuser.ID(strings.TrimSpace(string(otherID)))
	if a == "" || b == "" {
		return nil, false, domainchat.ErrParticipantMissing
	}
	if a == b {
		return nil, false, domainchat.ErrSameParticipant
	}

	userA, err := s.Users.ByID(ctx, a)
	if err != nil {
		return nil, false, fmt.Errorf("resolve participant %s: %w", a, err)
	}
	userB, err := s.Users.ByID(ctx, b)
	if err != nil {
		return nil, false, fmt.Errorf("resolve participant %s: %w", b, err)
	}

	key := domainchat.PairKey(a, b)
	existing, err := s.Chats.ByPairKey(ctx, key)
	if err == nil {
		return &ResolvedChat{Chat: *existing, Participants: []domainuser.User{*userA, *userB}}, false, nil
	}
	if !errors.Is(err, domainchat.ErrNotFound) {
		return nil, false, err
	}

	created, err := domainchat.NewChat(domainchat.CreateParams{
		ID:        domainchat.ID(uuid.NewString()),
		UserA:     a,
		UserB:     b,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, false, err
	}
	if err := s.Chats.Create(ctx, created); err != nil {
		if errors.Is(err, domainchat.ErrAlreadyExists) {
			winner, lookupErr := s.Chats.ByPairKey(ctx, key)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return &ResolvedChat{Chat: *winner, Participants: []domainuser.User{*userA, *userB}}, false, nil
		}
		return nil, false, err
	}

	s.publish(ctx, events.Event{
		Name:       events.ChatCreatedName,
		Key:        string(created.ID),
		OccurredAt: created.CreatedAt,
		Data: events.ChatCreated{
			ChatID:       string(created.ID),
			Participants: []string{string(a), string(b)},
			CreatedAt:    created.CreatedAt.UnixMilli(),
		},
	})
	if s.Logger != nil {
		s.Logger.Info("chat created", "chat_id", created.ID, "participants", created.Participants)
	}
	return &ResolvedChat{Chat: *created, Participants: []domainuser.User{*userA, *userB}}, true, nil
}

// AppendMessage creates a message, appends its reference to the chat and
// refreshes the summary fields in one atomic repository update.
func (s *Service) AppendMessage(ctx context.Context, chatID domainchat.ID, senderID domainuser.ID, content string) (*ResolvedMessage, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, domainchat.ErrEmptyContent
	}
	sender := domainuser.ID(strings.TrimSpace(string(senderID)))
	if sender == "" {
		return nil, domainchat.ErrSenderRequired
	}

	target, err := s.Chats.ByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !target.HasParticipant(sender) {
		return nil, domainchat.ErrNotParticipant
	}
	senderUser, err := s.Users.ByID(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("resolve sender %s: %w", sender, err)
	}

	msg, err := domainchat.NewMessage(domainchat.MessageParams{
		ID:        domainchat.MessageID(uuid.NewString()),
		ChatID:    target.ID,
		SenderID:  sender,
		Content:   trimmed,
		Timestamp: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Messages.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	if err := s.Chats.AppendMessage(ctx, target.ID, msg.ID, msg.Content, msg.Timestamp); err != nil {
		return nil, fmt.Errorf("update chat summary: %w", err)
	}

	s.publish(ctx, events.Event{
		Name:       events.MessageSentName,
		Key:        string(target.ID),
		OccurredAt: msg.Timestamp,
		Data: events.MessageSent{
			MessageID: string(msg.ID),
			ChatID:    string(target.ID),
			SenderID:  string(sender),
			Timestamp: msg.Timestamp.UnixMilli(),
		},
	})
	return &ResolvedMessage{Message: *msg, Sender: *senderUser}, nil
}

// GetChat loads a chat with its messages resolved in chronological order and
// every sender resolved to a user projection.
func (s *Service) GetChat(ctx context.Context, chatID domainchat.ID) (*ResolvedChat, error) {
	target, err := s.Chats.ByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	participants, err := s.resolveParticipants(ctx, target)
	if err != nil {
		return nil, err
	}
	msgs, err := s.Messages.ByChat(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	byID := make(map[domainuser.ID]domainuser.User, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	resolved := make([]ResolvedMessage, 0, len(msgs))
	for _, m := range msgs {
		sender, ok := byID[m.SenderID]
		if !ok {
			// Sender left the participant map in a corrupt store; surface the
			// message with an id-only projection rather than dropping it.
			sender = domainuser.User{ID: m.SenderID}
		}
		resolved = append(resolved, ResolvedMessage{Message: m, Sender: sender})
	}
	return &ResolvedChat{Chat: *target, Participants: participants, Messages: resolved}, nil
}

// ListChatsForUser returns the user's chats ordered most recently active
// first. Chats without messages come last, newest created first.
func (s *Service) ListChatsForUser(ctx context.Context, userID domainuser.ID) ([]ResolvedChat, error) {
	id := domainuser.ID(strings.TrimSpace(string(userID)))
	if id == "" {
		return nil, domainchat.ErrParticipantMissing
	}
	chats, err := s.Chats.ByParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(chats, func(i, j int) bool {
		a, b := chats[i], chats[j]
		if a.LastMessageTime.IsZero() != b.LastMessageTime.IsZero() {
			return !a.LastMessageTime.IsZero()
		}
		if a.LastMessageTime.IsZero() {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.LastMessageTime.After(b.LastMessageTime)
	})

	result := make([]ResolvedChat, 0, len(chats))
	for i := range chats {
		participants, err := s.resolveParticipants(ctx, &chats[i])
		if err != nil {
			return nil, err
		}
		result = append(result, ResolvedChat{Chat: chats[i], Participants: participants})
	}
	return result, nil
}

// ListUsers returns every user except the excluded one, for client-side
// search.
func (s *Service) ListUsers(ctx context.Context, exclude domainuser.ID) ([]domainuser.User, error) {
	return s.Users.List(ctx, exclude)
}

func (s *Service) resolveParticipants(ctx context.Context, c *domainchat.Chat) ([]domainuser.User, error) {
	participants := make([]domainuser.User, 0, len(c.Participants))
	for _, pid := range c.Participants {
		u, err := s.Users.ByID(ctx, pid)
		if err != nil {
			if errors.Is(err, domainuser.ErrNotFound) {
				participants = append(participants, domainuser.User{ID: pid})
				continue
			}
			return nil, fmt.Errorf("resolve participant %s: %w", pid, err)
		}
		participants = append(participants, *u)
	}
	return participants, nil
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, evt); err != nil && s.Logger != nil {
		s.Logger.Warn("event publish failed", "event", evt.Name, "key", evt.Key, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
