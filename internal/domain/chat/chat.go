package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	domainuser "pingme/internal/domain/user"
)

var (
	ErrNotFound           = errors.New("chat: not found")
	ErrAlreadyExists      = errors.New("chat: already exists for participant pair")
	ErrParticipantMissing = errors.New("chat: two participants are required")
	ErrSameParticipant    = errors.New("chat: participants must be distinct")
	ErrNotParticipant     = errors.New("chat: sender is not a participant")
)

type ID string

// Chat is a conversation between exactly two users. Participants are fixed at
// creation. MessageIDs keeps insertion order, which is chronological order.
// LastMessage/LastMessageTime are denormalized from the newest message and
// are only ever written together with a message append.
type Chat struct {
	ID              ID
	Participants    []domainuser.ID
	PairKey         string
	MessageIDs      []MessageID
	LastMessage     string
	LastMessageTime time.Time
	CreatedAt       time.Time
}

// Repository persists chats. Create must fail with ErrAlreadyExists when a
// chat with the same pair key is already stored, so that concurrent
// first-contact never yields duplicates.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Chat, error)
	ByPairKey(ctx context.Context, key string) (*Chat, error)
	Create(ctx context.Context, chat *Chat) error
	// AppendMessage pushes the message reference and refreshes the summary
	// fields in a single atomic update. The summary must not regress: when a
	// newer append already landed, only the reference is pushed.
	AppendMessage(ctx context.Context, id ID, msgID MessageID, content string, at time.Time) error
	ByParticipant(ctx context.Context, userID domainuser.ID) ([]Chat, error)
}

type CreateParams struct {
	ID        ID
	UserA     domainuser.ID
	UserB     domainuser.ID
	CreatedAt time.Time
}

func NewChat(params CreateParams) (*Chat, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, errors.New("chat: id is required")
	}
	a := domainuser.ID(strings.TrimSpace(string(params.UserA)))
	b := domainuser.ID(strings.TrimSpace(string(params.UserB)))
	if a == "" || b == "" {
		return nil, ErrParticipantMissing
	}
	if a == b {
		return nil, ErrSameParticipant
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	return &Chat{
		ID:           ID(id),
		Participants: []domainuser.ID{a, b},
		PairKey:      PairKey(a, b),
		CreatedAt:    now.UTC(),
	}, nil
}

func (c *Chat) HasParticipant(id domainuser.ID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// PairKey normalizes an unordered participant pair into the lookup key that
// anchors chat uniqueness: ids sorted lexicographically, joined with '|'.
func PairKey(a, b domainuser.ID) string {
	ids := []string{strings.TrimSpace(string(a)), strings.TrimSpace(string(b))}
	sort.Strings(ids)
	return ids[0] + "|" + ids[1]
}
