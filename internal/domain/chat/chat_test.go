package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainuser "pingme/internal/domain/user"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	req := require.New(t)
	req.Equal(PairKey("alice", "bob"), PairKey("bob", "alice"))
	req.Equal("alice|bob", PairKey("bob", "alice"))
	req.NotEqual(PairKey("alice", "bob"), PairKey("alice", "clara"))
}

func TestNewChatValidation(t *testing.T) {
	_, err := NewChat(CreateParams{ID: "c1", UserA: "alice", UserB: "alice"})
	require.ErrorIs(t, err, ErrSameParticipant)

	_, err = NewChat(CreateParams{ID: "c1", UserA: "alice"})
	require.ErrorIs(t, err, ErrParticipantMissing)

	c, err := NewChat(CreateParams{ID: "c1", UserA: "bob", UserB: "alice"})
	require.NoError(t, err)
	require.Equal(t, "alice|bob", c.PairKey)
	require.Len(t, c.Participants, 2)
	require.Empty(t, c.MessageIDs)
	require.True(t, c.LastMessageTime.IsZero())
}

func TestChatHasParticipant(t *testing.T) {
	c, err := NewChat(CreateParams{ID: "c1", UserA: "alice", UserB: "bob"})
	require.NoError(t, err)
	require.True(t, c.HasParticipant(domainuser.ID("alice")))
	require.True(t, c.HasParticipant(domainuser.ID("bob")))
	require.False(t, c.HasParticipant(domainuser.ID("mallory")))
}

func TestNewMessageValidation(t *testing.T) {
	req := require.New(t)

	_, err := NewMessage(MessageParams{ID: "m1", ChatID: "c1", SenderID: "alice", Content: "   "})
	req.ErrorIs(err, ErrEmptyContent)

	_, err = NewMessage(MessageParams{ID: "m1", ChatID: "c1", Content: "hi"})
	req.ErrorIs(err, ErrSenderRequired)

	msg, err := NewMessage(MessageParams{ID: "m1", ChatID: "c1", SenderID: "alice", Content: "  hi  "})
	req.NoError(err)
	req.Equal("hi", msg.Content)
	req.False(msg.Timestamp.IsZero())
}

func TestNewMessageKeepsExplicitTimestamp(t *testing.T) {
	at := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	msg, err := NewMessage(MessageParams{ID: "m1", ChatID: "c1", SenderID: "alice", Content: "hi", Timestamp: at})
	require.NoError(t, err)
	require.Equal(t, at, msg.Timestamp)
}
