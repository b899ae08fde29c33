package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pingme/internal/app/events"
	domainchat "pingme/internal/domain/chat"
	domainuser "pingme/internal/domain/user"
	"pingme/internal/infra/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

func newTestService(t *testing.T, usernames ...string) (*Service, map[string]domainuser.ID, *recordingPublisher) {
	t.Helper()
	users := memory.NewUserRepository()
	ids := make(map[string]domainuser.ID, len(usernames))
	for i, name := range usernames {
		u, err := domainuser.NewUser(domainuser.CreateParams{
			ID:           domainuser.ID(uuid.NewString()),
			Username:     name,
			Mobile:       "555010" + string(rune('0'+i)),
			PasswordHash: "x",
		})
		require.NoError(t, err)
		require.NoError(t, users.Save(context.Background(), u))
		ids[name] = u.ID
	}
	publisher := &recordingPublisher{}
	svc := &Service{
		Chats:     memory.NewChatRepository(),
		Messages:  memory.NewMessageRepository(),
		Users:     users,
		Publisher: publisher,
	}
	return svc, ids, publisher
}

func TestFindOrCreateChatFirstContact(t *testing.T) {
	req := require.New(t)
	svc, ids, publisher := newTestService(t, "alice", "bob")
	ctx := context.Background()

	resolved, isNew, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
	req.NoError(err)
	req.True(isNew)
	req.Empty(resolved.Chat.MessageIDs)
	req.Empty(resolved.Chat.LastMessage)
	req.Len(resolved.Participants, 2)
	req.Equal([]string{events.ChatCreatedName}, publisher.names())
}

func TestFindOrCreateChatIsIdempotentAcrossOrder(t *testing.T) {
	req := require.New(t)
	svc, ids, _ := newTestService(t, "alice", "bob")
	ctx := context.Background()

	first, isNew, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
	req.NoError(err)
	req.True(isNew)

	second, isNew, err := svc.FindOrCreateChat(ctx, ids["bob"], ids["alice"])
	req.NoError(err)
	req.False(isNew)
	req.Equal(first.Chat.ID, second.Chat.ID)
}

func TestFindOrCreateChatConcurrentFirstContact(t *testing.T) {
	req := require.New(t)
	svc, ids, _ := newTestService(t, "alice", "bob")
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	chatIDs := make(chan domainchat.ID, attempts)
	newCount := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resolved, isNew, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
			if err != nil {
				return
			}
			chatIDs <- resolved.Chat.ID
			newCount <- isNew
		}()
	}
	wg.Wait()
	close(chatIDs)
	close(newCount)

	seen := make(map[domainchat.ID]struct{})
	for id := range chatIDs {
		seen[id] = struct{}{}
	}
	req.Len(seen, 1)

	created := 0
	for isNew := range newCount {
		if isNew {
			created++
		}
	}
	req.Equal(1, created)
}

func TestFindOrCreateChatRejectsSelfChat(t *testing.T) {
	svc, ids, _ := newTestService(t, "alice")
	_, _, err := svc.FindOrCreateChat(context.Background(), ids["alice"], ids["alice"])
	require.ErrorIs(t, err, domainchat.ErrSameParticipant)
}

func TestFindOrCreateChatUnknownUser(t *testing.T) {
	svc, ids, _ := newTestService(t, "alice")
	_, _, err := svc.FindOrCreateChat(context.Background(), ids["alice"], domainuser.ID(uuid.NewString()))
	require.ErrorIs(t, err, domainuser.ErrNotFound)
}

func TestAppendMessageUpdatesCountAndSummary(t *testing.T) {
	req := require.New(t)
	svc, ids, publisher := newTestService(t, "alice", "bob")
	ctx := context.Background()

	resolved, _, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
	req.NoError(err)
	chatID := resolved.Chat.ID

	start := time.Now()
	msg, err := svc.AppendMessage(ctx, chatID, ids["alice"], "  hi there  ")
	req.NoError(err)
	req.Equal("hi there", msg.Message.Content)
	req.Equal(ids["alice"], msg.Sender.ID)
	req.False(msg.Message.Timestamp.Before(start.Add(-time.Second)))

	got, err := svc.GetChat(ctx, chatID)
	req.NoError(err)
	req.Len(got.Chat.MessageIDs, 1)
	req.Equal("hi there", got.Chat.LastMessage)
	req.Equal(msg.Message.Timestamp, got.Chat.LastMessageTime)
	req.Equal([]string{events.ChatCreatedName, events.MessageSentName}, publisher.names())
}

func TestAppendMessageScenarioThreeMessages(t *testing.T) {
	req := require.New(t)
	svc, ids, _ := newTestService(t, "alice", "bob")
	ctx := context.Background()

	resolved, _, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
	req.NoError(err)
	chatID := resolved.Chat.ID

	_, err = svc.AppendMessage(ctx, chatID, ids["alice"], "hi")
	req.NoError(err)
	_, err = svc.AppendMessage(ctx, chatID, ids["bob"], "hello")
	req.NoError(err)
	last, err := svc.AppendMessage(ctx, chatID, ids["alice"], "how are you")
	req.NoError(err)

	got, err := svc.GetChat(ctx, chatID)
	req.NoError(err)
	req.Len(got.Messages, 3)
	req.Equal("how are you", got.Chat.LastMessage)
	req.Equal(last.Message.Timestamp, got.Chat.LastMessageTime)
	req.Equal("how are you", got.Messages[2].Message.Content)
}

func TestAppendMessageUnknownChatPerformsNoMutation(t *testing.T) {
	req := require.New(t)
	svc, ids, publisher := newTestService(t, "alice", "bob")
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, domainchat.ID(uuid.NewString()), ids["alice"], "hi")
	req.ErrorIs(err, domainchat.ErrNotFound)
	req.Empty(publisher.names())

	chats, err := svc.ListChatsForUser(ctx, ids["alice"])
	req.NoError(err)
	req.Empty(chats)
}

func TestAppendMessageEmptyContentPerformsNoMutation(t *testing.T) {
	req := require.New(t)
	svc, ids, _ := newTestService(t, "alice", "bob")
	ctx := context.Background()

	resolved, _, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
	req.NoError(err)

	_, err = svc.AppendMessage(ctx, resolved.Chat.ID, ids["alice"], "   ")
	req.ErrorIs(err, domainchat.ErrEmptyContent)

	got, err := svc.GetChat(ctx, resolved.Chat.ID)
	req.NoError(err)
	req.Empty(got.Messages)
	req.Empty(got.Chat.LastMessage)
}

func TestAppendMessageRejectsNonParticipant(t *testing.T) {
	req := require.New(t)
	svc, ids, _ := newTestService(t, "alice", "bob", "mallory")
	ctx := context.Background()

	resolved, _, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
	req.NoError(err)

	_, err = svc.AppendMessage(ctx, resolved.Chat.ID, ids["mallory"], "let me in")
	req.ErrorIs(err, domainchat.ErrNotParticipant)
}

func TestGetChatRoundTripIncludesNewMessageAtTail(t *testing.T) {
	req := require.New(t)
	svc, ids, _ := newTestService(t, "alice", "bob")
	ctx := context.Background()

	resolved, _, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
	req.NoError(err)

	_, err = svc.AppendMessage(ctx, resolved.Chat.ID, ids["alice"], "first")
	req.NoError(err)
	appended, err := svc.AppendMessage(ctx, resolved.Chat.ID, ids["bob"], "second")
	req.NoError(err)

	got, err := svc.GetChat(ctx, appended.Message.ChatID)
	req.NoError(err)
	req.NotEmpty(got.Messages)
	tail := got.Messages[len(got.Messages)-1]
	req.Equal(appended.Message.ID, tail.Message.ID)
	req.Equal("bob", tail.Sender.Username)
}

func TestGetChatUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t, "alice")
	_, err := svc.GetChat(context.Background(), domainchat.ID(uuid.NewString()))
	require.ErrorIs(t, err, domainchat.ErrNotFound)
}

func TestListChatsForUserOrdersByRecency(t *testing.T) {
	req := require.New(t)
	svc, ids, _ := newTestService(t, "alice", "bob", "clara", "dave")
	ctx := context.Background()

	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc.Clock = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	withBob, _, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["bob"])
	req.NoError(err)
	withClara, _, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["clara"])
	req.NoError(err)
	withDave, _, err := svc.FindOrCreateChat(ctx, ids["alice"], ids["dave"])
	req.NoError(err)

	_, err = svc.AppendMessage(ctx, withBob.Chat.ID, ids["alice"], "oldest activity")
	req.NoError(err)
	_, err = svc.AppendMessage(ctx, withClara.Chat.ID, ids["alice"], "newest activity")
	req.NoError(err)

	chats, err := svc.ListChatsForUser(ctx, ids["alice"])
	req.NoError(err)
	req.Len(chats, 3)
	req.Equal(withClara.Chat.ID, chats[0].Chat.ID)
	req.Equal(withBob.Chat.ID, chats[1].Chat.ID)
	// Chats without messages sort last.
	req.Equal(withDave.Chat.ID, chats[2].Chat.ID)
}

func TestListUsersExcludesRequester(t *testing.T) {
	req := require.New(t)
	svc, ids, _ := newTestService(t, "alice", "bob", "clara")

	users, err := svc.ListUsers(context.Background(), ids["alice"])
	req.NoError(err)
	req.Len(users, 2)
	for _, u := range users {
		req.NotEqual(ids["alice"], u.ID)
	}
}
