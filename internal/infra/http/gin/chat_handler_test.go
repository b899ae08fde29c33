package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pingme/internal/app/dto"
	authsvc "pingme/internal/app/services/auth"
	chatsvc "pingme/internal/app/services/chat"
	domainuser "pingme/internal/domain/user"
	"pingme/internal/infra/config"
	"pingme/internal/infra/obs"
	"pingme/internal/infra/security"
	"pingme/internal/infra/storage/memory"
)

type testEnv struct {
	handler http.Handler
	chats   *chatsvc.Service
	auth    *authsvc.Service
	users   map[string]domainuser.ID
}

func newTestEnv(t *testing.T, usernames ...string) *testEnv {
	t.Helper()
	userRepo := memory.NewUserRepository()
	ids := make(map[string]domainuser.ID, len(usernames))
	for _, name := range usernames {
		u, err := domainuser.NewUser(domainuser.CreateParams{
			ID:           domainuser.ID(uuid.NewString()),
			Username:     name,
			Mobile:       "555-" + name,
			PasswordHash: "x",
		})
		require.NoError(t, err)
		require.NoError(t, userRepo.Save(context.Background(), u))
		ids[name] = u.ID
	}

	chatService := &chatsvc.Service{
		Chats:    memory.NewChatRepository(),
		Messages: memory.NewMessageRepository(),
		Users:    userRepo,
	}
	authService := &authsvc.Service{
		Users:     userRepo,
		Sessions:  memory.NewSessionStore(),
		Passwords: security.BcryptHasher{},
		Tokens:    security.RandomTokenGenerator{},
	}

	srv := NewServer(
		config.Config{Env: "test", HTTPAddr: ":0"},
		obs.Middleware{},
		obs.HealthHandlers{},
		Handlers{
			Chat:           ChatHandler{Service: chatService},
			User:           UserHandler{Service: chatService},
			Auth:           AuthHandler{Service: authService},
			AuthMiddleware: AuthMiddleware{Service: authService}.Handle,
		},
	)
	return &testEnv{handler: srv.Handler, chats: chatService, auth: authService, users: ids}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) openChat(t *testing.T, a, b string) dto.Chat {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/chats", map[string]string{
		"user_id":       string(e.users[a]),
		"other_user_id": string(e.users[b]),
	})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code)
	var resp dto.FindOrCreateChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Chat
}

func TestFindOrCreateChatEndpoint(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "alice", "bob")

	rec := env.do(t, http.MethodPost, "/api/v1/chats", map[string]string{
		"user_id":       string(env.users["alice"]),
		"other_user_id": string(env.users["bob"]),
	})
	req.Equal(http.StatusCreated, rec.Code)
	var created dto.FindOrCreateChatResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	req.True(created.IsNew)
	req.Len(created.Chat.Participants, 2)

	rec = env.do(t, http.MethodPost, "/api/v1/chats", map[string]string{
		"user_id":       string(env.users["bob"]),
		"other_user_id": string(env.users["alice"]),
	})
	req.Equal(http.StatusOK, rec.Code)
	var existing dto.FindOrCreateChatResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &existing))
	req.False(existing.IsNew)
	req.Equal(created.Chat.ID, existing.Chat.ID)
}

func TestFindOrCreateChatEndpointRejectsSelf(t *testing.T) {
	env := newTestEnv(t, "alice")
	rec := env.do(t, http.MethodPost, "/api/v1/chats", map[string]string{
		"user_id":       string(env.users["alice"]),
		"other_user_id": string(env.users["alice"]),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindOrCreateChatEndpointUnknownUser(t *testing.T) {
	env := newTestEnv(t, "alice")
	rec := env.do(t, http.MethodPost, "/api/v1/chats", map[string]string{
		"user_id":       string(env.users["alice"]),
		"other_user_id": uuid.NewString(),
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageEndpoint(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "alice", "bob")
	chat := env.openChat(t, "alice", "bob")

	rec := env.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", map[string]string{
		"content":   "hi",
		"sender_id": string(env.users["alice"]),
	})
	req.Equal(http.StatusCreated, rec.Code)
	var resp dto.MessageResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("hi", resp.Message.Content)
	req.Equal("alice", resp.Message.Sender.Username)
	req.Equal(chat.ID, resp.Message.ChatID)
}

func TestSendMessageEndpointValidation(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "alice", "bob")
	chat := env.openChat(t, "alice", "bob")

	rec := env.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", map[string]string{
		"content": "hi",
	})
	req.Equal(http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", map[string]string{
		"content":   "   ",
		"sender_id": string(env.users["alice"]),
	})
	req.Equal(http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/chats/"+uuid.NewString()+"/messages", map[string]string{
		"content":   "hi",
		"sender_id": string(env.users["alice"]),
	})
	req.Equal(http.StatusNotFound, rec.Code)
}

func TestSendMessageEndpointRejectsNonParticipant(t *testing.T) {
	env := newTestEnv(t, "alice", "bob", "mallory")
	chat := env.openChat(t, "alice", "bob")

	rec := env.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", map[string]string{
		"content":   "hello",
		"sender_id": string(env.users["mallory"]),
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetChatEndpointReturnsMessages(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "alice", "bob")
	chat := env.openChat(t, "alice", "bob")

	for _, m := range []struct{ sender, content string }{
		{"alice", "hi"},
		{"bob", "hello"},
		{"alice", "how are you"},
	} {
		rec := env.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", map[string]string{
			"content":   m.content,
			"sender_id": string(env.users[m.sender]),
		})
		req.Equal(http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/chats/"+chat.ID, nil)
	req.Equal(http.StatusOK, rec.Code)
	var resp dto.ChatResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Len(resp.Chat.Messages, 3)
	req.Equal("how are you", resp.Chat.LastMessage)
	req.NotNil(resp.Chat.LastMessageTime)
	req.Equal("how are you", resp.Chat.Messages[2].Content)
	req.Equal("bob", resp.Chat.Messages[1].Sender.Username)
}

func TestGetChatEndpointUnknownChat(t *testing.T) {
	env := newTestEnv(t, "alice")
	rec := env.do(t, http.MethodGet, "/api/v1/chats/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListChatsEndpoint(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "alice", "bob", "clara")
	withBob := env.openChat(t, "alice", "bob")
	env.openChat(t, "alice", "clara")

	rec := env.do(t, http.MethodPost, "/api/v1/chats/"+withBob.ID+"/messages", map[string]string{
		"content":   "ping",
		"sender_id": string(env.users["alice"]),
	})
	req.Equal(http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/chats?userId="+string(env.users["alice"]), nil)
	req.Equal(http.StatusOK, rec.Code)
	var list dto.ChatList
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	req.Len(list.Chats, 2)
	req.Equal(withBob.ID, list.Chats[0].ID)
	// List summaries omit per-message bodies.
	req.Empty(list.Chats[0].Messages)
	req.Equal("ping", list.Chats[0].LastMessage)

	rec = env.do(t, http.MethodGet, "/api/v1/chats", nil)
	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestListUsersEndpoint(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, "alice", "bob", "clara")

	rec := env.do(t, http.MethodGet, "/api/v1/users?currentUserId="+string(env.users["alice"]), nil)
	req.Equal(http.StatusOK, rec.Code)
	var list dto.UserList
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	req.Len(list.Users, 2)
	for _, u := range list.Users {
		req.NotEqual("alice", u.Username)
	}
}

func TestAuthEndpoints(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "dora",
		"mobile":   "5550199",
		"password": "correct horse",
	})
	req.Equal(http.StatusCreated, rec.Code)
	var auth dto.AuthResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &auth))
	req.NotEmpty(auth.Token)

	httpReq := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	httpReq.Header.Set("Authorization", "Bearer "+auth.Token)
	meRec := httptest.NewRecorder()
	env.handler.ServeHTTP(meRec, httpReq)
	req.Equal(http.StatusOK, meRec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "dora",
		"password": "wrong password",
	})
	req.Equal(http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "dora",
		"password": "correct horse",
	})
	req.Equal(http.StatusOK, rec.Code)
}
