// Package client implements the polling side of the chat system: a typed
// HTTP client for the API and a Syncer that keeps a locally held chat view
// fresh by re-fetching it on a fixed interval.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pingme/internal/app/dto"
)

var (
	ErrNotFound   = errors.New("client: not found")
	ErrBadRequest = errors.New("client: bad request")
)

// StatusError carries the server's error detail for non-2xx responses.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: server returned %d: %s", e.Code, e.Detail)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		return nil
	}
}

// Config defines API client settings.
type Config struct {
	BaseURL     string
	Token       string
	CallTimeout time.Duration
	HTTPClient  *http.Client
}

// Client wraps the chat HTTP API.
type Client struct {
	baseURL     string
	token       string
	callTimeout time.Duration
	http        *http.Client
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client: base url required")
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:     base,
		token:       cfg.Token,
		callTimeout: callTimeout,
		http:        httpClient,
		logger:      logger,
	}, nil
}

// GetChat fetches a chat with its resolved messages.
func (c *Client) GetChat(ctx context.Context, chatID string) (dto.Chat, error) {
	var resp dto.ChatResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/chats/"+url.PathEscape(chatID), nil, &resp)
	return resp.Chat, err
}

// ListChats fetches the user's chat list.
func (c *Client) ListChats(ctx context.Context, userID string) ([]dto.Chat, error) {
	var resp dto.ChatList
	path := "/api/v1/chats?userId=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// SendMessage posts a message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, senderID, content string) (dto.ChatMessage, error) {
	body := map[string]string{"content": content, "sender_id": senderID}
	var resp dto.MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/chats/"+url.PathEscape(chatID)+"/messages", body, &resp)
	return resp.Message, err
}

// FindOrCreateChat opens the chat between two users.
func (c *Client) FindOrCreateChat(ctx context.Context, userID, otherUserID string) (dto.Chat, bool, error) {
	body := map[string]string{"user_id": userID, "other_user_id": otherUserID}
	var resp dto.FindOrCreateChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/chats", body, &resp); err != nil {
		return dto.Chat{}, false, err
	}
	return resp.Chat, resp.IsNew, nil
}

// ListUsers fetches every user except the current one.
func (c *Client) ListUsers(ctx context.Context, currentUserID string) ([]dto.UserRef, error) {
	var resp dto.UserList
	path := "/api/v1/users?currentUserId=" + url.QueryEscape(currentUserID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := decodeErrorDetail(resp.Body)
		return &StatusError{Code: resp.StatusCode, Detail: detail}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func decodeErrorDetail(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}
