package client

import (
	"context"
	"log/slog"
	"time"

	"pingme/internal/app/dto"
)

// DefaultPollInterval matches the dashboard's refresh cadence.
const DefaultPollInterval = 3 * time.Second

// Handlers receive reconciled state. They are invoked from the Syncer's loop
// goroutine, never concurrently.
type Handlers struct {
	OnChat  func(dto.Chat)
	OnChats func([]dto.Chat)
}

// Syncer keeps a chat view synchronized by polling. It is either Idle (no
// chat selected) or Watching one chat id; while watching, every tick
// re-fetches the chat and replaces the held view.
//
// Every fetch is tagged with the generation current when it was issued.
// Opening another chat, or closing, bumps the generation, so responses that
// arrive for an abandoned watch session are discarded instead of
// overwriting fresher state.
type Syncer struct {
	api      *Client
	userID   string
	interval time.Duration
	handlers Handlers
	logger   *slog.Logger

	commands chan command
	results  chan result
}

type commandKind int

const (
	cmdOpen commandKind = iota
	cmdClose
	cmdSend
	cmdRefreshChats
)

type command struct {
	kind    commandKind
	chatID  string
	content string
}

type resultKind int

const (
	resChat resultKind = iota
	resChats
)

type result struct {
	kind       resultKind
	generation uint64
	chat       dto.Chat
	chats      []dto.Chat
	err        error
}

type watchState struct {
	chatID     string
	generation uint64
}

func (w watchState) idle() bool { return w.chatID == "" }

// SyncerConfig defines Syncer settings.
type SyncerConfig struct {
	UserID   string
	Interval time.Duration
	Handlers Handlers
}

func NewSyncer(api *Client, cfg SyncerConfig, logger *slog.Logger) *Syncer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Syncer{
		api:      api,
		userID:   cfg.UserID,
		interval: interval,
		handlers: cfg.Handlers,
		logger:   logger,
		commands: make(chan command, 16),
		results:  make(chan result, 16),
	}
}

// Open starts watching a chat. Any in-flight fetch for a previously watched
// chat becomes stale.
func (s *Syncer) Open(chatID string) {
	s.commands <- command{kind: cmdOpen, chatID: chatID}
}

// Close stops watching. The loop returns to Idle; pending fetches are
// discarded on arrival.
func (s *Syncer) Close() {
	s.commands <- command{kind: cmdClose}
}

// Send posts a message to the watched chat and, on success, immediately
// re-fetches both the chat and the chat list instead of waiting for the
// next tick.
func (s *Syncer) Send(content string) {
	s.commands <- command{kind: cmdSend, content: content}
}

// RefreshChats re-fetches the chat list.
func (s *Syncer) RefreshChats() {
	s.commands <- command{kind: cmdRefreshChats}
}

// Run services commands, poll ticks and fetch results until the context is
// cancelled. All state lives in this loop; public methods only enqueue.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var st watchState
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-s.commands:
			s.apply(ctx, &st, cmd)
		case res := <-s.results:
			s.reconcile(st, res)
		case <-ticker.C:
			if !st.idle() {
				s.fetchChat(ctx, st)
			}
		}
	}
}

func (s *Syncer) apply(ctx context.Context, st *watchState, cmd command) {
	switch cmd.kind {
	case cmdOpen:
		if cmd.chatID == "" {
			return
		}
		st.chatID = cmd.chatID
		st.generation++
		s.fetchChat(ctx, *st)
	case cmdClose:
		st.chatID = ""
		st.generation++
	case cmdSend:
		if st.idle() {
			s.debug("send ignored, no chat watched")
			return
		}
		s.send(ctx, *st, cmd.content)
	case cmdRefreshChats:
		s.fetchChats(ctx, *st)
	}
}

func (s *Syncer) reconcile(st watchState, res result) {
	if res.generation != st.generation {
		s.debug("stale response discarded", "kind", int(res.kind))
		return
	}
	if res.err != nil {
		// Keep the previous view; the next tick retries.
		s.debug("fetch failed", "error", res.err)
		return
	}
	switch res.kind {
	case resChat:
		if !st.idle() && s.handlers.OnChat != nil {
			s.handlers.OnChat(res.chat)
		}
	case resChats:
		if s.handlers.OnChats != nil {
			s.handlers.OnChats(res.chats)
		}
	}
}

func (s *Syncer) fetchChat(ctx context.Context, st watchState) {
	go func() {
		chat, err := s.api.GetChat(ctx, st.chatID)
		s.deliver(ctx, result{kind: resChat, generation: st.generation, chat: chat, err: err})
	}()
}

func (s *Syncer) fetchChats(ctx context.Context, st watchState) {
	go func() {
		chats, err := s.api.ListChats(ctx, s.userID)
		s.deliver(ctx, result{kind: resChats, generation: st.generation, chats: chats, err: err})
	}()
}

func (s *Syncer) send(ctx context.Context, st watchState, content string) {
	go func() {
		if _, err := s.api.SendMessage(ctx, st.chatID, s.userID, content); err != nil {
			s.debug("send failed", "chat_id", st.chatID, "error", err)
			return
		}
		chat, err := s.api.GetChat(ctx, st.chatID)
		s.deliver(ctx, result{kind: resChat, generation: st.generation, chat: chat, err: err})
		chats, err := s.api.ListChats(ctx, s.userID)
		s.deliver(ctx, result{kind: resChats, generation: st.generation, chats: chats, err: err})
	}()
}

func (s *Syncer) deliver(ctx context.Context, res result) {
	select {
	case s.results <- res:
	case <-ctx.Done():
	}
}

func (s *Syncer) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
