package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"pingme/internal/app/events"
	authsvc "pingme/internal/app/services/auth"
	chatsvc "pingme/internal/app/services/chat"
	domainauth "pingme/internal/domain/auth"
	domainchat "pingme/internal/domain/chat"
	domainuser "pingme/internal/domain/user"
	"pingme/internal/infra/broker/kafka"
	"pingme/internal/infra/config"
	mongodb "pingme/internal/infra/db/mongo"
	ginserver "pingme/internal/infra/http/gin"
	"pingme/internal/infra/obs"
	"pingme/internal/infra/security"
	"pingme/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	app, ready, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application bootstrap failed", "error", err)
		os.Exit(1)
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: ready,
	}, app.handlers)

	fixturesPath := cfg.UserFixtures
	if fixturesPath == "" {
		fixturesPath = defaultUserFixturesPath()
	}
	if err := app.loadUserFixtures(ctx, fixturesPath, logger); err != nil {
		logger.Warn("user fixtures load failed", "error", err, "path", fixturesPath)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		app.close(shutdownCtx, logger)
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	users    domainuser.Repository
	mongo    *mongodb.Client
	producer *kafka.Producer
	hasher   authsvc.PasswordHasher
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, func() error, error) {
	app := &application{hasher: security.BcryptHasher{}}
	ready := func() error { return nil }

	var (
		users    domainuser.Repository
		chats    domainchat.Repository
		messages domainchat.MessageRepository
		sessions domainauth.SessionStore = memory.NewSessionStore()
	)
	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.EnsureIndexes(indexCtx); err != nil {
			return nil, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		users = mongodb.NewUserRepository(client.DB)
		chats = mongodb.NewChatRepository(client.DB)
		messages = mongodb.NewMessageRepository(client.DB)
		app.mongo = client
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		logger.Info("mongo storage configured", "database", cfg.MongoDB)
	} else {
		users = memory.NewUserRepository()
		chats = memory.NewChatRepository()
		messages = memory.NewMessageRepository()
		logger.Warn("no MONGO_URI set, using in-memory storage")
	}
	app.users = users

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("connect kafka: %w", err)
		}
		app.producer = producer
		publisher = kafka.EventPublisher{
			Producer:    producer,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Source:      "pingme",
		}
		logger.Info("kafka producer configured", "brokers", cfg.KafkaBrokers)
	}

	chatService := &chatsvc.Service{
		Chats:     chats,
		Messages:  messages,
		Users:     users,
		Publisher: publisher,
		Logger:    logger,
	}
	authService := &authsvc.Service{
		Users:      users,
		Sessions:   sessions,
		Passwords:  app.hasher,
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	app.handlers = ginserver.Handlers{
		Chat:           ginserver.ChatHandler{Service: chatService, Logger: logger},
		User:           ginserver.UserHandler{Service: chatService, Logger: logger},
		Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
	}
	return app, ready, nil
}

func (a *application) close(ctx context.Context, logger *slog.Logger) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error("kafka close failed", "error", err)
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			logger.Error("mongo disconnect failed", "error", err)
		}
	}
}

func (a *application) loadUserFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("user fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("user fixtures file empty", "path", path)
		return nil
	}

	var fixtures []userFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now()
	for _, fx := range fixtures {
		if _, err := a.users.ByUsername(ctx, fx.Username); err == nil {
			continue
		}
		hash, err := a.hasher.Hash(fx.Password)
		if err != nil {
			logger.Error("fixture password hash failed", "username", fx.Username, "error", err)
			continue
		}
		user, err := domainuser.NewUser(domainuser.CreateParams{
			ID:           domainuser.ID(uuid.NewString()),
			Username:     fx.Username,
			Mobile:       fx.Mobile,
			PasswordHash: hash,
			CreatedAt:    now,
		})
		if err != nil {
			logger.Error("fixture invalid", "username", fx.Username, "error", err)
			continue
		}
		if err := a.users.Save(ctx, user); err != nil {
			logger.Error("cannot store fixture user", "username", fx.Username, "error", err)
			continue
		}
		logger.Info("user fixture imported", "user_id", user.ID, "username", user.Username)
	}
	return nil
}

type userFixture struct {
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

func defaultUserFixturesPath() string {
	return filepath.Join("data", "users.json")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
