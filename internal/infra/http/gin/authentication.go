package ginserver

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	authsvc "pingme/internal/app/services/auth"
	domainauth "pingme/internal/domain/auth"
)

const principalContextKey = "pingme.principal"

type principal struct {
	ID        string
	Username  string
	Mobile    string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthMiddleware attaches the resolved principal when a valid bearer token
// is presented. Requests without a token pass through untouched; the chat
// endpoints carry explicit user ids and do not demand a session.
type AuthMiddleware struct {
	Service *authsvc.Service
	Logger  *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Service == nil {
		c.Next()
		return
	}
	resolved, err := m.Service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) && m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	c.Set(principalContextKey, principal{
		ID:        string(resolved.User.ID),
		Username:  resolved.User.Username,
		Mobile:    resolved.User.Mobile,
		Token:     token,
		CreatedAt: resolved.User.CreatedAt,
		UpdatedAt: resolved.User.UpdatedAt,
	})
	c.Next()
}

func principalFrom(c *gin.Context) (principal, bool) {
	value, ok := c.Get(principalContextKey)
	if !ok {
		return principal{}, false
	}
	p, ok := value.(principal)
	return p, ok
}

func extractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
