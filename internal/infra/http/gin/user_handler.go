package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"pingme/internal/app/dto"
	chatsvc "pingme/internal/app/services/chat"
	domainuser "pingme/internal/domain/user"
)

// UserHandler exposes the user listing that feeds client-side search.
type UserHandler struct {
	Service *chatsvc.Service
	Logger  *slog.Logger
}

// List returns every user except the requesting one.
func (h UserHandler) List(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}
	exclude := domainuser.ID(strings.TrimSpace(c.Query("currentUserId")))
	users, err := h.Service.ListUsers(c.Request.Context(), exclude)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("list users failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	list := dto.UserList{Users: make([]dto.UserRef, 0, len(users))}
	for i := range users {
		list.Users = append(list.Users, dto.MapUserRef(&users[i]))
	}
	c.JSON(http.StatusOK, list)
}

var _ UserHTTP = UserHandler{}
