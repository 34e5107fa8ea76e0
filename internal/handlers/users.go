package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"evolv/internal/middleware"
	"evolv/internal/models"
	"evolv/internal/repository"
)

type UsersHandler struct {
	users *repository.UserDirectory
}

func NewUsersHandler(users *repository.UserDirectory) *UsersHandler {
	return &UsersHandler{users: users}
}

// Me returns the caller's profile, or a null user for anonymous callers.
// Profiles known to the directory win over the token claims.
func (h *UsersHandler) Me(c *gin.Context) {
	claimed, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, models.CurrentUserResponse{})
		return
	}

	user := h.users.Observe(*claimed)

	c.JSON(http.StatusOK, models.CurrentUserResponse{User: &user})
}
