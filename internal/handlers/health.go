package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"evolv/internal/models"
)

// HealthHandler reports liveness. It never touches the store.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
