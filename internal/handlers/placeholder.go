package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"evolv/internal/models"
	"evolv/internal/placeholder"
)

// PlaceholderImage serves the generated stand-in image referenced by seed
// artworks and finished jobs.
func PlaceholderImage(c *gin.Context) {
	width, werr := strconv.Atoi(c.Param("width"))
	height, herr := strconv.Atoi(c.Param("height"))
	if werr != nil || herr != nil || width < 1 || height < 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid dimensions",
			Message: "width and height must be positive integers",
		})
		return
	}

	img, err := placeholder.PNG(width, height, c.Query("text"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to render placeholder",
			Message: err.Error(),
		})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, placeholder.ContentType, img)
}
