package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"evolv/internal/models"
	"evolv/internal/repository"
)

type ArtworksHandler struct {
	repo repository.Reader
	log  *logrus.Entry
}

func NewArtworksHandler(repo repository.Reader) *ArtworksHandler {
	return &ArtworksHandler{
		repo: repo,
		log:  logrus.WithField("component", "artworks_handler"),
	}
}

type listQuery struct {
	Page     int `form:"page" binding:"min=0"`
	PageSize int `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

// List returns one zero-based page of the gallery.
func (h *ArtworksHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid pagination",
			Message: err.Error(),
		})
		return
	}
	if q.PageSize == 0 {
		q.PageSize = repository.DefaultPageSize
	}

	page, err := h.repo.List(c.Request.Context(), q.Page, q.PageSize)
	if err != nil {
		h.log.WithError(err).Error("Failed to list artworks")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list artworks",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *ArtworksHandler) Get(c *gin.Context) {
	artworkID := c.Param("artwork_id")

	art, err := h.repo.Get(c.Request.Context(), artworkID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "artwork not found"})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("artwork_id", artworkID).Error("Failed to get artwork")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to get artwork",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, art)
}

// ListByOwner returns every artwork of a user, oldest first. An unknown
// user simply owns nothing.
func (h *ArtworksHandler) ListByOwner(c *gin.Context) {
	userID := c.Param("user_id")

	items, err := h.repo.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Failed to list owned artworks")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list artworks",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, items)
}
