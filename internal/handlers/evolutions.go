package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"evolv/internal/jobs"
	"evolv/internal/middleware"
	"evolv/internal/models"
	"evolv/internal/repository"
)

// JobService accepts evolution jobs and reports their progress.
type JobService interface {
	Submit(ctx context.Context, userID string, req models.EvolveRequest) (string, error)
	Status(ctx context.Context, jobID string) (*models.JobStatus, error)
}

type EvolutionsHandler struct {
	jobs JobService
	log  *logrus.Entry
}

func NewEvolutionsHandler(jobs JobService) *EvolutionsHandler {
	return &EvolutionsHandler{
		jobs: jobs,
		log:  logrus.WithField("component", "evolutions_handler"),
	}
}

// Submit queues an evolution of an existing artwork and answers with the
// job id to poll.
func (h *EvolutionsHandler) Submit(c *gin.Context) {
	var req models.EvolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	}

	userID := c.GetString(middleware.UserIDKey)

	jobID, err := h.jobs.Submit(c.Request.Context(), userID, req)
	switch {
	case errors.Is(err, jobs.ErrInvalidPrompt):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "artwork not found"})
		return
	case err != nil:
		h.log.WithError(err).WithField("artwork_id", req.ArtworkID).Error("Failed to submit evolution")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to submit evolution",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, models.SubmitResponse{JobID: jobID})
}

func (h *EvolutionsHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	status, err := h.jobs.Status(c.Request.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "job not found"})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("job_id", jobID).Error("Failed to get job status")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to get job status",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, status)
}
