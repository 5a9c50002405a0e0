package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/storage"
	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
)

// JobStore reads transcription job records
type JobStore interface {
	GetJob(ctx context.Context, jobName string) (*types.JobRecord, error)
	ListJobs(ctx context.Context, limit int) ([]types.JobRecord, error)
}

// JobsHandler exposes the transcription job registry
type JobsHandler struct {
	store JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(store JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// Get serves GET /jobs/:name
func (h *JobsHandler) Get(c *fiber.Ctx) error {
	name := c.Params("name")
	job, err := h.store.GetJob(c.UserContext(), name)
	if errors.Is(err, storage.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"detail": "transcription job not found"})
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_name", name).Msg("Failed to get job")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(job)
}

// List serves GET /jobs?limit=N
func (h *JobsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultJobLimit)
	if limit <= 0 {
		limit = defaultJobLimit
	}
	if limit > maxJobLimit {
		limit = maxJobLimit
	}

	jobs, err := h.store.ListJobs(c.UserContext(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(jobs)
}
