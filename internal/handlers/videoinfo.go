package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/types"
	"github.com/codebuildervaibhav/video-transcript/internal/videoinfo"
)

// VideoInfoService resolves the info of a single video
type VideoInfoService interface {
	Get(ctx context.Context, videoID string) (*types.VideoInfo, error)
	Watch(ctx context.Context, videoID string, obs videoinfo.Observer) (*types.VideoInfo, error)
}

// VideoInfoHandler serves GET /video-info/:video_id
type VideoInfoHandler struct {
	service VideoInfoService
	log     zerolog.Logger
}

// NewVideoInfoHandler creates a new video info handler
func NewVideoInfoHandler(service VideoInfoService, log zerolog.Logger) *VideoInfoHandler {
	return &VideoInfoHandler{
		service: service,
		log:     log,
	}
}

// Handle returns the metadata and transcript of the requested video
func (h *VideoInfoHandler) Handle(c *fiber.Ctx) error {
	videoID := c.Params("video_id")
	if videoID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": "video_id is required"})
	}

	info, err := h.service.Get(c.UserContext(), videoID)
	if err != nil {
		h.log.Error().Err(err).Str("video_id", videoID).Msg("Request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": err.Error()})
	}
	return c.JSON(info)
}
