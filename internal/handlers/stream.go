package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/types"
	"github.com/codebuildervaibhav/video-transcript/internal/videoinfo"
)

// StreamHandler streams pipeline progress for one video over a WebSocket
type StreamHandler struct {
	service VideoInfoService
	log     zerolog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(service VideoInfoService, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		service: service,
		log:     log,
	}
}

type stageMessage struct {
	Stage videoinfo.Stage `json:"stage"`
}

type resultMessage struct {
	Result *types.VideoInfo `json:"result"`
}

type errorMessage struct {
	Detail string `json:"detail"`
}

// Handle runs the pipeline for the :video_id route parameter, sending a
// stage message per step followed by the result or an error detail.
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	videoID := c.Params("video_id")
	log := h.log.With().Str("session_id", uuid.New().String()).Str("video_id", videoID).Logger()
	log.Info().Msg("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A read error means the client went away.
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	info, err := h.service.Watch(ctx, videoID, func(stage videoinfo.Stage) {
		send(c, stageMessage{Stage: stage}, log, zerolog.DebugLevel)
	})
	if err != nil {
		log.Error().Err(err).Msg("Stream request failed")
		send(c, errorMessage{Detail: err.Error()}, log, zerolog.WarnLevel)
		return
	}
	send(c, resultMessage{Result: info}, log, zerolog.WarnLevel)
}

type jsonWriter interface {
	WriteJSON(v interface{}) error
}

// send writes one message, logging a failed write at level.
func send(w jsonWriter, msg any, log zerolog.Logger, level zerolog.Level) {
	if err := w.WriteJSON(msg); err != nil {
		log.WithLevel(level).Err(err).Str("message_type", fmt.Sprintf("%T", msg)).Msg("Failed to send message")
	}
}
