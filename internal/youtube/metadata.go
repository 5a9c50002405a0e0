package youtube

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// MetadataClient fetches video snippets from the YouTube Data API
type MetadataClient struct {
	service *ytapi.Service
	log     zerolog.Logger
}

// NewMetadataClient creates a client authenticated with apiKey. endpoint
// overrides the API base URL when non-empty.
func NewMetadataClient(ctx context.Context, apiKey, endpoint string, log zerolog.Logger) (*MetadataClient, error) {
	if apiKey == "" {
		return nil, errors.New("youtube api key is required")
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	srv, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube service: %w", err)
	}
	return &MetadataClient{service: srv, log: log}, nil
}

// VideoMetadata returns the title, description and channel of a video.
// Any API failure or an empty result set is reported as types.ErrMetadata.
func (mc *MetadataClient) VideoMetadata(ctx context.Context, videoID string) (*types.VideoMetadata, error) {
	resp, err := mc.service.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: failed to fetch video info: %d, %s", types.ErrMetadata, apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: failed to fetch video info: %v", types.ErrMetadata, err)
	}

	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, fmt.Errorf("%w: no video found", types.ErrMetadata)
	}

	snippet := resp.Items[0].Snippet
	mc.log.Debug().Str("video_id", videoID).Str("title", snippet.Title).Msg("Fetched video details")

	return &types.VideoMetadata{
		Title:       snippet.Title,
		Description: snippet.Description,
		Channel:     snippet.ChannelTitle,
	}, nil
}
