// Package app wires the configured components into a videoinfo.Service.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/config"
	"github.com/codebuildervaibhav/video-transcript/internal/egress"
	"github.com/codebuildervaibhav/video-transcript/internal/storage"
	"github.com/codebuildervaibhav/video-transcript/internal/transcription"
	"github.com/codebuildervaibhav/video-transcript/internal/videoinfo"
	"github.com/codebuildervaibhav/video-transcript/internal/youtube"
)

// App holds the long-lived components built from a Config
type App struct {
	Service  *videoinfo.Service
	Registry *storage.JobRegistry
	Scratch  *storage.Scratch
}

// New builds every component. The caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Transcribe.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithAWS(ctx, cfg, awsCfg, log)
}

// NewWithAWS is New with an already loaded AWS configuration.
func NewWithAWS(ctx context.Context, cfg *config.Config, awsCfg aws.Config, log zerolog.Logger) (*App, error) {
	metadata, err := youtube.NewMetadataClient(ctx, cfg.YouTube.APIKey, cfg.YouTube.Endpoint, log.With().Str("component", "metadata").Logger())
	if err != nil {
		return nil, err
	}

	captionEgress, err := egress.NewClient(egress.Options{
		ProxyURL:          cfg.Captions.ProxyURL,
		Timeout:           cfg.Captions.Timeout,
		RequestsPerSecond: cfg.Captions.RequestsPerSecond,
		Log:               log.With().Str("component", "egress").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build captions client: %w", err)
	}
	captions := youtube.NewCaptionClient(captionEgress, cfg.Captions.WatchURL, cfg.YouTube.Languages, log.With().Str("component", "captions").Logger())

	scratch := storage.NewScratch(cfg.Storage.ScratchDir, log)
	if err := scratch.Ensure(); err != nil {
		return nil, err
	}

	registry, err := storage.NewJobRegistry(cfg.Storage.Database)
	if err != nil {
		return nil, err
	}

	downloader := transcription.NewDownloader(cfg.Download.Binary, scratch, nil, log.With().Str("component", "download").Logger())
	uploader := storage.NewS3Uploader(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket, log.With().Str("component", "upload").Logger())
	runner := transcription.NewJobRunner(
		transcribe.NewFromConfig(awsCfg),
		registry,
		nil,
		transcription.JobConfig{
			MediaFormat:  cfg.Transcribe.MediaFormat,
			LanguageCode: cfg.Transcribe.LanguageCode,
			PollInterval: cfg.Transcribe.PollInterval,
			Timeout:      cfg.Transcribe.JobTimeout,
		},
		log.With().Str("component", "transcribe").Logger(),
	)

	service := videoinfo.NewService(videoinfo.Deps{
		Metadata:    metadata,
		Captions:    captions,
		Downloader:  downloader,
		Uploader:    uploader,
		Transcriber: runner,
		Cleaner:     scratch,
	}, cfg.Fallback.Policy, log)

	return &App{
		Service:  service,
		Registry: registry,
		Scratch:  scratch,
	}, nil
}

// Close releases the job registry.
func (a *App) Close() error {
	return a.Registry.Close()
}
