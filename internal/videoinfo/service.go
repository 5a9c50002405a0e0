package videoinfo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/codebuildervaibhav/video-transcript/internal/config"
	"github.com/codebuildervaibhav/video-transcript/internal/logging"
	"github.com/codebuildervaibhav/video-transcript/internal/transcription"
	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// MetadataFetcher looks up the title, description and channel of a video.
type MetadataFetcher interface {
	VideoMetadata(ctx context.Context, videoID string) (*types.VideoMetadata, error)
}

// CaptionFetcher returns a video's captions formatted as transcript lines.
type CaptionFetcher interface {
	Transcript(ctx context.Context, videoID string) ([]string, error)
}

// AudioDownloader saves a video's audio track locally and returns its path.
// Each attempt id gets its own file.
type AudioDownloader interface {
	Download(ctx context.Context, videoID, attempt string) (string, error)
}

// Uploader moves a local file to object storage and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, filePath, key string) (string, error)
}

// TranscriptionRunner runs a transcription job to completion.
type TranscriptionRunner interface {
	Run(ctx context.Context, videoID, jobName, mediaURI string) (*types.TranscriptDocument, error)
}

// AudioCleaner removes any local audio left behind by one download attempt.
type AudioCleaner interface {
	RemoveAudio(videoID, attempt string)
}

// Stage identifies a step of the pipeline reported to an Observer
type Stage string

const (
	StageMetadata   Stage = "metadata"
	StageCaptions   Stage = "captions"
	StageDownload   Stage = "download"
	StageUpload     Stage = "upload"
	StageTranscribe Stage = "transcribe"
	StageDone       Stage = "done"
)

// Observer is called as the pipeline enters each stage.
type Observer func(Stage)

// Deps are the collaborators of a Service. All fields are required.
type Deps struct {
	Metadata    MetadataFetcher
	Captions    CaptionFetcher
	Downloader  AudioDownloader
	Uploader    Uploader
	Transcriber TranscriptionRunner
	Cleaner     AudioCleaner
}

// Service resolves video info, falling back to audio transcription when a
// video has no usable captions
type Service struct {
	deps       Deps
	policy     string
	now        func() time.Time
	newAttempt func() string
	log        zerolog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// NewService creates a service applying the given fallback policy. An empty
// policy means config.PolicyDegrade.
func NewService(deps Deps, policy string, log zerolog.Logger) *Service {
	if policy == "" {
		policy = config.PolicyDegrade
	}
	return &Service{
		deps:       deps,
		policy:     policy,
		now:        time.Now,
		newAttempt: uuid.NewString,
		log:        log,
		flights:    make(map[string]*flight),
	}
}

// Policy returns the fallback policy in effect.
func (s *Service) Policy() string { return s.policy }

// Get returns the video info for videoID.
func (s *Service) Get(ctx context.Context, videoID string) (*types.VideoInfo, error) {
	return s.join(ctx, videoID, nil)
}

// Watch is like Get but also reports each stage to obs. A caller joining a
// run already in progress first receives the stages reached so far.
func (s *Service) Watch(ctx context.Context, videoID string, obs Observer) (*types.VideoInfo, error) {
	return s.join(ctx, videoID, obs)
}

// join attaches the caller to the run for videoID, starting one if none is
// in flight. At most one run per video id exists at a time; it is bound to
// the context of the caller that started it.
func (s *Service) join(ctx context.Context, videoID string, obs Observer) (*types.VideoInfo, error) {
	s.mu.Lock()
	f, ok := s.flights[videoID]
	if !ok {
		f = &flight{}
		s.flights[videoID] = f
	}
	ch := s.group.DoChan(videoID, func() (interface{}, error) {
		defer s.land(videoID)
		return s.run(ctx, videoID, f.notify)
	})
	s.mu.Unlock()

	// f keeps every stage it reached, so subscribing late misses nothing.
	leave := f.subscribe(obs)
	defer leave()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		info := *res.Val.(*types.VideoInfo)
		return &info, nil
	}
}

// land ends the run for videoID so the next caller starts a fresh one.
func (s *Service) land(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flights, videoID)
	s.group.Forget(videoID)
}

// flight fans the stages of one run out to every subscribed observer.
type flight struct {
	mu        sync.Mutex
	reached   []Stage
	observers map[int]Observer
	next      int
}

func (f *flight) subscribe(obs Observer) (leave func()) {
	if obs == nil {
		return func() {}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stage := range f.reached {
		obs(stage)
	}
	if f.observers == nil {
		f.observers = make(map[int]Observer)
	}
	id := f.next
	f.next++
	f.observers[id] = obs
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.observers, id)
	}
}

func (f *flight) notify(stage Stage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reached = append(f.reached, stage)
	for _, obs := range f.observers {
		obs(stage)
	}
}

func (s *Service) run(ctx context.Context, videoID string, obs Observer) (*types.VideoInfo, error) {
	log := logging.ForVideo(s.log, videoID)

	notify(obs, StageMetadata)
	meta, err := s.deps.Metadata.VideoMetadata(ctx, videoID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch video metadata")
		return nil, err
	}

	transcript, err := s.transcript(ctx, videoID, obs, log)
	if err != nil {
		return nil, err
	}

	notify(obs, StageDone)
	log.Info().
		Bool("transcript_available", transcript.Available()).
		Str("source", transcript.Source()).
		Int("segments", len(transcript.Lines())).
		Msg("Video info resolved")

	return &types.VideoInfo{
		Title:       meta.Title,
		Description: meta.Description,
		Channel:     meta.Channel,
		Transcript:  transcript,
	}, nil
}

func (s *Service) transcript(ctx context.Context, videoID string, obs Observer, log zerolog.Logger) (types.TranscriptResult, error) {
	notify(obs, StageCaptions)
	lines, err := s.deps.Captions.Transcript(ctx, videoID)
	if err == nil {
		log.Info().Int("lines", len(lines)).Msg("Fetched captions")
		return types.Segments(lines, types.SourceCaptions), nil
	}
	if !types.IsCaptionFallback(err) {
		log.Error().Err(err).Msg("Failed to fetch captions")
		return types.TranscriptResult{}, err
	}

	log.Warn().Err(err).Msg("Captions unavailable, falling back to audio transcription")

	lines, err = s.fallback(ctx, videoID, obs, log)
	if err != nil {
		err = fmt.Errorf("%w: %w", types.ErrFallback, err)
		if s.policy == config.PolicyStrict || ctx.Err() != nil {
			log.Error().Err(err).Msg("Fallback transcription failed")
			return types.TranscriptResult{}, err
		}
		log.Error().Err(err).Msg("Fallback transcription failed, returning placeholder transcript")
		return types.Unavailable(types.UnavailableReason), nil
	}
	return types.Segments(lines, types.SourceTranscription), nil
}

func (s *Service) fallback(ctx context.Context, videoID string, obs Observer, log zerolog.Logger) ([]string, error) {
	attempt := s.newAttempt()
	log = log.With().Str("attempt", attempt).Logger()

	// The uploader removes the file on success; this covers every other exit.
	defer s.deps.Cleaner.RemoveAudio(videoID, attempt)

	notify(obs, StageDownload)
	path, err := s.deps.Downloader.Download(ctx, videoID, attempt)
	if err != nil {
		return nil, err
	}

	notify(obs, StageUpload)
	uri, err := s.deps.Uploader.Upload(ctx, path, "")
	if err != nil {
		return nil, err
	}
	log.Info().Str("source_uri", uri).Msg("Uploaded audio")

	notify(obs, StageTranscribe)
	jobName := transcription.JobName(videoID, s.now())
	doc, err := s.deps.Transcriber.Run(ctx, videoID, jobName, uri)
	if err != nil {
		return nil, err
	}
	return transcription.GroupSegments(doc), nil
}

func notify(obs Observer, stage Stage) {
	if obs != nil {
		obs(stage)
	}
}
