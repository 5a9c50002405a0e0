package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	tctypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/egress"
	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// TranscribeAPI is the subset of the Amazon Transcribe client used by JobRunner.
type TranscribeAPI interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// JobRecorder keeps track of submitted jobs and their status.
type JobRecorder interface {
	CreateJob(ctx context.Context, jobName, videoID, sourceURI string) error
	UpdateJobStatus(ctx context.Context, jobName, status, detail string) error
}

// JobConfig holds the fixed job parameters and polling bounds
type JobConfig struct {
	MediaFormat  string
	LanguageCode string
	PollInterval time.Duration
	Timeout      time.Duration
}

// JobRunner submits transcription jobs and waits for their result
type JobRunner struct {
	api        TranscribeAPI
	recorder   JobRecorder
	httpClient *http.Client
	cfg        JobConfig
	log        zerolog.Logger
}

// NewJobRunner creates a job runner. recorder may be nil.
func NewJobRunner(api TranscribeAPI, recorder JobRecorder, httpClient *http.Client, cfg JobConfig, log zerolog.Logger) *JobRunner {
	if cfg.MediaFormat == "" {
		cfg.MediaFormat = "mp3"
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &JobRunner{
		api:        api,
		recorder:   recorder,
		httpClient: httpClient,
		cfg:        cfg,
		log:        log,
	}
}

// JobName builds a job name that is unique per attempt.
func JobName(videoID string, now time.Time) string {
	return fmt.Sprintf("transcription-%s-%d", videoID, now.Unix())
}

// Run starts a job for the media at mediaURI, polls until it reaches a
// terminal state and returns the parsed result document.
//
// A FAILED job yields types.ErrTranscriptionJob; a job still running after
// the configured timeout yields types.ErrTranscriptionTimeout.
func (r *JobRunner) Run(ctx context.Context, videoID, jobName, mediaURI string) (*types.TranscriptDocument, error) {
	log := r.log.With().Str("video_id", videoID).Str("job_name", jobName).Logger()

	_, err := r.api.StartTranscriptionJob(ctx, &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		Media:                &tctypes.Media{MediaFileUri: aws.String(mediaURI)},
		MediaFormat:          tctypes.MediaFormat(r.cfg.MediaFormat),
		LanguageCode:         tctypes.LanguageCode(r.cfg.LanguageCode),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", types.ErrTranscriptionJob, jobName, err)
	}
	log.Info().Str("source_uri", mediaURI).Msg("Started transcription job")
	r.record(func(rec JobRecorder) error { return rec.CreateJob(ctx, jobName, videoID, mediaURI) })

	transcriptURI, err := r.wait(ctx, jobName, log)
	if err != nil {
		return nil, err
	}

	doc, err := r.fetchResult(ctx, transcriptURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrTranscriptionJob, err)
	}
	return doc, nil
}

// wait polls the job every PollInterval and returns the transcript file URI
// once the job completes.
func (r *JobRunner) wait(ctx context.Context, jobName string, log zerolog.Logger) (string, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, r.cfg.Timeout, types.ErrTranscriptionTimeout)
	defer cancel()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	lastStatus := ""
	for {
		out, err := r.api.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", r.stopped(ctx, jobName)
			}
			return "", fmt.Errorf("%w: get %s: %v", types.ErrTranscriptionJob, jobName, err)
		}

		job := out.TranscriptionJob
		if job == nil {
			return "", fmt.Errorf("%w: job %s missing from response", types.ErrTranscriptionJob, jobName)
		}

		status := string(job.TranscriptionJobStatus)
		if status != lastStatus {
			detail := aws.ToString(job.FailureReason)
			r.record(func(rec JobRecorder) error { return rec.UpdateJobStatus(ctx, jobName, status, detail) })
			lastStatus = status
		}

		switch job.TranscriptionJobStatus {
		case tctypes.TranscriptionJobStatusCompleted:
			log.Info().Str("status", status).Msg("Transcription job status")
			if job.Transcript == nil || aws.ToString(job.Transcript.TranscriptFileUri) == "" {
				return "", fmt.Errorf("%w: job %s completed without a transcript uri", types.ErrTranscriptionJob, jobName)
			}
			return aws.ToString(job.Transcript.TranscriptFileUri), nil
		case tctypes.TranscriptionJobStatusFailed:
			reason := aws.ToString(job.FailureReason)
			log.Error().Str("status", status).Str("reason", reason).Msg("Transcription job status")
			return "", fmt.Errorf("%w: %s: %s", types.ErrTranscriptionJob, jobName, reason)
		}

		log.Debug().Str("status", status).Msg("Waiting for transcription job to complete")
		select {
		case <-ctx.Done():
			return "", r.stopped(ctx, jobName)
		case <-ticker.C:
		}
	}
}

// stopped converts a done polling context into the caller-visible error.
func (r *JobRunner) stopped(ctx context.Context, jobName string) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, types.ErrTranscriptionTimeout) {
		// ctx is already done, record with a fresh one
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		r.record(func(rec JobRecorder) error {
			return rec.UpdateJobStatus(recCtx, jobName, types.StatusTimedOut, r.cfg.Timeout.String())
		})
		return fmt.Errorf("%w: %s after %s", types.ErrTranscriptionTimeout, jobName, r.cfg.Timeout)
	}
	return fmt.Errorf("waiting for %s: %w", jobName, cause)
}

func (r *JobRunner) fetchResult(ctx context.Context, uri string) (*types.TranscriptDocument, error) {
	resp, err := egress.DoHTTP(ctx, egress.DefaultBackoff, r.log, "fetch transcript", func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		return r.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch transcript: status %d: %s", resp.StatusCode, body)
	}

	var doc types.TranscriptDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &doc, nil
}

func (r *JobRunner) record(fn func(JobRecorder) error) {
	if r.recorder == nil {
		return
	}
	if err := fn(r.recorder); err != nil {
		r.log.Warn().Err(err).Msg("Failed to record transcription job")
	}
}
