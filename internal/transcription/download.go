package transcription

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/video-transcript/internal/storage"
	"github.com/codebuildervaibhav/video-transcript/internal/types"
)

// CommandRunner runs an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, killing them when ctx is done.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Downloader extracts the audio track of a YouTube video with yt-dlp
type Downloader struct {
	binary  string
	scratch *storage.Scratch
	run     CommandRunner
	log     zerolog.Logger
}

// NewDownloader creates a downloader writing into scratch. A nil run uses ExecRunner.
func NewDownloader(binary string, scratch *storage.Scratch, run CommandRunner, log zerolog.Logger) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Downloader{
		binary:  binary,
		scratch: scratch,
		run:     run,
		log:     log,
	}
}

// Download fetches the best available audio stream as mp3 and returns the
// path of the created file. attempt makes the path unique to one download.
func (d *Downloader) Download(ctx context.Context, videoID, attempt string) (string, error) {
	if err := d.scratch.Ensure(); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrDownload, err)
	}
	outputPath := d.scratch.AudioPath(videoID, attempt)

	d.log.Info().Str("video_id", videoID).Str("path", outputPath).Msg("Downloading audio")

	output, err := d.run(ctx, d.binary,
		"-f", "bestaudio/best",
		"--ignore-config",
		"--no-progress",
		"--no-mtime",
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "mp3",
		"-o", outputPath,
		"https://www.youtube.com/watch?v="+videoID,
	)
	if err != nil {
		d.log.Error().Str("video_id", videoID).Err(err).Str("output", string(output)).Msg("Failed to download audio")
		return "", fmt.Errorf("%w: %s failed: %v", types.ErrDownload, d.binary, err)
	}

	// yt-dlp may append the audio extension to the template path
	finalPath := outputPath
	if _, err := os.Stat(finalPath); err != nil {
		finalPath = outputPath + ".mp3"
	}
	if _, err := os.Stat(finalPath); err != nil {
		return "", fmt.Errorf("%w: file was not created: %s", types.ErrDownload, finalPath)
	}

	d.log.Info().Str("video_id", videoID).Str("path", finalPath).Msg("File created")
	return finalPath, nil
}
