package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Scratch manages local working files such as downloaded audio
type Scratch struct {
	dir string
	log zerolog.Logger
}

// NewScratch creates a scratch space rooted at dir
func NewScratch(dir string, log zerolog.Logger) *Scratch {
	return &Scratch{dir: dir, log: log}
}

// Dir returns the scratch directory.
func (s *Scratch) Dir() string { return s.dir }

// Ensure creates the scratch directory if it doesn't exist
func (s *Scratch) Ensure() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return nil
}

// AudioPath returns the audio file path for one download attempt of a
// video. Distinct attempts never share a path.
func (s *Scratch) AudioPath(videoID, attempt string) string {
	return filepath.Join(s.dir, sanitizeFilename(videoID)+"-"+sanitizeFilename(attempt)+".mp3")
}

// RemoveAudio deletes every audio file the downloader may have produced for
// an attempt. Missing files are ignored.
func (s *Scratch) RemoveAudio(videoID, attempt string) {
	path := s.AudioPath(videoID, attempt)
	s.Remove(path)
	s.Remove(path + ".mp3")
}

// Remove deletes a file, logging failures other than the file not existing.
func (s *Scratch) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("path", path).Msg("Failed to remove scratch file")
	}
}

// sanitizeFilename replaces characters that are not safe in a file name
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if result == "" {
		result = "_"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
