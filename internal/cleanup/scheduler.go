package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// JobPruner deletes job records last updated before a cutoff
type JobPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler periodically removes stale scratch files and old job records
type Scheduler struct {
	scratchDir string
	pruner     JobPruner
	interval   time.Duration
	maxAge     time.Duration
	now        func() time.Time
	log        zerolog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler creates a new cleanup scheduler. pruner may be nil.
func NewScheduler(scratchDir string, pruner JobPruner, intervalMinutes, maxAgeHours int, log zerolog.Logger) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	return &Scheduler{
		scratchDir: scratchDir,
		pruner:     pruner,
		interval:   time.Duration(intervalMinutes) * time.Minute,
		maxAge:     time.Duration(maxAgeHours) * time.Hour,
		now:        time.Now,
		log:        log,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one every interval
func (s *Scheduler) Start() {
	s.log.Info().Msg("Running initial cleanup")
	s.RunOnce(context.Background())

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stopChan:
				return
			}
		}
	}()

	s.log.Info().
		Dur("interval", s.interval).
		Dur("max_age", s.maxAge).
		Msg("Cleanup scheduler started")
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.log.Info().Msg("Cleanup scheduler stopped")
	})
}

// RunOnce performs a single sweep and returns the number of files and job
// records removed.
func (s *Scheduler) RunOnce(ctx context.Context) (files int, jobs int64) {
	cutoff := s.now().Add(-s.maxAge)
	files = s.cleanOldFiles(cutoff)

	if s.pruner != nil {
		n, err := s.pruner.PruneBefore(ctx, cutoff)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to prune job records")
		} else {
			jobs = n
		}
	}

	if files > 0 || jobs > 0 {
		s.log.Info().Int("files", files).Int64("jobs", jobs).Msg("Cleanup complete")
	}
	return files, jobs
}

// cleanOldFiles removes files modified before cutoff from the scratch directory
func (s *Scheduler) cleanOldFiles(cutoff time.Time) int {
	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.scratchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old scratch file")
			return nil
		}
		deletedCount++
		deletedSize += info.Size()
		s.log.Debug().
			Str("file", filepath.Base(path)).
			Int64("size_kb", info.Size()/1024).
			Msg("Deleted old scratch file")
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Error during cleanup")
	}

	if deletedCount > 0 {
		s.log.Info().
			Int("files", deletedCount).
			Float64("freed_mb", float64(deletedSize)/(1024*1024)).
			Msg("Removed stale scratch files")
	}
	return deletedCount
}
