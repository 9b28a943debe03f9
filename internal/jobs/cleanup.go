package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carelink/telehealth-go/internal/config"
	"github.com/carelink/telehealth-go/internal/repository"
)

// CleanupJob prunes aged call-attempt history on a fixed interval.
type CleanupJob struct {
	callAttemptRepo repository.CallAttemptRepository
	interval        time.Duration
	done            chan struct{}
}

func NewCleanupJob(callAttemptRepo repository.CallAttemptRepository, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		callAttemptRepo: callAttemptRepo,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-config.CallAttemptRetention)
	count, err := j.callAttemptRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup call attempts")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up call attempts")
	}
}
