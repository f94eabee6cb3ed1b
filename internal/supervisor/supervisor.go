// Package supervisor keeps a shuffler session running for the lifetime of
// the process.
package supervisor

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/awused/mpd-shuffler/internal/shuffler"
)

// Runner runs one session until it fails or ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, maintenance <-chan os.Signal) error
}

// Supervisor restarts a Runner after recoverable failures.
type Supervisor struct {
	runner     Runner
	retryDelay time.Duration
}

// New creates a supervisor that waits retryDelay between failed sessions.
func New(runner Runner, retryDelay time.Duration) *Supervisor {
	return &Supervisor{runner: runner, retryDelay: retryDelay}
}

// Run blocks until ctx is cancelled or a session fails with an error that
// cannot be retried. While connected, maintenance is handed to the session.
// While waiting to reconnect, a maintenance signal cuts the wait short.
func (s *Supervisor) Run(ctx context.Context, maintenance <-chan os.Signal) error {
	for attempt := 1; ; attempt++ {
		err := s.runner.Run(ctx, maintenance)
		if ctx.Err() != nil {
			log.Info().Msg("Shutting down")
			return nil
		}
		if shuffler.IsFatal(err) {
			return err
		}

		if err != nil {
			log.Error().Err(err).
				Stringer("kind", shuffler.Classify(err)).
				Int("attempt", attempt).
				Dur("retry_in", s.retryDelay).
				Msg("Session failed")
		} else {
			log.Warn().Int("attempt", attempt).Dur("retry_in", s.retryDelay).Msg("Session ended")
		}

		if !s.wait(ctx, maintenance) {
			log.Info().Msg("Shutting down")
			return nil
		}
	}
}

// wait reports false when ctx is cancelled before the next attempt is due.
func (s *Supervisor) wait(ctx context.Context, maintenance <-chan os.Signal) bool {
	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case sig := <-maintenance:
		log.Info().Stringer("signal", sig).Msg("Reconnecting now")
		return true
	}
}
