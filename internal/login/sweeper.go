package login

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/store"
	"github.com/wolfeidau/hrdesk/internal/telemetry"
)

// Sweeper periodically deletes expired sessions from the SessionStore.
type Sweeper struct {
	sessions store.SessionStore
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper starts a background goroutine that sweeps every interval until
// Stop is called. The first sweep runs synchronously.
func NewSweeper(ctx context.Context, sessions store.SessionStore, interval time.Duration) *Sweeper {
	sweepCtx, cancel := context.WithCancel(ctx)

	s := &Sweeper{
		sessions: sessions,
		interval: interval,
		ctx:      sweepCtx,
		cancel:   cancel,
	}

	if _, err := s.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("Initial session sweep failed")
	}

	s.wg.Add(1)
	go s.loop()

	return s
}

// Stop gracefully stops the background goroutine.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Info().Msg("Session sweeper stopped")
			return

		case <-ticker.C:
			if _, err := s.Sweep(s.ctx); err != nil {
				log.Error().Err(err).Msg("Failed to sweep expired sessions")
			}
		}
	}
}

// Sweep deletes expired sessions once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	count, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		telemetry.GetMetrics().SessionsSwept.Add(ctx, int64(count))
		log.Info().Int("count", count).Msg("Swept expired sessions")
	}

	return count, nil
}
