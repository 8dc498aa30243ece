package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/tweeter-be/internal/auth"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs periodic housekeeping jobs.
type Scheduler struct {
	cron      *cron.Cron
	blacklist auth.Blacklist
	log       zerolog.Logger
	now       func() time.Time
}

// NewScheduler creates a scheduler that purges expired revoked tokens on schedule,
// a standard cron expression or descriptor such as "@hourly".
func NewScheduler(schedule string, blacklist auth.Blacklist, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		blacklist: blacklist,
		log:       log,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.runPurge); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run purges once immediately, then starts the cron loop in the background.
func (s *Scheduler) Run() {
	s.log.Info().Msg("Starting maintenance scheduler...")
	s.runPurge()
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Stopped maintenance scheduler.")
}

// PurgeExpiredTokens removes blacklist entries for tokens that can no longer be used.
func (s *Scheduler) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.blacklist.PurgeExpired(ctx, s.now())
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.PurgeExpiredTokens(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to purge expired revoked tokens")
		return
	}
	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("Purged expired revoked tokens")
	}
}
