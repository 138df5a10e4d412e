package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ResetPurger clears expired password reset tokens.
type ResetPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	purger  ResetPurger
	spec    string
	timeout time.Duration
	log     zerolog.Logger
}

// NewScheduler runs purger on spec, a six-field cron expression.
func NewScheduler(purger ResetPurger, spec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		purger:  purger,
		spec:    spec,
		timeout: time.Minute,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if s.purger == nil || s.spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.purgeResetTokens); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) purgeResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired reset tokens failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("purged", n).Msg("expired reset tokens purged")
	}
}
