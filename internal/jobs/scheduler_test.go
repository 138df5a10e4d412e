package jobs_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natours/api/internal/jobs"
)

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) PurgeExpired(context.Context) (int, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestScheduler_RunsPurge(t *testing.T) {
	purger := &countingPurger{}
	s := jobs.NewScheduler(purger, "@every 1s", zerolog.Nop())
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return purger.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestScheduler_Start(t *testing.T) {
	assert.Error(t, jobs.NewScheduler(&countingPurger{}, "not a schedule", zerolog.Nop()).Start())
	assert.NoError(t, jobs.NewScheduler(&countingPurger{}, "", zerolog.Nop()).Start())
	assert.NoError(t, jobs.NewScheduler(nil, "@every 1s", zerolog.Nop()).Start())
}
