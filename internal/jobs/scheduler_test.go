package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/challenge-api/internal/dto"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(ctx context.Context) (dto.SweepResponse, error) {
	s.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return dto.SweepResponse{}, errors.New("sweep must run with a deadline")
	}
	return dto.SweepResponse{Examined: 1}, s.err
}

func TestSchedulerRunsSweep(t *testing.T) {
	sweeper := &countingSweeper{}
	scheduler, err := NewScheduler(sweeper, Config{Spec: "@every 1s", Timezone: "UTC"}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	t.Cleanup(scheduler.Stop)

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRejectsBadConfig(t *testing.T) {
	_, err := NewScheduler(&countingSweeper{}, Config{Timezone: "Mars/Olympus"}, zerolog.Nop())
	require.Error(t, err)

	scheduler, err := NewScheduler(&countingSweeper{}, Config{Spec: "every now and then"}, zerolog.Nop())
	require.NoError(t, err)
	require.Error(t, scheduler.Start(context.Background()))
}

func TestRunOnceSurvivesSweepErrors(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("database unavailable")}
	scheduler, err := NewScheduler(sweeper, Config{}, zerolog.Nop())
	require.NoError(t, err)

	scheduler.RunOnce(context.Background())
	scheduler.RunOnce(context.Background())
	require.Equal(t, int32(2), sweeper.calls.Load())
}
