package payouts

import (
	"context"
	"errors"
	"testing"
	"time"

	"deliveryhub/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls int
	n     int
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

func TestScheduler_RunOnce(t *testing.T) {
	svc, _, locker := newFixture()
	sweeper := &fakeSweeper{n: 2}
	s := NewScheduler(svc, sweeper, locker, "@every 1h", logger.Discard())

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 2, res.Rewarded)
	assert.Equal(t, 1, sweeper.calls)
	assert.Empty(t, locker.held, "lock is released after the pass")
}

func TestScheduler_SkipsWhileAnotherInstanceRuns(t *testing.T) {
	svc, repo, locker := newFixture()
	sweeper := &fakeSweeper{}
	s := NewScheduler(svc, sweeper, locker, "@every 1h", logger.Discard())

	release, ok, err := locker.TryAcquire(context.Background(), schedulerLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, sweeper.calls)
	assert.Zero(t, repo.inserted)
}

func TestScheduler_SweepError(t *testing.T) {
	svc, _, locker := newFixture()
	s := NewScheduler(svc, &fakeSweeper{err: errors.New("db down")}, locker, "@every 1h", logger.Discard())

	res, err := s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 3, res.Created)
}

func TestScheduler_Run(t *testing.T) {
	svc, _, locker := newFixture()

	bad := NewScheduler(svc, nil, locker, "whenever", logger.Discard())
	assert.Error(t, bad.Run(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(svc, nil, locker, "@every 1h", logger.Discard())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
