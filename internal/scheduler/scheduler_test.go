package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, locker Locker) *Scheduler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := New(Options{Location: time.UTC, Locker: locker, LockTTL: time.Minute, Logger: logger})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestScheduler_RunNow(t *testing.T) {
	s := newScheduler(t, nil)

	var runs atomic.Int32
	require.NoError(t, s.Add(JobEligibility, "5 22 * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.RunNow(context.Background(), JobEligibility))
	assert.Equal(t, int32(1), runs.Load())

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, JobEligibility, status[0].Name)
	assert.False(t, status[0].LastRun.IsZero())
	assert.Empty(t, status[0].LastErr)

	err := s.RunNow(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := newScheduler(t, nil)
	assert.Error(t, s.Add(JobExport, "every night", func(context.Context) error { return nil }))
}

func TestScheduler_DuplicateName(t *testing.T) {
	s := newScheduler(t, nil)
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.Add(JobExport, "0 22 * * *", noop))
	assert.Error(t, s.Add(JobExport, "0 23 * * *", noop))
}

func TestScheduler_FailureIsolation(t *testing.T) {
	s := newScheduler(t, nil)

	var evaluated atomic.Bool
	require.NoError(t, s.Add(JobExport, "0 22 * * *", func(context.Context) error {
		return errors.New("disk full")
	}))
	require.NoError(t, s.Add(JobEligibility, "5 22 * * *", func(context.Context) error {
		evaluated.Store(true)
		return nil
	}))

	assert.Error(t, s.RunNow(context.Background(), JobExport))
	require.NoError(t, s.RunNow(context.Background(), JobEligibility))
	assert.True(t, evaluated.Load())

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, JobEligibility, status[0].Name)
	assert.Empty(t, status[0].LastErr)
	assert.Equal(t, JobExport, status[1].Name)
	assert.Contains(t, status[1].LastErr, "disk full")
}

func TestScheduler_RecoversPanic(t *testing.T) {
	s := newScheduler(t, nil)
	require.NoError(t, s.Add(JobExport, "0 22 * * *", func(context.Context) error {
		panic("boom")
	}))

	err := s.RunNow(context.Background(), JobExport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// The guard is released after a panic
	err = s.RunNow(context.Background(), JobExport)
	assert.NotErrorIs(t, err, ErrAlreadyRunning)
}

func TestScheduler_OverlapGuard(t *testing.T) {
	s := newScheduler(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Add(JobEligibility, "5 22 * * *", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), JobEligibility) }()
	<-started

	assert.ErrorIs(t, s.RunNow(context.Background(), JobEligibility), ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	s := newScheduler(t, nil)

	fired := make(chan struct{}, 1)
	require.NoError(t, s.Add(JobExport, "@every 1s", func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}))
	s.Start()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not fire")
	}
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "airdrop:"), mr
}

func TestRedisLocker_Exclusive(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "job:export", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("airdrop:job:export"))

	_, ok, err = locker.TryLock(ctx, "job:export", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("airdrop:job:export"))

	_, ok, err = locker.TryLock(ctx, "job:export", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_ExpiredLockNotReleasedByOldHolder(t *testing.T) {
	locker, mr := newRedisLocker(t)
	ctx := context.Background()

	staleRelease, ok, err := locker.TryLock(ctx, "job:eligibility", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "job:eligibility", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, staleRelease(ctx))
	assert.True(t, mr.Exists("airdrop:job:eligibility"), "old holder must not delete the new holder's lock")
}

func TestScheduler_SkipsWhenLockedElsewhere(t *testing.T) {
	locker, _ := newRedisLocker(t)
	other := newScheduler(t, locker)
	s := newScheduler(t, locker)

	var runs atomic.Int32
	job := func(context.Context) error {
		runs.Add(1)
		return nil
	}
	require.NoError(t, s.Add(JobExport, "0 22 * * *", job))
	require.NoError(t, other.Add(JobExport, "0 22 * * *", job))

	// Another replica holds the lock
	release, ok, err := locker.TryLock(context.Background(), "job:"+JobExport, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, s.RunNow(context.Background(), JobExport), ErrLocked)
	assert.Zero(t, runs.Load())

	require.NoError(t, release(context.Background()))
	require.NoError(t, other.RunNow(context.Background(), JobExport))
	require.NoError(t, s.RunNow(context.Background(), JobExport), "lock is released after each run")
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_LockErrorSkipsTick(t *testing.T) {
	locker, mr := newRedisLocker(t)
	s := newScheduler(t, locker)

	var runs atomic.Int32
	require.NoError(t, s.Add(JobExport, "0 22 * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	mr.Close()
	assert.Error(t, s.RunNow(context.Background(), JobExport))
	assert.Zero(t, runs.Load())
}
