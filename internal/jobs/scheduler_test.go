package jobs

import (
	"context"
	nativeerrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) RunOnce(context.Context) (int, error) {
	r.calls.Add(1)
	return 1, r.err
}

func runScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
}

func TestArchivalRunsRepeatedly(t *testing.T) {
	s, err := NewScheduler(zaptest.NewLogger(t))
	require.NoError(t, err)

	runner := &countingRunner{}
	require.NoError(t, s.AddArchival(context.Background(), 20*time.Millisecond, runner))
	runScheduler(t, s)

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestArchivalStartsImmediately(t *testing.T) {
	s, err := NewScheduler(zaptest.NewLogger(t))
	require.NoError(t, err)

	runner := &countingRunner{}
	require.NoError(t, s.AddArchival(context.Background(), time.Hour, runner))
	runScheduler(t, s)

	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestArchivalErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := NewScheduler(zap.New(core))
	require.NoError(t, err)

	runner := &countingRunner{err: nativeerrors.New("bucket unreachable")}
	require.NoError(t, s.AddArchival(context.Background(), time.Hour, runner))
	runScheduler(t, s)

	assert.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("archive replays").Len() > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAddArchivalRejectsInvalidInterval(t *testing.T) {
	s, err := NewScheduler(zaptest.NewLogger(t))
	require.NoError(t, err)

	err = s.AddArchival(context.Background(), 0, &countingRunner{})
	require.Error(t, err)
	require.NoError(t, s.sched.Shutdown())
}
