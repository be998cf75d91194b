package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestScheduler(t *testing.T, delay time.Duration, task TaskFunc) *Scheduler {
	t.Helper()
	s, err := NewScheduler("test-task", "@every 1h", task, nopLogger())
	require.NoError(t, err)
	s.schedule = fixedDelay(delay)
	return s
}

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	var count atomic.Int32
	s := newTestScheduler(t, 20*time.Millisecond, func(context.Context) error {
		count.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool { return count.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, s.Stop(context.Background()))

	stopped := count.Load()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, stopped, count.Load(), "no runs after stop")
}

func TestScheduler_RunsNeverOverlap(t *testing.T) {
	var active, maxActive, runs atomic.Int32
	s := newTestScheduler(t, time.Millisecond, func(context.Context) error {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		active.Add(-1)
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, int32(1), maxActive.Load())
}

func TestScheduler_TaskErrorsDoNotStopLoop(t *testing.T) {
	var count atomic.Int32
	s := newTestScheduler(t, 5*time.Millisecond, func(context.Context) error {
		count.Add(1)
		return errors.New("cycle failed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return count.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, s.Stop(context.Background()))
}

func TestStop_WaitsForInflightRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := newTestScheduler(t, time.Hour, func(context.Context) error {
		close(started)
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	<-started
	cancel()

	stopDone := make(chan error, 1)
	go func() { stopDone <- s.Stop(context.Background()) }()

	select {
	case <-stopDone:
		t.Fatal("Stop returned before in-flight run completed")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-stopDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after run completed")
	}
}

func TestStop_RespectsContextTimeout(t *testing.T) {
	blocked := make(chan struct{})
	defer close(blocked)

	s := newTestScheduler(t, time.Hour, func(context.Context) error {
		<-blocked
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stopCancel()
	require.ErrorIs(t, s.Stop(stopCtx), context.DeadlineExceeded)
}

func TestScheduler_CancelDuringLongSleep(t *testing.T) {
	var count atomic.Int32
	s := newTestScheduler(t, time.Hour, func(context.Context) error {
		count.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	cancel()
	require.NoError(t, s.Stop(context.Background()))
	require.Less(t, time.Since(start), SleepSlice+500*time.Millisecond)
}

func TestScheduler_ResetScheduleWakesSleep(t *testing.T) {
	var count atomic.Int32
	s := newTestScheduler(t, time.Hour, func(context.Context) error {
		count.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.ResetSchedule("@every 1s"))
	require.Equal(t, "@every 1s", s.Expr())
	require.Eventually(t, func() bool { return count.Load() >= 2 }, 4*time.Second, 20*time.Millisecond)

	require.Error(t, s.ResetSchedule("not a schedule"))
	require.Equal(t, "@every 1s", s.Expr())

	cancel()
	require.NoError(t, s.Stop(context.Background()))
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{expr: "@every 5m"},
		{expr: "@every 300s"},
		{expr: "@hourly"},
		{expr: "*/5 * * * *"},
		{expr: "0 3 * * 1-5"},
		{expr: "", wantErr: true},
		{expr: "   ", wantErr: true},
		{expr: "every five minutes", wantErr: true},
		{expr: "0 */5 * * * *", wantErr: true},
		{expr: "@every nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEveryExpr(t *testing.T) {
	expr := EveryExpr(300)
	require.Equal(t, "@every 300s", expr)

	d, err := ParseEveryExpr(expr)
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, d)

	_, err = ParseEveryExpr("*/5 * * * *")
	require.Error(t, err)
	_, err = ParseEveryExpr("")
	require.Error(t, err)
}

func TestSleepContext(t *testing.T) {
	t.Run("sleeps full duration", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, SleepContext(context.Background(), 30*time.Millisecond))
		require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("returns promptly on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := SleepContext(ctx, time.Hour)
		require.ErrorIs(t, err, context.Canceled)
		require.Less(t, time.Since(start), SleepSlice+500*time.Millisecond)
	})

	t.Run("zero duration", func(t *testing.T) {
		require.NoError(t, SleepContext(context.Background(), 0))
	})
}
