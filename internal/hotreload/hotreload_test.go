package hotreload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hostward/device-agent/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeReloader struct {
	changes  []config.ConfigChange
	warnings []string
	err      error
	calls    int
}

func (f *fakeReloader) ReloadConfig() ([]config.ConfigChange, []string, error) {
	f.calls++
	return f.changes, f.warnings, f.err
}

type fakeScheduler struct {
	exprs []string
	err   error
}

func (f *fakeScheduler) ResetSchedule(expr string) error {
	f.exprs = append(f.exprs, expr)
	return f.err
}

func newManager(r Reloader, s ScheduleResetter) *HotReloadManager {
	log := zerolog.Nop()
	return NewHotReloadManager(r, &log, s)
}

func TestReload_AppliesChanges(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	reloader := &fakeReloader{changes: []config.ConfigChange{
		{Type: config.LogLevelChanged, OldValue: "info", NewValue: "error"},
		{Type: config.ScheduleChanged, OldValue: "@every 300s", NewValue: "@every 60s"},
		{Type: config.RestartRequired, OldValue: "settings_changed", NewValue: "settings_changed"},
	}}
	sched := &fakeScheduler{}

	require.NoError(t, newManager(reloader, sched).Reload())
	require.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
	require.Equal(t, []string{"@every 60s"}, sched.exprs)
}

func TestReload_Errors(t *testing.T) {
	t.Run("reload failure", func(t *testing.T) {
		reloader := &fakeReloader{err: errors.New("invalid config")}
		sched := &fakeScheduler{}
		require.ErrorContains(t, newManager(reloader, sched).Reload(), "invalid config")
		require.Empty(t, sched.exprs)
	})

	t.Run("scheduler rejects expression", func(t *testing.T) {
		reloader := &fakeReloader{changes: []config.ConfigChange{
			{Type: config.ScheduleChanged, OldValue: "@every 300s", NewValue: "bogus"},
		}}
		sched := &fakeScheduler{err: errors.New("parse error")}
		err := newManager(reloader, sched).Reload()
		require.ErrorContains(t, err, "unable to reset collection schedule")
		require.ErrorContains(t, err, "parse error")
	})

	t.Run("wrong value type", func(t *testing.T) {
		m := newManager(&fakeReloader{}, nil)
		err := m.ProcessConfigChanges([]config.ConfigChange{{Type: config.LogLevelChanged, NewValue: 3}})
		require.ErrorContains(t, err, "invalid log level type")
	})

	t.Run("no scheduler", func(t *testing.T) {
		m := newManager(&fakeReloader{}, nil)
		require.NoError(t, m.ProcessConfigChanges([]config.ConfigChange{{Type: config.ScheduleChanged, NewValue: "@hourly"}}))
	})
}

func TestRun(t *testing.T) {
	reloader := &fakeReloader{}
	m := newManager(reloader, &fakeScheduler{})

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, events) }()

	events <- struct{}{}
	events <- struct{}{}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	require.GreaterOrEqual(t, reloader.calls, 1)
}
