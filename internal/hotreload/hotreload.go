package hotreload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hostward/device-agent/internal/logger"
	"github.com/hostward/device-agent/pkg/config"
	"github.com/rs/zerolog"
)

// ScheduleResetter is the part of the scheduler hot reload drives.
type ScheduleResetter interface {
	ResetSchedule(expr string) error
}

// Reloader rereads the configuration and reports what changed.
type Reloader interface {
	ReloadConfig() ([]config.ConfigChange, []string, error)
}

type HotReloadManager struct {
	cm              Reloader
	log             *zerolog.Logger
	scheduler       ScheduleResetter
	changeCallbacks map[config.ConfigChangeType][]config.ConfigChangeCallback
	callbackMu      sync.RWMutex
}

func NewHotReloadManager(cm Reloader, log *zerolog.Logger, scheduler ScheduleResetter) *HotReloadManager {
	manager := &HotReloadManager{
		cm:              cm,
		log:             log,
		scheduler:       scheduler,
		changeCallbacks: make(map[config.ConfigChangeType][]config.ConfigChangeCallback),
	}

	manager.registerCallbacks()

	return manager
}

func (hrm *HotReloadManager) registerCallbacks() {
	hrm.registerChangeCallback(config.LogLevelChanged, hrm.handleLogLevelChange)
	hrm.registerChangeCallback(config.ScheduleChanged, hrm.handleScheduleChange)
	hrm.registerChangeCallback(config.RestartRequired, hrm.handleRestartRequired)
}

func (hrm *HotReloadManager) notifyChangeCallbacks(change config.ConfigChange) []error {
	hrm.callbackMu.RLock()
	defer hrm.callbackMu.RUnlock()

	callbacks, exists := hrm.changeCallbacks[change.Type]
	if !exists {
		return nil
	}

	var errs []error
	for _, callback := range callbacks {
		if err := callback(change); err != nil {
			errs = append(errs, err)
		}
		hrm.log.Info().Str("change_type", string(change.Type)).Msg("Configuration change processed")
	}

	return errs
}

func (hrm *HotReloadManager) registerChangeCallback(changeType config.ConfigChangeType, callback config.ConfigChangeCallback) {
	hrm.callbackMu.Lock()
	defer hrm.callbackMu.Unlock()

	hrm.changeCallbacks[changeType] = append(hrm.changeCallbacks[changeType], callback)
}

func (hrm *HotReloadManager) handleScheduleChange(change config.ConfigChange) error {
	hrm.log.Info().
		Interface("old_value", change.OldValue).
		Interface("new_value", change.NewValue).
		Msg("Handling schedule change")

	if hrm.scheduler == nil {
		return nil
	}

	expr, ok := change.NewValue.(string)
	if !ok {
		return fmt.Errorf("invalid schedule type: %T", change.NewValue)
	}
	if err := hrm.scheduler.ResetSchedule(expr); err != nil {
		return fmt.Errorf("unable to reset collection schedule: %w", err)
	}
	return nil
}

func (hrm *HotReloadManager) handleLogLevelChange(change config.ConfigChange) error {
	hrm.log.Info().
		Interface("old_value", change.OldValue).
		Interface("new_value", change.NewValue).
		Msg("Handling log level change")

	newLogLevel, ok := change.NewValue.(string)
	if !ok {
		return fmt.Errorf("invalid log level type: %T", change.NewValue)
	}

	level := logger.SetLevel(newLogLevel)
	hrm.log.Info().Str("new_level", level.String()).Msg("Log level updated successfully")

	return nil
}

func (hrm *HotReloadManager) handleRestartRequired(config.ConfigChange) error {
	hrm.log.Warn().Msg("Some configuration changes only take effect after a restart")
	return nil
}

func (hrm *HotReloadManager) ProcessConfigChanges(changes []config.ConfigChange) error {
	hrm.log.Info().Int("change_count", len(changes)).Msg("Processing configuration changes")

	var errs []error
	for _, change := range changes {
		hrm.log.Debug().
			Str("change_type", string(change.Type)).
			Interface("old_value", change.OldValue).
			Interface("new_value", change.NewValue).
			Msg("Processing configuration change")

		errs = append(errs, hrm.notifyChangeCallbacks(change)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors occurred while processing configuration changes: %w", errors.Join(errs...))
	}

	hrm.log.Info().Msg("All configuration changes processed successfully")

	return nil
}

// Reload rereads the config and applies the changes. An invalid file is
// logged and the running configuration stays in effect.
func (hrm *HotReloadManager) Reload() error {
	changes, warnings, err := hrm.cm.ReloadConfig()
	logger.HandleWarnings(hrm.log, warnings)
	if err != nil {
		hrm.log.Error().Err(err).Msg("Config reload failed, keeping the running configuration")
		return err
	}
	if len(changes) == 0 {
		hrm.log.Debug().Msg("Config file changed without effective changes")
		return nil
	}
	return hrm.ProcessConfigChanges(changes)
}

// Run reloads on every signal from events until ctx is done.
func (hrm *HotReloadManager) Run(ctx context.Context, events <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-events:
			if err := hrm.Reload(); err != nil {
				hrm.log.Warn().Err(err).Msg("Configuration changes were not fully applied")
			}
		}
	}
}
