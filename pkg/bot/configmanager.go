// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ConfigManager owns the live configuration snapshot. The dispatch path
// calls Current once per incoming message and works against that one
// snapshot; Watch swaps in a new snapshot when the file changes and the
// new content validates. A failed reload keeps the previous snapshot.
type ConfigManager struct {
	path string
	cur  atomic.Pointer[Config]
	log  zerolog.Logger
}

// NewConfigManager loads the config file at path. The returned manager
// is ready to use; Watch is optional.
func NewConfigManager(path string, log zerolog.Logger) (*ConfigManager, error) {
	m := &ConfigManager{
		path: path,
		log:  log.With().Str("component", "config").Logger(),
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	m.cur.Store(cfg)
	return m, nil
}

// Current returns the active config snapshot. Never nil.
func (m *ConfigManager) Current() *Config {
	return m.cur.Load()
}

// Reload re-reads the config file and swaps the snapshot if it
// validates. On error the previous snapshot stays active.
func (m *ConfigManager) Reload() error {
	cfg, err := LoadConfig(m.path)
	if err != nil {
		return err
	}
	m.cur.Store(cfg)
	m.log.Info().Str("path", m.path).Msg("Config reloaded")
	return nil
}

// Watch blocks until ctx is done, reloading the config whenever the
// file is written. Editors replace files rather than writing in place,
// so the parent directory is watched and events are filtered by name.
func (m *ConfigManager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	// Debounce: editors fire several events per save.
	var timer *time.Timer
	pending := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			select {
			case pending <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pending:
			if err := m.Reload(); err != nil {
				m.log.Error().Err(err).Msg("Config reload failed, keeping previous config")
			}
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}
