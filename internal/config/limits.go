package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"advisorgate/internal/usage"
)

// LoadLimits reads a YAML tier-limit table. Tiers missing from the file
// keep their built-in default.
//
//	free:    {standard: 2, deep: 0, tools: 8}
//	premium: {standard: 6, deep: 2, tools: 20}
func LoadLimits(path string) (usage.Limits, error) {
	limits := usage.DefaultLimits()
	raw, err := os.ReadFile(path)
	if err != nil {
		return limits, fmt.Errorf("read limits file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&limits); err != nil {
		return limits, fmt.Errorf("parse limits file %s: %w", path, err)
	}
	if err := limits.Validate(); err != nil {
		return limits, err
	}
	return limits, nil
}

// LimitsWatcher serves the active limit table and swaps it when the
// backing file changes. An invalid edit leaves the previous table in place.
type LimitsWatcher struct {
	path    string
	current atomic.Pointer[usage.Limits]
	log     zerolog.Logger
}

// NewLimitsWatcher loads path (or the defaults when path is empty).
func NewLimitsWatcher(path string, log zerolog.Logger) (*LimitsWatcher, error) {
	w := &LimitsWatcher{path: path, log: log.With().Str("component", "limits").Logger()}
	limits := usage.DefaultLimits()
	if path != "" {
		var err error
		if limits, err = LoadLimits(path); err != nil {
			return nil, err
		}
	}
	w.current.Store(&limits)
	return w, nil
}

// Current returns the active table.
func (w *LimitsWatcher) Current() usage.Limits {
	return *w.current.Load()
}

// Reload re-reads the file.
func (w *LimitsWatcher) Reload() error {
	if w.path == "" {
		return nil
	}
	limits, err := LoadLimits(w.path)
	if err != nil {
		return err
	}
	w.current.Store(&limits)
	w.log.Info().Interface("limits", limits).Msg("tier limits reloaded")
	return nil
}

// Watch reloads on file changes until ctx is done. It watches the parent
// directory so atomic-rename saves are picked up.
func (w *LimitsWatcher) Watch(ctx context.Context) error {
	if w.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create limits watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(w.path)
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&fsnotify.Chmod == fsnotify.Chmod {
					continue
				}
				debounce = time.After(200 * time.Millisecond)
			case <-debounce:
				if err := w.Reload(); err != nil {
					w.log.Error().Err(err).Msg("limits reload rejected, keeping previous table")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn().Err(err).Msg("limits watcher error")
			}
		}
	}()
	return nil
}
