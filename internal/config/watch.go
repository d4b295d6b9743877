package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the settings file whenever it changes and hands each valid
// result to onChange. Invalid edits are logged and ignored so the previous
// settings stay in force. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file because editors
// usually replace files by rename.
func Watch(ctx context.Context, path string, onChange func(*Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%s: %w", ErrWatch, err)
	}
	defer func() { _ = w.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%s: %w", ErrWatch, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("%s: %w", ErrWatch, err)
	}

	log := slog.With(
		slog.String(LogKeyComponent, CompSettings),
		slog.String(LogKeyPath, abs),
	)

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case <-fire:
			fire = nil
			s, err := LoadSettings(abs)
			if err != nil {
				log.Warn(ErrSettingsInvalid, LogKeyError, err)
				continue
			}
			log.Info(MsgSettingsReld)
			onChange(s)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(WatchDebounce)
			} else {
				debounce.Reset(WatchDebounce)
			}
			fire = debounce.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn(ErrWatch, LogKeyError, err)
		}
	}
}
