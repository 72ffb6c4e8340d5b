package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of events from editors that write in steps.
const watchDebounce = 100 * time.Millisecond

// Watch invalidates cached entries as library files change and refreshes
// the cache after each burst of events. onChange, when set, is called after
// every refresh. Watch blocks until ctx is cancelled.
func (l *Library) Watch(ctx context.Context, onChange func(error)) error {
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := l.watchDir(watcher, l.dir); err != nil {
		return fmt.Errorf("failed to watch library dir: %w", err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = l.watchDir(watcher, event.Name)
					continue
				}
			}
			if filepath.Ext(event.Name) != FileExt {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			l.Invalidate(event.Name)

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				err := l.Refresh()
				if err != nil {
					l.logger.Warn("library refresh failed", "error", err)
				} else {
					l.logger.Debug("library changed", "file", filepath.Base(event.Name))
				}
				if onChange != nil {
					onChange(err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("watcher error", "error", err)
		}
	}
}

func (l *Library) watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && len(info.Name()) > 0 && info.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
