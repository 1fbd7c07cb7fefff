package sqlcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for after the last change.
const DefaultDebounce = 300 * time.Millisecond

// Watch builds once, then rebuilds whenever a tracked file is written,
// created, renamed or removed, until ctx is done. Bursts of events within
// debounce collapse into one build. Every build result is passed to onBuild.
// The directories holding tracked files are watched, so a file replaced on
// save is still seen.
func (e *Engine) Watch(ctx context.Context, opts BuildOptions, debounce time.Duration, onBuild func(*Report, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	tracked := make(map[string]bool, len(e.paths))
	dirs := make(map[string]bool)
	for _, p := range e.paths {
		tracked[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			e.logger.Warn("watch.skip_dir", "dir", dir, "error", err)
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	onBuild(e.Build(ctx, opts))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !tracked[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			e.logger.Debug("watch.event", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watch.error", "error", err)
		case <-fire:
			fire = nil
			onBuild(e.Build(ctx, opts))
		}
	}
}
