package reconcile

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the vault root and triggers a full
// reconciliation pass after file change events, until ctx is cancelled.
// Event bursts are coalesced by a single debounce timer — each new event
// resets it, so the watcher never queues passes unboundedly. cb (if non-nil)
// receives the stats of each completed pass.
//
// New directories created at runtime are automatically added to the watch
// list.
func Watch(ctx context.Context, rec *Reconciler, root string, debounce time.Duration, logger *slog.Logger, cb func(Stats)) error {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			stats, runErr := rec.Run(ctx)
			if runErr != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", runErr.Error()))
				continue
			}
			logger.Info("watcher: reconciled",
				slog.Int("scanned", stats.Scanned),
				slog.Int("added", stats.Added),
				slog.Int("updated", stats.Updated),
				slog.Int("deleted", stats.Deleted))
			if cb != nil {
				cb(stats)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// New directories are added to the watch list; their contents
			// surface through the reconciliation pass itself.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("watcher: change detected",
					slog.String("path", ev.Name),
					slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
