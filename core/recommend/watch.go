package recommend

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/patrickhamzaokello/ColabFavourites/logger"
)

// WatchDataset triggers a rebuild whenever the dataset file at path changes.
// The parent directory is watched so editors that replace the file by rename
// are seen too. Bursts of events within quiet are collapsed into one rebuild.
// The watcher stops with the engine.
func (e *Engine) WatchDataset(path string, quiet time.Duration) error {
	if e.State() == StateStopped {
		return ErrStopped
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve dataset path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create dataset watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dataset directory: %w", err)
	}
	if quiet <= 0 {
		quiet = 500 * time.Millisecond
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer watcher.Close()
		e.watchLoop(watcher, abs, quiet)
	}()
	logger.Info("Watching dataset file", logger.String("path", abs))
	return nil
}

func (e *Engine) watchLoop(watcher *fsnotify.Watcher, path string, quiet time.Duration) {
	var pending time.Time
	ticker := time.NewTicker(quiet / 2)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Dataset watcher error", logger.ErrorField(err))

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < quiet {
				continue
			}
			pending = time.Time{}
			logger.Info("Dataset file changed, rebuilding", logger.String("path", path))
			e.trigger("dataset_changed")
		}
	}
}
