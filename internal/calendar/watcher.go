package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch refreshes whenever the calendar file changes. It watches the parent
// directory so editors that replace the file by rename are picked up.
func (r *Refresher) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("calendar watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("calendar watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != abs {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			slog.Info("calendar file changed", "path", evt.Name, "op", evt.Op.String())
			_ = r.RefreshOnce(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("calendar watcher error", "error", err)
		}
	}
}
