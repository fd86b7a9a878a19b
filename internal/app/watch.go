package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// watchConfig calls reload after changes to the config file or to TOML fragments in a config dir.
// Params: context, file or directory path, debounce delay, logger, and reload callback.
// Returns: watcher setup error; nil once ctx is done.
func watchConfig(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, reload func()) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config source: %w", err)
	}

	// Editors replace files by rename, so the parent dir is watched for file sources.
	dir, match := filepath.Dir(path), filepath.Base(path)
	if info.IsDir() {
		dir, match = path, ""
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	logger.Debug("config watcher started", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&reloadOps == 0 || !relevantConfigFile(event.Name, match) {
				continue
			}
			logger.Debug("config change detected", "file", event.Name, "op", event.Op.String())
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watch error", "error", err.Error())
		}
	}
}

func relevantConfigFile(name, match string) bool {
	base := filepath.Base(name)
	if match != "" {
		return base == match
	}
	return strings.EqualFold(filepath.Ext(base), ".toml")
}
