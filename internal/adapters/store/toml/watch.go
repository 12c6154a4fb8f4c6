package toml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bnema/numsel/internal/domain"
)

// Changes watches the directory holding the numbers file. Writes land via
// rename, so the directory is watched rather than the file itself.
func (s *Store) Changes(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(s.numbersPath)
	if err := os.MkdirAll(dir, numbersDirMode); err != nil {
		return nil, fmt.Errorf("create numbers directory: %w: %w", domain.ErrStoreUnavailable, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.numbersPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case <-watcher.Errors:
				// Closing the feed lets the consumer reconnect and re-read.
				return
			}
		}
	}()

	return changes, nil
}
