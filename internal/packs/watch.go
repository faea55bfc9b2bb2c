package packs

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change to a
// bundle before syncing it.
const DefaultDebounce = 500 * time.Millisecond

// SyncFunc receives the outcome of every sync Watch triggers.
type SyncFunc func(name string, synced bool, err error)

// Watch syncs bundles in the packs directory as their files change, until
// ctx is done. Changes are debounced and grouped by pack name.
func (m *Manager) Watch(ctx context.Context, debounce time.Duration, onSync SyncFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if err := ensureDir(m.packsDir); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(m.packsDir); err != nil {
		return fmt.Errorf("watching directory %s: %w", m.packsDir, err)
	}
	bundles, _ := Discover(m.packsDir)
	for _, b := range bundles {
		if err := fsw.Add(b.Dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", b.Dir, err)
		}
	}

	var timer *time.Timer
	pending := map[string]bool{}
	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			name := m.packOf(event.Name)
			if name == "" {
				continue
			}
			// New bundle directories need their own watch.
			if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == filepath.Clean(m.packsDir) {
				_ = fsw.Add(event.Name)
			}
			pending[name] = true
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}

		case <-timerC():
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			pending = map[string]bool{}
			for _, name := range names {
				synced, err := m.Sync(ctx, name)
				if err != nil {
					m.log.Warn().Err(err).Str("pack", name).Msg("watch sync failed")
				}
				if onSync != nil {
					onSync(name, synced, err)
				}
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			m.log.Warn().Err(err).Msg("bundle watcher error")
		}
	}
}

// packOf maps a path under the packs directory to the pack it belongs to.
// Hidden entries, including in-flight install copies, map to "".
func (m *Manager) packOf(path string) string {
	rel, err := filepath.Rel(m.packsDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if strings.HasPrefix(first, ".") {
		return ""
	}
	return first
}
