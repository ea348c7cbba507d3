package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"finstack/pkg/logging"
)

// DefaultDebounce coalesces bursts of change events (editors write several
// times per save) into a single restart trigger.
const DefaultDebounce = 300 * time.Millisecond

// Config configures a source watcher
type Config struct {
	Paths    []string      // directory roots watched recursively
	Exts     []string      // file extensions that trigger, e.g. ".py"
	Debounce time.Duration // 0 means DefaultDebounce
}

// Watcher watches directory trees and reports debounced source changes
type Watcher struct {
	config  Config
	fsw     *fsnotify.Watcher
	changes chan string
	logger  *logging.Logger
}

// New creates a watcher over the configured roots
func New(config Config, logger *logging.Logger) (*Watcher, error) {
	if len(config.Paths) == 0 {
		config.Paths = []string{"."}
	}
	if config.Debounce == 0 {
		config.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		config:  config,
		fsw:     fsw,
		changes: make(chan string, 1),
		logger:  logger.WithField("component", "watcher"),
	}

	for _, root := range config.Paths {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// addRecursive registers a directory tree with the underlying watcher.
// fsnotify is not recursive on its own.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Changes returns the channel of debounced change notifications. Each value
// is the path of the last file that changed before the debounce fired.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Run processes raw filesystem events until the context is cancelled
func (w *Watcher) Run(ctx context.Context) {
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		last    string
	)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			// New directories join the watch so files created under
			// them keep triggering reloads.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addRecursive(event.Name)
					continue
				}
			}

			if !Matches(event.Name, w.config.Exts) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			last = event.Name
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.config.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", map[string]interface{}{"error": err.Error()})

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.logger.Debug("source change", map[string]interface{}{"path": last})
			select {
			case w.changes <- last:
			default: // a pending notification already covers this change
			}
		}
	}
}

// Close releases the underlying watcher
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Matches reports whether a path has one of the watched extensions.
// An empty extension list matches everything.
func Matches(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, want := range exts {
		if ext == want {
			return true
		}
	}
	return false
}
