// Package backup watches the backup directory for completed archive
// files and records their completion time in the store. The backup
// itself is produced by an external tool (typically onto removable
// media); this watcher only keeps the destructive-operation gate
// honest.
package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/batchscan/internal/logger"
)

// defaultSettleDelay is how long a file must stay quiet before it
// counts as a finished archive.
const defaultSettleDelay = 2 * time.Second

// Recorder is the slice of the store the watcher needs.
type Recorder interface {
	RecordBackup(ctx context.Context, completedAt time.Time) error
}

// Watcher records a backup whenever an archive in the watched
// directory stops changing.
type Watcher struct {
	dir      string
	recorder Recorder
	settle   time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher over dir.
func NewWatcher(dir string, recorder Recorder) *Watcher {
	return &Watcher{dir: dir, recorder: recorder, settle: defaultSettleDelay}
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	logger.Debug("Watching %s for backup archives", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if isArchive(event.Name) && event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.scheduleRecord(ctx, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Backup watcher: %v", err)
		}
	}
}

// scheduleRecord (re)starts the settle timer for the archive. Repeated
// writes keep pushing the record back until the file goes quiet.
func (w *Watcher) scheduleRecord(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, func() {
		w.record(ctx, path)
	})
}

func (w *Watcher) record(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("Backup archive vanished: %s", path)
		return
	}
	if err := w.recorder.RecordBackup(ctx, info.ModTime().UTC()); err != nil {
		logger.Warn("Failed to record backup: %v", err)
		return
	}
	logger.Info("Recorded backup %s", filepath.Base(path))
}

func isArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}
