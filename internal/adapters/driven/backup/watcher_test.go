package backup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu    sync.Mutex
	times []time.Time
}

func (r *recordingStore) RecordBackup(_ context.Context, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, completedAt)
	return nil
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

func TestIsArchive(t *testing.T) {
	assert.True(t, isArchive("/backups/election.zip"))
	assert.True(t, isArchive("/backups/ELECTION.ZIP"))
	assert.False(t, isArchive("/backups/election.zip.part"))
	assert.False(t, isArchive("/backups/notes.txt"))
}

func TestRecordsSettledArchive(t *testing.T) {
	dir := t.TempDir()
	recorder := &recordingStore{}
	watcher := NewWatcher(dir, recorder)
	watcher.settle = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = watcher.Run(ctx)
	}()

	// Let the watch registration land before writing.
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(dir, "election-backup.zip")
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0600))

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestIgnoresNonArchiveFiles(t *testing.T) {
	dir := t.TempDir()
	recorder := &recordingStore{}
	watcher := NewWatcher(dir, recorder)
	watcher.settle = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = watcher.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, recorder.count())
}
