package history

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, scenario string) Record {
	return Record{
		RunID:     id,
		Scenario:  scenario,
		Success:   true,
		Message:   "Deleted pod default/nginx-a",
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}

func TestAppendAndRecent(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, l.Append(rec("run-1", "pod-delete")))
	require.NoError(t, l.Append(rec("run-2", "cpu-spike")))
	require.NoError(t, l.Append(rec("run-3", "disk-pressure")))

	got, err := l.Recent(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// newest first
	assert.Equal(t, "run-3", got[0].RunID)
	assert.Equal(t, "run-2", got[1].RunID)
}

func TestRecentEmptyHistory(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	got, err := l.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecentMoreThanAvailable(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, l.Append(rec("run-1", "pod-delete")))

	got, err := l.Recent(50)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecentSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, l.Append(rec("run-1", "pod-delete")))

	f, err := os.OpenFile(filepath.Join(dir, "runs.jsonl"), os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, l.Append(rec("run-2", "cpu-spike")))

	got, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].RunID)
	assert.Equal(t, "run-1", got[1].RunID)
}

func TestConcurrentAppends(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(rec("run", "pod-delete")))
		}()
	}
	wg.Wait()

	got, err := l.Recent(100)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}
