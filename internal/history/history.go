// Package history keeps a flat, append-only record of chaos runs on disk.
// It is an audit trail, not a datastore: one JSON object per line, flock
// around writers so concurrent runs do not interleave.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is one chaos run.
type Record struct {
	RunID     string    `json:"runId"`
	Scenario  string    `json:"scenario"`
	Success   bool      `json:"success"`
	Simulated bool      `json:"simulated"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the on-disk run history.
type Log struct {
	path     string
	lockPath string
}

// Open prepares the history log under dir, creating the directory if needed.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &Log{
		path:     filepath.Join(dir, "runs.jsonl"),
		lockPath: filepath.Join(dir, ".runs.lock"),
	}, nil
}

// Append writes one record under the file lock.
func (l *Log) Append(rec Record) error {
	fd, err := acquireFlock(l.lockPath)
	if err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer releaseFlock(fd)

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first. A missing file is an empty
// history, not an error. Lines that fail to parse are skipped.
func (l *Log) Recent(n int) ([]Record, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var all []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		all = append(all, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	if n > len(all) {
		n = len(all)
	}
	out := make([]Record, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
