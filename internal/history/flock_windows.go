//go:build windows

package history

import (
	"fmt"
	"os"
	"time"
)

// acquireFlock acquires an exclusive file lock using os.OpenFile on Windows.
// Windows enforces exclusive access via the open handle as a lightweight lock.
// Retries with 100ms interval, 1s total timeout.
func acquireFlock(path string) (int, error) {
	deadline := time.Now().Add(time.Second)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
		if err == nil {
			// Keep the file handle open as the lock
			return int(f.Fd()), nil
		}
		if time.Now().After(deadline) {
			return -1, fmt.Errorf("flock timeout after 1s: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// releaseFlock closes the file handle, releasing the lock on Windows.
func releaseFlock(fd int) {
	_ = os.NewFile(uintptr(fd), "").Close()
}
