// Package workqueue implements the shared work-queue file backing
// first-move-queue mode (spec.md §4.3): a fixed 8-byte layout (next-worker
// counter, total worker count) guarded by an advisory exclusive lock over
// the whole file.
package workqueue

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const fileSize = 8 // counter (4 bytes) + total (4 bytes)

// Queue is a handle to the shared work-queue file. The coordinator creates
// and destroys it; workers only Acquire/ReadTotal.
type Queue struct {
	path string

	// cached is the worker index cached on first successful Acquire, per
	// the "first-call caching is part of the worker's contract" rule.
	cached    bool
	cachedIdx int
}

// Open returns a handle to the queue file at path, without creating it.
func Open(path string) *Queue {
	return &Queue{path: path}
}

// Initialise creates the queue file, writing counter=0 and total=w. Only
// the coordinator calls this.
func Initialise(path string, w int) (*Queue, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("workqueue: create %s: %w", path, err)
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return nil, fmt.Errorf("workqueue: lock %s: %w", path, err)
	}
	defer unlock(f)

	var buf [fileSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], 0)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(w))
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return nil, fmt.Errorf("workqueue: init write %s: %w", path, err)
	}
	return &Queue{path: path}, nil
}

// Destroy unlinks the queue file. Called by the coordinator after reap.
func Destroy(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workqueue: destroy %s: %w", path, err)
	}
	return nil
}

// AcquireWorkerIndex atomically reads the next-worker counter, increments
// it, and returns the old value. Subsequent calls on the same Queue return
// the cached value without touching the file again.
func (q *Queue) AcquireWorkerIndex() (int, error) {
	if q.cached {
		return q.cachedIdx, nil
	}

	f, err := os.OpenFile(q.path, os.O_RDWR, 0o600)
	if err != nil {
		return 0, fmt.Errorf("workqueue: open %s: %w", q.path, err)
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return 0, fmt.Errorf("workqueue: lock %s: %w", q.path, err)
	}
	defer unlock(f)

	var buf [fileSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, fmt.Errorf("workqueue: read %s: %w", q.path, err)
	}
	counter := binary.LittleEndian.Uint32(buf[0:4])

	binary.LittleEndian.PutUint32(buf[0:4], counter+1)
	if _, err := f.WriteAt(buf[0:4], 0); err != nil {
		return 0, fmt.Errorf("workqueue: write %s: %w", q.path, err)
	}

	q.cached = true
	q.cachedIdx = int(counter)
	return int(counter), nil
}

// ReadTotal reads the total worker count W.
func (q *Queue) ReadTotal() (int, error) {
	f, err := os.OpenFile(q.path, os.O_RDONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("workqueue: open %s: %w", q.path, err)
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return 0, fmt.Errorf("workqueue: lock %s: %w", q.path, err)
	}
	defer unlock(f)

	var buf [fileSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, fmt.Errorf("workqueue: read %s: %w", q.path, err)
	}
	return int(binary.LittleEndian.Uint32(buf[4:8])), nil
}

func lockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
