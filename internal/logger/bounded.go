package logger

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultMaxBytes is the event-log size cap.
const DefaultMaxBytes = 100 * 1024

var writeFile = os.WriteFile

// BoundedFile is an append-only file that keeps only its last maxBytes
// bytes. After each write that pushes it over the cap, the file is
// rewritten with its tail. The first partial line of the tail is dropped
// so readers always see whole records.
type BoundedFile struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	f        *os.File
	size     int64
	closed   bool
}

// OpenBounded opens (or creates) path for appending.
func OpenBounded(path string, maxBytes int64) (*BoundedFile, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	b := &BoundedFile{path: path, maxBytes: maxBytes, f: f, size: st.Size()}
	if b.size > maxBytes {
		if err := b.truncateLocked(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return b, nil
}

// Path returns the file location.
func (b *BoundedFile) Path() string { return b.path }

func (b *BoundedFile) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, os.ErrClosed
	}
	// a failed truncate leaves no handle; pick the file up again
	if b.f == nil {
		if err := b.reopenLocked(); err != nil {
			return 0, err
		}
	}
	n, err := b.f.Write(p)
	b.size += int64(n)
	if err != nil {
		return n, err
	}
	if b.size > b.maxBytes {
		if err := b.truncateLocked(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (b *BoundedFile) Sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	return b.f.Sync()
}

func (b *BoundedFile) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// Tail returns up to n of the last lines in the file, oldest first.
func (b *BoundedFile) Tail(n int) ([]string, error) {
	b.mu.Lock()
	data, err := os.ReadFile(b.path)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return lastLines(data, n), nil
}

// truncateLocked keeps the last maxBytes of the file. Callers hold b.mu.
func (b *BoundedFile) truncateLocked() error {
	src, err := os.Open(b.path)
	if err != nil {
		return err
	}
	if _, err := src.Seek(-b.maxBytes, io.SeekEnd); err != nil {
		_ = src.Close()
		return err
	}
	tail, err := io.ReadAll(src)
	_ = src.Close()
	if err != nil {
		return err
	}
	if i := bytes.IndexByte(tail, '\n'); i >= 0 && i+1 < len(tail) {
		tail = tail[i+1:]
	}

	err = b.f.Close()
	b.f = nil
	if err != nil {
		return err
	}
	if err := writeFile(b.path, tail, 0o644); err != nil {
		return err
	}
	return b.reopenLocked()
}

// reopenLocked opens the file for appending and resyncs the size.
// Callers hold b.mu.
func (b *BoundedFile) reopenLocked() error {
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	b.f = f
	b.size = st.Size()
	return nil
}

func lastLines(data []byte, n int) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		lines = append(lines, sc.Text())
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
