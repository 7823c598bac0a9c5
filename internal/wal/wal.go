// Package wal persists raw observation batches before they are parsed,
// so a crashed monitor can replay its inbox and rebuild detector state.
package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// InboxWAL is an append-only, fsync'd log of incoming request bodies.
type InboxWAL struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Entry represents a single WAL entry
type Entry struct {
	Timestamp time.Time
	Body      []byte
}

// NewInboxWAL creates or opens the daily inbox WAL file under dirPath.
func NewInboxWAL(dirPath string) (*InboxWAL, error) {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	walPath := filepath.Join(dirPath, fmt.Sprintf("inbox-%s.wal", time.Now().Format("20060102")))

	file, err := os.OpenFile(walPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	return &InboxWAL{
		file: file,
		path: walPath,
	}, nil
}

// Path returns the file the WAL is currently appending to.
func (w *InboxWAL) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Append writes a request body to the WAL with fsync
func (w *InboxWAL) Append(body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Write timestamp + body length + body
	line := fmt.Sprintf("%s|%d|%s\n", time.Now().Format(time.RFC3339Nano), len(body), body)

	if _, err := w.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write WAL entry: %w", err)
	}

	// Critical: fsync to ensure durability
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}

	return nil
}

// Close flushes and closes the WAL
func (w *InboxWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}

// Replay reads all entries from a WAL file. Truncated or malformed
// lines (a torn final write) are skipped.
func Replay(walPath string) ([]Entry, error) {
	file, err := os.Open(walPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		// Parse: timestamp|length|body
		parts := strings.SplitN(scanner.Text(), "|", 3)
		if len(parts) != 3 {
			continue
		}

		timestamp, err := time.Parse(time.RFC3339Nano, parts[0])
		if err != nil {
			continue
		}
		length, err := strconv.Atoi(parts[1])
		if err != nil || length != len(parts[2]) {
			continue
		}

		entries = append(entries, Entry{
			Timestamp: timestamp,
			Body:      []byte(parts[2]),
		})
	}

	return entries, scanner.Err()
}

// RotateWAL creates a new daily WAL file and returns old file path
func RotateWAL(dirPath string, currentWAL *InboxWAL) (*InboxWAL, string, error) {
	oldPath := currentWAL.Path()

	if err := currentWAL.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close current WAL: %w", err)
	}

	newWAL, err := NewInboxWAL(dirPath)
	if err != nil {
		return nil, "", err
	}

	return newWAL, oldPath, nil
}
