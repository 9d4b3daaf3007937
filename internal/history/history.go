// Package history keeps a bounded per-login transcript of chat lines on disk.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultLimit is how many recent lines a client replays after login.
const DefaultLimit = 100

// File is an append-only transcript that remembers its last Limit lines.
// The file is compacted once it holds twice as many lines as needed.
type File struct {
	mu     sync.Mutex
	path   string
	limit  int
	lines  []string
	onDisk int
	f      *os.File
}

// PathFor returns the transcript location of login inside dir.
func PathFor(dir, login string) string {
	return filepath.Join(dir, "history_"+sanitize(login)+".txt")
}

// Open loads (or creates) the transcript of login in dir.
func Open(dir, login string, limit int) (*File, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	h := &File{path: PathFor(dir, login), limit: limit}
	if err := h.load(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	h.f = f
	return h, nil
}

func (h *File) load() error {
	f, err := os.Open(h.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		h.onDisk++
		h.lines = append(h.lines, scanner.Text())
		if len(h.lines) > h.limit {
			h.lines = h.lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	return nil
}

// Last returns the remembered lines, oldest first.
func (h *File) Last() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...)
}

// Append records one line.
func (h *File) Append(line string) error {
	line = strings.ReplaceAll(line, "\n", " ")

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	h.onDisk++
	h.lines = append(h.lines, line)
	if len(h.lines) > h.limit {
		h.lines = h.lines[1:]
	}

	if h.onDisk >= 2*h.limit {
		return h.compactLocked()
	}
	return nil
}

// compactLocked rewrites the file with only the remembered lines.
func (h *File) compactLocked() error {
	tmp := h.path + ".tmp"
	data := strings.Join(h.lines, "\n") + "\n"
	if err := os.WriteFile(tmp, []byte(data), 0o600); err != nil {
		return fmt.Errorf("compact history: %w", err)
	}
	if err := h.f.Close(); err != nil {
		return fmt.Errorf("compact history: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("compact history: %w", err)
	}

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("reopen history: %w", err)
	}
	h.f = f
	h.onDisk = len(h.lines)
	return nil
}

// Close releases the file.
func (h *File) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.f.Close()
}

func sanitize(login string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, login)
}
