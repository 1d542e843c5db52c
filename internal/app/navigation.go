package app

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// maxHistorySize bounds the navigation history; the oldest entries go first.
const maxHistorySize = 100

// DirContext holds the directory the user is looking at. Operations read it
// once when they are constructed, never while running.
type DirContext struct {
	mu   sync.RWMutex
	path string
}

// NewDirContext starts at path; empty means the home directory on first Get.
func NewDirContext(path string) *DirContext {
	if path != "" {
		path = filepath.Clean(path)
	}
	return &DirContext{path: path}
}

// Get returns the current directory, initializing it to the home directory.
func (c *DirContext) Get() string {
	c.mu.RLock()
	p := c.path
	c.mu.RUnlock()
	if p != "" {
		return p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		c.path = homeDir()
	}
	return c.path
}

// Set replaces the current directory. It does not touch history.
func (c *DirContext) Set(path string) {
	c.mu.Lock()
	c.path = filepath.Clean(path)
	c.mu.Unlock()
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	wd, _ := os.Getwd()
	return wd
}

// History is the back/forward list of visited directories.
type History struct {
	mu      sync.Mutex
	entries []string
	index   int
}

func NewHistory() *History {
	return &History{
		entries: make([]string, 0, maxHistorySize),
		index:   -1,
	}
}

// Add appends path and moves the cursor onto it. Entries after the cursor
// are dropped first, as in any browser.
func (h *History) Add(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Truncate forward history if we're not at the end
	if h.index >= 0 && h.index < len(h.entries)-1 {
		h.entries = h.entries[:h.index+1]
	}
	h.entries = append(h.entries, path)
	h.index = len(h.entries) - 1

	// Limit history size to prevent unbounded memory growth
	if len(h.entries) > maxHistorySize {
		excess := len(h.entries) - maxHistorySize
		h.entries = h.entries[excess:]
		h.index -= excess
		if h.index < 0 {
			h.index = 0
		}
	}
}

// Back moves the cursor one entry back.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index <= 0 {
		return "", false
	}
	h.index--
	return h.entries[h.index], true
}

// Forward moves the cursor one entry forward.
func (h *History) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index >= len(h.entries)-1 {
		return "", false
	}
	h.index++
	return h.entries[h.index], true
}

// Current returns the entry under the cursor.
func (h *History) Current() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index < 0 {
		return "", false
	}
	return h.entries[h.index], true
}

func (h *History) CanBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index > 0
}

func (h *History) CanForward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index < len(h.entries)-1
}

// Entries returns a copy of the history and the cursor position.
func (h *History) Entries() ([]string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...), h.index
}

// expandPath expands and normalizes a path string against base, handling:
// - ~ for home directory
// - Relative paths (../, ./)
// - Absolute paths
// - Windows drive letters (C:, D:, etc.)
func expandPath(input, base string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return base
	}

	if strings.HasPrefix(input, "~") {
		if input == "~" {
			return homeDir()
		}
		if strings.HasPrefix(input, "~/") || strings.HasPrefix(input, "~\\") {
			return filepath.Clean(filepath.Join(homeDir(), input[2:]))
		}
	}

	if isAbsolutePath(input) {
		return filepath.Clean(input)
	}
	return filepath.Clean(filepath.Join(base, input))
}

// isAbsolutePath checks if a path is absolute, handling both Unix and Windows paths
func isAbsolutePath(path string) bool {
	if len(path) == 0 {
		return false
	}

	// Unix absolute path
	if path[0] == '/' {
		return true
	}

	if runtime.GOOS == "windows" {
		// Drive letter paths: C:\, D:\, C:/, etc.
		if len(path) >= 2 && isLetter(path[0]) && path[1] == ':' {
			return true
		}
		// UNC paths: \\server\share
		if len(path) >= 2 && path[0] == '\\' && path[1] == '\\' {
			return true
		}
	}

	return false
}

// isLetter checks if a byte is an ASCII letter
func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
