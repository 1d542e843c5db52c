package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/justyntemme/razorops/internal/debug"
)

// Config holds all user-configurable settings loaded from ops.json
type Config struct {
	Operations OperationsConfig `json:"operations"`
	Trash      TrashConfig      `json:"trash"`
	Archive    ArchiveConfig    `json:"archive"`
	Journal    JournalConfig    `json:"journal"`
	Logging    LoggingConfig    `json:"logging"`
	Watcher    WatcherConfig    `json:"watcher"`
}

// OperationsConfig holds file operation engine settings
type OperationsConfig struct {
	ChunkSize      int    `json:"chunkSize"`      // Copy buffer size in bytes
	ErrorPolicy    string `json:"errorPolicy"`    // "abort" | "continue"
	CopyLabel      string `json:"copyLabel"`      // Word used for "name (copy 1).ext"
	MaxWorkers     int    `json:"maxWorkers"`     // 0 = one goroutine per operation, unbounded
	CheckFreeSpace bool   `json:"checkFreeSpace"` // Refuse copies that don't fit
}

// TrashConfig holds the trash destination
type TrashConfig struct {
	Path string `json:"path"` // Root holding files/ and info/
}

// ArchiveConfig holds compress/extract settings
type ArchiveConfig struct {
	DeleteAfterExtract bool   `json:"deleteAfterExtract"`
	DefaultKind        string `json:"defaultKind"` // "zip" | "tar" | "tar.gz" | "tar.zst"
}

// JournalConfig holds the operation journal settings
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `json:"format"` // "json" | "console"
	Output string `json:"output"` // "stderr", "stdout" or a file path
}

// WatcherConfig holds directory watcher settings
type WatcherConfig struct {
	DebounceMs int `json:"debounceMs"`
}

// Debounce returns the watcher debounce interval.
func (w WatcherConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a configuration manager for path. An empty path means
// ConfigPath().
func NewManager(path string) *Manager {
	if path == "" {
		path = ConfigPath()
	}
	return &Manager{
		config: DefaultConfig(),
		path:   path,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Operations: OperationsConfig{
			ChunkSize:      256 * 1024,
			ErrorPolicy:    "abort",
			CopyLabel:      "copy",
			MaxWorkers:     0,
			CheckFreeSpace: true,
		},
		Trash: TrashConfig{
			Path: DefaultTrashPath(),
		},
		Archive: ArchiveConfig{
			DeleteAfterExtract: false,
			DefaultKind:        "zip",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(configDir(), "journal.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Watcher: WatcherConfig{
			DebounceMs: 200,
		},
	}
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "razor")
}

// ConfigPath returns the config file path: ~/.config/razor/ops.json
// This is consistent across all platforms (Windows, macOS, Linux)
func ConfigPath() string {
	return filepath.Join(configDir(), "ops.json")
}

// DefaultTrashPath follows the freedesktop.org location:
// $XDG_DATA_HOME/Trash, falling back to ~/.local/share/Trash
func DefaultTrashPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "Trash")
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Load reads the configuration from the config file
// If the file doesn't exist, creates it with defaults
// If parsing fails, stores the error and returns defaults
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parseErr = nil

	// Ensure config directory exists
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		debug.Log(debug.APP, "Config: failed to create directory %s: %v", dir, err)
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		debug.Log(debug.APP, "Config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			debug.Log(debug.APP, "Config: failed to save default config: %v", saveErr)
			return saveErr
		}
		return nil
	}
	if err != nil {
		debug.Log(debug.APP, "Config: failed to read %s: %v", m.path, err)
		return err
	}

	// Missing keys keep their defaults
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		// Store error for display, use defaults
		debug.Log(debug.APP, "Config: JSON parse error: %v", err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil // Don't return error - we're using defaults
	}

	debug.Log(debug.APP, "Config: loaded from %s", m.path)
	m.config = cfg
	return nil
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// SetErrorPolicy updates the operations error policy
func (m *Manager) SetErrorPolicy(policy string) error {
	m.mu.Lock()
	m.config.Operations.ErrorPolicy = policy
	m.mu.Unlock()
	return m.Save()
}

// SetTrashPath updates the trash root
func (m *Manager) SetTrashPath(path string) error {
	m.mu.Lock()
	m.config.Trash.Path = path
	m.mu.Unlock()
	return m.Save()
}

// SetDeleteAfterExtract updates the post-extraction delete flag
func (m *Manager) SetDeleteAfterExtract(enabled bool) error {
	m.mu.Lock()
	m.config.Archive.DeleteAfterExtract = enabled
	m.mu.Unlock()
	return m.Save()
}

// GenerateConfig backs up the existing config at path and writes a fresh default config
// Returns the backup path if a backup was created, or empty string if no existing config
func GenerateConfig(path string) (backupPath string, err error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		timestamp := time.Now().Format("20060102-150405")
		backupPath = filepath.Join(filepath.Dir(path), "ops.backup."+timestamp+".json")

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return backupPath, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return backupPath, fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return backupPath, fmt.Errorf("failed to write config: %w", err)
	}

	return backupPath, nil
}
