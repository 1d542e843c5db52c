// Package debug provides a centralized, categorized logging system on top of zap.
// Lifecycle events go through L(); verbose traces go through Log and are
// filtered per category by the RAZOR_DEBUG environment variable.
package debug

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a debug logging category
type Category string

const (
	APP      Category = "APP"      // Orchestration, navigation, refresh
	FS       Category = "FS"       // Directory listing, tree sizing
	OPS      Category = "OPS"      // Copy/cut/move/delete/duplicate tree walks
	CONFLICT Category = "CONFLICT" // Conflict prompts and answers
	ARCHIVE  Category = "ARCHIVE"  // Compression and extraction
	STORE    Category = "STORE"    // Operation journal

	// Verbose, disabled by default
	OPS_ENTRY Category = "OPS_ENTRY" // Every visited entry
	FS_WALK   Category = "FS_WALK"   // Every entry seen while sizing trees
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // stdout, stderr, or file path
}

var (
	enabledCategories = map[Category]bool{
		APP:       true,
		FS:        true,
		OPS:       true,
		CONFLICT:  true,
		ARCHIVE:   true,
		STORE:     true,
		OPS_ENTRY: false,
		FS_WALK:   false,
	}
	categoryMu sync.RWMutex

	loggerMu sync.RWMutex
	logger   = zap.NewNop()
	sugar    = logger.Sugar()
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	// RAZOR_DEBUG=OPS,CONFLICT or RAZOR_DEBUG=all or RAZOR_DEBUG=none
	if env := os.Getenv("RAZOR_DEBUG"); env != "" {
		applyCategorySpec(env)
	}
}

func applyCategorySpec(spec string) {
	categoryMu.Lock()
	defer categoryMu.Unlock()

	spec = strings.ToUpper(strings.TrimSpace(spec))
	switch spec {
	case "ALL":
		for cat := range enabledCategories {
			enabledCategories[cat] = true
		}
	case "NONE":
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
	default:
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
		for _, cat := range strings.Split(spec, ",") {
			if cat = strings.TrimSpace(cat); cat != "" {
				enabledCategories[Category(cat)] = true
			}
		}
	}
}

// Init builds the global logger. An unknown level falls back to info.
func Init(cfg Config) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	level.SetLevel(lvl)
	zc.Level = level
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	sugar = l.Sugar()
	loggerMu.Unlock()
}

// SetLevel changes the global log level at runtime.
func SetLevel(l string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(l)); err == nil {
		level.SetLevel(lvl)
	}
}

// L returns the global structured logger.
func L() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}

// Log logs a debug trace for the specified category
func Log(cat Category, format string, args ...interface{}) {
	if !IsEnabled(cat) {
		return
	}
	loggerMu.RLock()
	s := sugar
	loggerMu.RUnlock()
	s.Debugw(fmt.Sprintf(format, args...), "category", string(cat))
}

// Enable enables a debug category
func Enable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = true
	categoryMu.Unlock()
}

// Disable disables a debug category
func Disable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = false
	categoryMu.Unlock()
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}

// EnableAll enables all debug categories including verbose ones
func EnableAll() {
	categoryMu.Lock()
	for cat := range enabledCategories {
		enabledCategories[cat] = true
	}
	categoryMu.Unlock()
}

// ListEnabled returns the currently enabled categories, sorted.
func ListEnabled() []Category {
	categoryMu.RLock()
	defer categoryMu.RUnlock()

	var enabled []Category
	for cat, on := range enabledCategories {
		if on {
			enabled = append(enabled, cat)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i] < enabled[j] })
	return enabled
}
