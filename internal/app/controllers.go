package app

import (
	"sync"
	"sync/atomic"

	"github.com/justyntemme/razorops/internal/archive"
	"github.com/justyntemme/razorops/internal/fileops"
	"github.com/justyntemme/razorops/internal/fs"
	"github.com/justyntemme/razorops/internal/trash"
)

// SharedDeps holds references to shared dependencies that multiple controllers need.
// All controllers receive a pointer to this struct rather than copying fields.
type SharedDeps struct {
	Dir     *DirContext
	FS      *fs.System
	Engine  *fileops.Engine
	Bin     *trash.Bin
	Archive *archive.Dispatcher
	Watcher *DirectoryWatcher // nil when watching is unavailable

	// Refresh asks the foreground loop to reload the current directory.
	Refresh func()
}

// NavigationController handles path navigation, history, and directory requests.
type NavigationController struct {
	deps    *SharedDeps
	history *History
	gen     atomic.Int64

	watchMu sync.Mutex
	watched string
}

// NewNavigationController creates a navigation controller with the given dependencies.
func NewNavigationController(deps *SharedDeps) *NavigationController {
	return &NavigationController{
		deps:    deps,
		history: NewHistory(),
	}
}

// History returns the controller's navigation history.
func (n *NavigationController) History() *History { return n.history }

// ClipOp is what a paste does with the clipboard contents.
type ClipOp int

const (
	ClipCopy ClipOp = iota
	ClipCut
)

func (c ClipOp) String() string {
	if c == ClipCut {
		return "cut"
	}
	return "copy"
}

// Clipboard is the set of paths waiting to be pasted.
type Clipboard struct {
	Op    ClipOp
	Paths []string
}

// FileOpsController turns user actions into engine operations. Every action
// captures the current directory once, when it is invoked.
type FileOpsController struct {
	deps *SharedDeps

	mu        sync.Mutex
	clipboard *Clipboard
}

// NewFileOpsController creates a file operations controller with the given dependencies.
func NewFileOpsController(deps *SharedDeps) *FileOpsController {
	return &FileOpsController{deps: deps}
}
