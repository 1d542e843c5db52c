package app

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/justyntemme/razorops/internal/debug"
	"github.com/justyntemme/razorops/internal/fs"
)

// Navigate makes path the current directory, records it in history and
// requests its listing.
func (n *NavigationController) Navigate(path string) string {
	path = n.ExpandPath(path)
	n.deps.Dir.Set(path)
	n.history.Add(path)
	n.RequestDir(path)
	return path
}

// GoBack moves to the previous history entry and reloads it. It does nothing
// at the start of history.
func (n *NavigationController) GoBack() bool {
	path, ok := n.history.Back()
	if !ok {
		return false
	}
	n.deps.Dir.Set(path)
	n.RequestDir(path)
	return true
}

// GoForward moves to the next history entry and reloads it. It does nothing
// at the end of history.
func (n *NavigationController) GoForward() bool {
	path, ok := n.history.Forward()
	if !ok {
		return false
	}
	n.deps.Dir.Set(path)
	n.RequestDir(path)
	return true
}

// GoUp navigates to the parent of the current directory.
func (n *NavigationController) GoUp() bool {
	current := n.deps.Dir.Get()
	parent := filepath.Dir(current)
	if parent == current {
		return false // Already at root
	}
	n.Navigate(parent)
	return true
}

// RequestDir sends a request to fetch directory contents and watches the
// directory for external changes.
func (n *NavigationController) RequestDir(path string) {
	gen := n.gen.Add(1)
	n.deps.FS.RequestChan <- fs.Request{Op: fs.FetchDir, Path: path, Gen: gen}

	if n.deps.Watcher != nil {
		n.watchMu.Lock()
		defer n.watchMu.Unlock()
		if n.watched != "" && n.watched != path {
			n.deps.Watcher.Unwatch(n.watched)
		}
		if err := n.deps.Watcher.Watch(path); err != nil {
			debug.Log(debug.APP, "watch %s: %v", path, err)
		} else {
			n.watched = path
		}
	}
}

// Refresh reloads the current directory without touching history.
func (n *NavigationController) Refresh() {
	n.RequestDir(n.deps.Dir.Get())
}

// ExpandPath resolves input against the current directory.
func (n *NavigationController) ExpandPath(input string) string {
	return expandPath(input, n.deps.Dir.Get())
}

// CurrentPath returns the current directory path.
func (n *NavigationController) CurrentPath() string {
	return n.deps.Dir.Get()
}

// accept reports whether resp answers the latest request.
func (n *NavigationController) accept(resp fs.Response) bool {
	return resp.Gen == 0 || resp.Gen == n.gen.Load()
}

// sortEntries orders a listing directories first, then by name.
func sortEntries(entries []fs.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}
