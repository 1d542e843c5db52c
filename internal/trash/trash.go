// Package trash manages a trash bin laid out per the freedesktop.org trash
// specification. Moving files into it is the engine's job; the bin reserves
// names, writes the metadata and lists or empties what is there.
package trash

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/justyntemme/razorops/internal/debug"
	rfs "github.com/justyntemme/razorops/internal/fs"
	"go.uber.org/multierr"
)

// Structure:
//   - files/     - actual trashed files
//   - info/      - .trashinfo metadata files
//
// .trashinfo format:
// [Trash Info]
// Path=/original/path/to/file
// DeletionDate=2024-01-15T10:30:45

const (
	infoSuffix = ".trashinfo"
	dateLayout = "2006-01-02T15:04:05"
)

// Item represents a file or directory in the trash
type Item struct {
	Name         string    // Name inside files/
	OriginalPath string    // Full path where the file was deleted from
	TrashPath    string    // Current path in trash
	DeletedAt    time.Time // When the file was deleted
	Size         int64     // Size in bytes, summed for directories
	IsDir        bool      // Whether this is a directory
}

// Bin is a trash directory rooted at a configured path.
type Bin struct {
	root string
	now  func() time.Time
}

// New returns the bin rooted at root.
func New(root string) *Bin {
	return &Bin{root: root, now: time.Now}
}

// Root returns the bin's root directory.
func (b *Bin) Root() string { return b.root }

// FilesDir is where trashed entries live. It is the destination of the
// engine's move.
func (b *Bin) FilesDir() string { return filepath.Join(b.root, "files") }

// InfoDir holds one .trashinfo record per trashed entry.
func (b *Bin) InfoDir() string { return filepath.Join(b.root, "info") }

func (b *Bin) ensure() error {
	if b.root == "" {
		return fmt.Errorf("trash path not configured")
	}
	if err := os.MkdirAll(b.FilesDir(), 0o700); err != nil {
		return fmt.Errorf("cannot create trash files directory: %w", err)
	}
	if err := os.MkdirAll(b.InfoDir(), 0o700); err != nil {
		return fmt.Errorf("cannot create trash info directory: %w", err)
	}
	return nil
}

// Prepare reserves a unique name in files/ for every path and writes its
// .trashinfo record. The returned names line up with paths. On error no
// record written by this call is left behind.
func (b *Bin) Prepare(paths []string) ([]string, error) {
	if err := b.ensure(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(paths))
	reserved := make(map[string]bool)
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			b.release(names)
			return nil, err
		}
		name := b.uniqueName(filepath.Base(absPath), reserved)
		reserved[name] = true

		infoContent := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
			url.PathEscape(absPath),
			b.now().Format(dateLayout))
		infoFile := filepath.Join(b.InfoDir(), name+infoSuffix)
		if err := os.WriteFile(infoFile, []byte(infoContent), 0o600); err != nil {
			b.release(names)
			return nil, fmt.Errorf("cannot create trashinfo file: %w", err)
		}
		debug.Log(debug.OPS, "trash: reserved %s for %s", name, absPath)
		names = append(names, name)
	}
	return names, nil
}

// release drops the records of names; with no names it does nothing, unlike
// Prune.
func (b *Bin) release(names []string) {
	if len(names) == 0 {
		return
	}
	if _, err := b.Prune(names...); err != nil {
		debug.Log(debug.OPS, "trash: releasing %d records: %v", len(names), err)
	}
}

// uniqueName appends numbers until neither files/ nor info/ has the name:
// "report.pdf", "report.1.pdf", "report.2.pdf", ...
func (b *Bin) uniqueName(baseName string, reserved map[string]bool) string {
	taken := func(name string) bool {
		return reserved[name] ||
			rfs.Exists(filepath.Join(b.FilesDir(), name)) ||
			rfs.Exists(filepath.Join(b.InfoDir(), name+infoSuffix))
	}

	destName := baseName
	ext := filepath.Ext(baseName)
	if ext == baseName {
		ext = ""
	}
	stem := strings.TrimSuffix(baseName, ext)
	for counter := 1; taken(destName); counter++ {
		destName = fmt.Sprintf("%s.%d%s", stem, counter, ext)
	}
	return destName
}

// Prune removes info records whose entry never arrived in files/, which
// happens when a trash move was skipped or failed. Only the named records are
// checked, or all of them when names is empty. It returns how many were
// removed.
func (b *Bin) Prune(names ...string) (int, error) {
	if len(names) == 0 {
		entries, err := os.ReadDir(b.InfoDir())
		if os.IsNotExist(err) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if name, ok := strings.CutSuffix(e.Name(), infoSuffix); ok {
				names = append(names, name)
			}
		}
	}

	var removed int
	var errs error
	for _, name := range names {
		if rfs.Exists(filepath.Join(b.FilesDir(), name)) {
			continue
		}
		err := os.Remove(filepath.Join(b.InfoDir(), name+infoSuffix))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}

// List returns all items currently in the trash.
func (b *Bin) List() ([]Item, error) {
	entries, err := os.ReadDir(b.FilesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Empty trash
		}
		return nil, err
	}

	var items []Item
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		fullPath := filepath.Join(b.FilesDir(), entry.Name())
		item := Item{
			Name:      entry.Name(),
			TrashPath: fullPath,
			DeletedAt: info.ModTime(),
			Size:      info.Size(),
			IsDir:     entry.IsDir(),
		}
		if item.IsDir {
			if n, err := rfs.TreeSize(fullPath); err == nil {
				item.Size = n
			}
		}

		if origPath, delTime, err := parseTrashInfo(filepath.Join(b.InfoDir(), entry.Name()+infoSuffix)); err == nil {
			item.OriginalPath = origPath
			if !delTime.IsZero() {
				item.DeletedAt = delTime
			}
		}

		items = append(items, item)
	}
	return items, nil
}

func parseTrashInfo(path string) (originalPath string, deletionDate time.Time, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", time.Time{}, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if encoded, ok := strings.CutPrefix(line, "Path="); ok {
			decoded, err := url.PathUnescape(encoded)
			if err == nil {
				originalPath = decoded
			} else {
				originalPath = encoded
			}
		} else if dateStr, ok := strings.CutPrefix(line, "DeletionDate="); ok {
			if t, err := time.ParseInLocation(dateLayout, dateStr, time.Local); err == nil {
				deletionDate = t
			}
		}
	}
	return originalPath, deletionDate, scanner.Err()
}

// Empty permanently deletes everything in the trash.
func (b *Bin) Empty() error {
	var errs error
	for _, dir := range []string{b.FilesDir(), b.InfoDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		for _, entry := range entries {
			errs = multierr.Append(errs, os.RemoveAll(filepath.Join(dir, entry.Name())))
		}
	}
	return errs
}

// Remove permanently deletes one item and its record.
func (b *Bin) Remove(item Item) error {
	if err := os.RemoveAll(item.TrashPath); err != nil {
		return err
	}
	infoFile := filepath.Join(b.InfoDir(), filepath.Base(item.TrashPath)+infoSuffix)
	if err := os.Remove(infoFile); err != nil && !os.IsNotExist(err) {
		debug.Log(debug.OPS, "trash: removing %s: %v", infoFile, err)
	}
	return nil
}

// DisplayName returns the user-facing name of the bin.
func DisplayName() string {
	return "Trash"
}
