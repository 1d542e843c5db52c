package fileops

import (
	"fmt"
	"path/filepath"
	"strings"

	rfs "github.com/justyntemme/razorops/internal/fs"
)

// DefaultCopyLabel is the word inserted by the naming probe: "a (copy 1).txt".
const DefaultCopyLabel = "copy"

// maxNameProbes bounds the probe so a broken filesystem can't spin forever.
const maxNameProbes = 10000

// compoundExts are multi-dot extensions kept together when splitting a name.
var compoundExts = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst", ".tar.lz4", ".tar.lz"}

// SplitExt splits a file name into base and extension. Compound archive
// extensions count as one unit and a leading dot does not start an extension.
func SplitExt(name string) (base, ext string) {
	lower := strings.ToLower(name)
	for _, ce := range compoundExts {
		if strings.HasSuffix(lower, ce) && len(name) > len(ce) {
			cut := len(name) - len(ce)
			return name[:cut], name[cut:]
		}
	}
	ext = filepath.Ext(name)
	if ext == name || ext == "" {
		return name, ""
	}
	return name[:len(name)-len(ext)], ext
}

// CandidateName formats the n-th auto-numbered name for name.
func CandidateName(name, label string, n int, isDir bool) string {
	if label == "" {
		label = DefaultCopyLabel
	}
	if isDir {
		return fmt.Sprintf("%s (%s %d)", name, label, n)
	}
	base, ext := SplitExt(name)
	return fmt.Sprintf("%s (%s %d)%s", base, label, n, ext)
}

// NextName returns the first candidate for name, probing n = 1, 2, 3, ...,
// that does not exist in dir. It creates nothing, so calling it twice without
// touching dir yields the same path.
func NextName(dir, name, label string, isDir bool) (string, error) {
	for n := 1; n <= maxNameProbes; n++ {
		candidate := filepath.Join(dir, CandidateName(name, label, n, isDir))
		if !rfs.Exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %q in %s after %d attempts", name, dir, maxNameProbes)
}
