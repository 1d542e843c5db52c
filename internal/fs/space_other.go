//go:build !(linux || darwin || freebsd)

package fs

// FreeSpace is not implemented on this platform.
func FreeSpace(path string) (free int64, ok bool) {
	return 0, false
}
