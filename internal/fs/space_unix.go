//go:build linux || darwin || freebsd

package fs

import (
	"golang.org/x/sys/unix"
)

// FreeSpace returns the bytes available to unprivileged users on the volume
// holding path. ok is false when the platform can't tell.
func FreeSpace(path string) (free int64, ok bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, false
	}
	return int64(st.Bavail) * int64(st.Bsize), true
}
