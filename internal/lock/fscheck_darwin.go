//go:build darwin

package lock

import (
	"strings"
	"syscall"
)

// statFilesystem trusts the kernel's MNT_LOCAL flag rather than a list of
// filesystem names.
func statFilesystem(dir string) (fsInfo, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return fsInfo{}, err
	}

	var name strings.Builder
	for _, c := range st.Fstypename {
		if c == 0 {
			break
		}
		name.WriteByte(byte(c))
	}
	return fsInfo{name: name.String(), remote: st.Flags&syscall.MNT_LOCAL == 0}, nil
}
