package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNetworkFilesystem is returned by CheckLocalFilesystem when the lock
// directory lives on storage that other hosts can mount.
var ErrNetworkFilesystem = errors.New("lock directory is on a network filesystem")

// fsInfo describes the filesystem backing a directory.
type fsInfo struct {
	name   string
	remote bool
}

// CheckLocalFilesystem reports whether the run lock at lockPath can be
// trusted. flock(2) only excludes processes on the same host, so a lock
// directory on NFS or SMB lets two generators on different machines
// rewrite the output file at once. A lock directory that does not exist
// yet is judged by its nearest existing ancestor.
func CheckLocalFilesystem(lockPath string) error {
	return checkLocal(lockPath, statFilesystem)
}

func checkLocal(lockPath string, stat func(dir string) (fsInfo, error)) error {
	if strings.TrimSpace(lockPath) == "" {
		return errors.New("lock path is empty")
	}

	dir, err := existingAncestor(filepath.Dir(lockPath))
	if err != nil {
		return fmt.Errorf("locate lock directory: %w", err)
	}

	info, err := stat(dir)
	if err != nil {
		return fmt.Errorf("inspect filesystem of %s: %w", dir, err)
	}
	if info.remote {
		return fmt.Errorf("%w: %s is on %s and flock(2) will not stop a generator on another host; "+
			"point generator.lock_path at local disk", ErrNetworkFilesystem, dir, info.name)
	}
	return nil
}

// existingAncestor walks up from dir until it finds a directory that exists.
func existingAncestor(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for cur := abs; ; {
		fi, err := os.Stat(cur)
		switch {
		case err == nil && fi.IsDir():
			return cur, nil
		case err == nil:
			return "", fmt.Errorf("%s is not a directory", cur)
		case !errors.Is(err, fs.ErrNotExist):
			return "", err
		}

		next := filepath.Dir(cur)
		if next == cur {
			return "", fmt.Errorf("no part of %s exists", abs)
		}
		cur = next
	}
}
