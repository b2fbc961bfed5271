//go:build !darwin && !linux

package lock

import "errors"

func statFilesystem(string) (fsInfo, error) {
	return fsInfo{}, errors.New("filesystem inspection is not supported on this platform")
}
