//go:build !windows && !plan9 && !js && !wasip1

package store

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const lockfile = ".lock"

// Lock takes an exclusive advisory lock on dir, creating the directory and
// its lock file if needed. It blocks until the lock is available. This only
// excludes other processes; goroutines in the same process need their own
// mutex since flock locks are per open file.
func (s *FileSystem) Lock(dir string) (func(), error) {
	if err := ValidKey(dir); err != nil {
		return nil, err
	}
	p := s.fname(dir)
	if err := os.MkdirAll(p, 0775); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(p, lockfile), os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "flock %s", dir)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
