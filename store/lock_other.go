//go:build windows || plan9 || js || wasip1

package store

import "os"

// Lock only makes sure dir exists. There is no advisory file locking on this
// platform, so only goroutines in one process are excluded (by the caller).
func (s *FileSystem) Lock(dir string) (func(), error) {
	if err := ValidKey(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.fname(dir), 0775); err != nil {
		return nil, err
	}
	return func() {}, nil
}
