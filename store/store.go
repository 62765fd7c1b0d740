// Package store provides a simple, goroutine safe hierarchical key-value
// interface. Values are streams, and a value only becomes visible once the
// writer creating it is closed. This makes every publish atomic: a reader
// either sees the complete value, or nothing.
//
// Keys are slash separated relative paths, such as "page/42/00000001.json".
// Each path element must be a valid file name. The FileSystem maps keys
// directly onto directories and files under its root. Memory is useful for
// testing.
package store

import (
	"io"
	"time"
)

// ReadAtCloser combines the io.ReaderAt and io.Closer interfaces.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store defines the basic stream based key-value store.
//
// Create makes a new value which must not already exist. Overwrite makes a
// new value, atomically replacing any existing one. In both cases the value
// is published when the returned writer is closed; if any write failed the
// value is discarded and Close returns that error.
type Store interface {
	ROStore
	Create(key string) (io.WriteCloser, error)
	Overwrite(key string) (io.WriteCloser, error)
	Delete(key string) error
}

// ROStore is the read-only pieces of a Store. It allows one to list
// contents, and to retrieve data.
type ROStore interface {
	// List returns the direct children of the given directory, sorted by
	// name. Listing a directory that does not exist returns nothing and no
	// error. The empty string is the root.
	List(dir string) ([]Entry, error)
	Open(key string) (ReadAtCloser, int64, error)
	Stat(key string) (Entry, error)
}

// Entry describes one child of a directory.
type Entry struct {
	Name    string
	Dir     bool
	Size    int64
	ModTime time.Time
}

// Locker is implemented by stores that can exclude other processes from a
// directory. The returned function releases the lock.
type Locker interface {
	Lock(dir string) (func(), error)
}

// Sweeper is implemented by stores that keep scratch space for in-flight
// writes. Sweep removes leftovers older than the cutoff and returns how many
// it removed.
type Sweeper interface {
	Sweep(cutoff time.Time) (int, error)
}

// NewReader converts a ReaderAt into a io.Reader. It is here as a utility to
// help work with the ReadAtCloser returned by Open.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		// reading less than a full buffer is not an error for
		// an io.Reader
		err = nil
	}
	return
}
