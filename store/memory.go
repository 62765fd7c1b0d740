package store

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory implements a simple in-memory version of a store. It is intended
// mainly for testing.
type Memory struct {
	m     sync.RWMutex
	store map[string]*buf
	// now gives the modification time recorded for new values
	now func() time.Time
}

var (
	// ensure Memory satisfies the Store interface
	_ Store = &Memory{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{store: make(map[string]*buf), now: time.Now}
}

// buf is immutable once published, so readers share it without locking.
type buf struct {
	b       []byte
	modtime time.Time
}

func (r *buf) Close() error { return nil }

func (r *buf) ReadAt(p []byte, off int64) (int, error) {
	if int(off) >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// List returns the direct children of dir. Directories are implied by the
// keys beneath them.
func (ms *Memory) List(dir string) ([]Entry, error) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := make(map[string]Entry)
	ms.m.RLock()
	for k, v := range ms.store {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seen[rest[:i]] = Entry{Name: rest[:i], Dir: true}
			continue
		}
		seen[rest] = Entry{Name: rest, Size: int64(len(v.b)), ModTime: v.modtime}
	}
	ms.m.RUnlock()
	result := make([]Entry, 0, len(seen))
	for _, e := range seen {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Open returns a ReadAtCloser and the size of the given blob.
func (ms *Memory) Open(key string) (ReadAtCloser, int64, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, ErrNoKey
	}
	return v, int64(len(v.b)), nil
}

// Stat returns the size and time of the given key.
func (ms *Memory) Stat(key string) (Entry, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return Entry{}, ErrNoKey
	}
	name := key[strings.LastIndexByte(key, '/')+1:]
	return Entry{Name: name, Size: int64(len(v.b)), ModTime: v.modtime}, nil
}

// Create makes a new entry in the store, and returns a writer to save data
// into it. The entry appears when the writer is closed.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	return ms.create(key, false)
}

// Overwrite is like Create except it replaces any existing entry.
func (ms *Memory) Overwrite(key string) (io.WriteCloser, error) {
	return ms.create(key, true)
}

func (ms *Memory) create(key string, replace bool) (io.WriteCloser, error) {
	if err := ValidKey(key); err != nil {
		return nil, err
	}
	if !replace {
		ms.m.RLock()
		_, ok := ms.store[key]
		ms.m.RUnlock()
		if ok {
			return nil, ErrKeyExists
		}
	}
	return &memWriter{ms: ms, key: key, replace: replace}, nil
}

type memWriter struct {
	ms      *Memory
	key     string
	replace bool
	b       []byte
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *memWriter) Close() error {
	w.ms.m.Lock()
	defer w.ms.m.Unlock()
	if _, ok := w.ms.store[w.key]; ok && !w.replace {
		return ErrKeyExists
	}
	w.ms.store[w.key] = &buf{b: w.b, modtime: w.ms.now()}
	return nil
}

// Delete the given key from the store. It is not an error if the item does
// not exist in the store.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.store, key)
	ms.m.Unlock()
	return nil
}

// SetClock replaces the function used to timestamp new entries.
func (ms *Memory) SetClock(now func() time.Time) {
	ms.m.Lock()
	ms.now = now
	ms.m.Unlock()
}

// Dump writes a listing of the contents of the store to the given writer.
// This is intended for testing and debugging.
func (ms *Memory) Dump(w io.Writer) {
	ms.m.RLock()
	keys := make([]string, 0, len(ms.store))
	for k := range ms.store {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := ms.store[k].b
		if len(s) > 300 {
			s = s[:50]
		}
		fmt.Fprintf(w, "%s: %s\n", k, string(s))
	}
	ms.m.RUnlock()
}
