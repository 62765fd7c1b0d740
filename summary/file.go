package summary

import (
	"sync"

	"github.com/ndlib/verso/store"
)

// FileKey is the store key of the JSON summary record.
const FileKey = ".summary.json"

// File keeps the summary as a JSON record in a store. Updates are
// serialized within one process only.
type File struct {
	s  store.Store
	mu sync.Mutex
}

// NewFile returns a summary kept in s.
func NewFile(s store.Store) *File {
	return &File{s: s}
}

func (f *File) load() (Stats, error) {
	var st Stats
	err := store.OpenJSON(f.s, FileKey, &st)
	if err == store.ErrNoKey {
		err = nil
	}
	if st.PerType == nil {
		st.PerType = make(map[string]TypeStats)
	}
	return st, err
}

// Add implements Summary.
func (f *File) Add(ctype string, dv, db int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.load()
	if err != nil {
		return err
	}
	st.Add(ctype, dv, db)
	_, err = store.SaveJSON(f.s, FileKey, st)
	return err
}

// Load implements Summary.
func (f *File) Load() (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Replace implements Summary.
func (f *File) Replace(st Stats) error {
	if st.PerType == nil {
		st.PerType = make(map[string]TypeStats)
	}
	st.total()
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := store.SaveJSON(f.s, FileKey, st)
	return err
}

// Close implements Summary.
func (f *File) Close() error { return nil }
