package history

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	raven "github.com/getsentry/raven-go"
	"github.com/golang/groupcache/singleflight"
	"github.com/pkg/errors"

	"github.com/ndlib/verso/store"
)

// LedgerName is the file name of the ledger inside a key's directory.
const LedgerName = "history.json"

const snapshotExt = ".json"

var (
	// ErrCorrupt means a ledger could not be decoded. It is never returned
	// by View, which falls back to a directory scan.
	ErrCorrupt = errors.New("history: corrupt ledger")
)

// FileName returns the snapshot file name for version id.
func FileName(id VersionID) string {
	return fmt.Sprintf("%08d%s", id, snapshotExt)
}

// ParseFileName extracts the version id from a snapshot file name. It
// returns 0 if the name is not a snapshot file.
func ParseFileName(name string) VersionID {
	if !strings.HasSuffix(name, snapshotExt) {
		return 0
	}
	digits := strings.TrimSuffix(name, snapshotExt)
	if len(digits) < 8 {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 0)
	if err != nil || n <= 0 {
		return 0
	}
	return VersionID(n)
}

// An Index reads and writes ledgers in a store. It is safe to use from
// multiple goroutines, but writers must exclude each other per directory;
// the Index does no locking of its own.
type Index struct {
	S      store.Store
	Logger *log.Logger
	table  singleflight.Group // for lock-free views. keyed by directory
}

// New returns an Index over s.
func New(s store.Store) *Index {
	return &Index{S: s}
}

func (x *Index) logf(format string, args ...interface{}) {
	if x.Logger != nil {
		x.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Load reads the ledger of dir. A missing ledger is returned as an empty
// one. A ledger that cannot be decoded returns ErrCorrupt.
func (x *Index) Load(dir string) (*Ledger, error) {
	l := new(Ledger)
	err := store.OpenJSON(x.S, dir+"/"+LedgerName, l)
	if err == store.ErrNoKey {
		return &Ledger{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%s: %s", dir, err.Error())
	}
	sort.Slice(l.Versions, func(i, j int) bool { return l.Versions[i].ID < l.Versions[j].ID })
	return l, nil
}

// Save atomically replaces the ledger of dir.
func (x *Index) Save(dir string, l *Ledger) error {
	if l.Versions == nil {
		l.Versions = []Version{}
	}
	_, err := store.SaveJSON(x.S, dir+"/"+LedgerName, l)
	return err
}

// Files lists the snapshot files present in dir, keyed by version id.
func (x *Index) Files(dir string) (map[VersionID]store.Entry, error) {
	entries, err := x.S.List(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[VersionID]store.Entry, len(entries))
	for _, e := range entries {
		if e.Dir {
			continue
		}
		if id := ParseFileName(e.Name); id > 0 {
			files[id] = e
		}
	}
	return files, nil
}

// Reconcile returns a copy of l made to agree with files, and whether
// anything had to change. Entries without a file are dropped. Files
// without an entry are adopted.
func (x *Index) Reconcile(dir string, l *Ledger, files map[VersionID]store.Entry) (*Ledger, bool) {
	result := &Ledger{Next: l.Next, Versions: make([]Version, 0, len(files))}
	changed := false
	seen := make(map[VersionID]bool, len(l.Versions))
	for _, v := range l.Versions {
		e, ok := files[v.ID]
		if !ok || seen[v.ID] {
			changed = true
			continue
		}
		seen[v.ID] = true
		if v.Size != e.Size || v.File != e.Name {
			v.Size = e.Size
			v.File = e.Name
			changed = true
		}
		result.Versions = append(result.Versions, v)
	}
	for id, e := range files {
		if seen[id] {
			continue
		}
		changed = true
		if v, ok := x.adopt(dir, id, e); ok {
			result.Versions = append(result.Versions, v)
		}
	}
	sort.Slice(result.Versions, func(i, j int) bool {
		return result.Versions[i].ID < result.Versions[j].ID
	})
	if n := len(result.Versions); n > 0 && result.Versions[n-1].ID >= result.Next {
		result.Next = result.Versions[n-1].ID + 1
		changed = true
	}
	return result, changed
}

// adopt builds the metadata for a snapshot file with no ledger entry.
// It returns false if the file has disappeared since it was listed.
func (x *Index) adopt(dir string, id VersionID, e store.Entry) (Version, bool) {
	var env Envelope
	err := store.OpenJSON(x.S, dir+"/"+e.Name, &env)
	if err == store.ErrNoKey {
		return Version{}, false
	}
	if err == nil && env.ID == id {
		v := env.Meta()
		v.Size = e.Size
		v.File = e.Name
		return v, true
	}
	if err == nil {
		err = errors.Errorf("envelope id %d does not match file name", env.ID)
	}
	x.logf("history: %s/%s: inferring metadata: %s", dir, e.Name, err.Error())
	raven.CaptureError(err, map[string]string{"Dir": dir, "File": e.Name})
	return Version{
		ID:      id,
		Created: e.ModTime.UTC(),
		Size:    e.Size,
		File:    e.Name,
	}, true
}

// Scan rebuilds a ledger for dir from the directory contents alone.
func (x *Index) Scan(dir string) (*Ledger, error) {
	files, err := x.Files(dir)
	if err != nil {
		return nil, err
	}
	l, _ := x.Reconcile(dir, &Ledger{}, files)
	return l, nil
}

// Current loads the ledger of dir and reconciles it against the directory.
// dirty reports whether the persisted ledger needs to be rewritten. A
// corrupt ledger is replaced by a scan.
func (x *Index) Current(dir string) (l *Ledger, dirty bool, err error) {
	files, err := x.Files(dir)
	if err != nil {
		return nil, false, err
	}
	persisted, err := x.Load(dir)
	if err != nil {
		x.logf("history: %s: %s; rescanning", dir, err.Error())
		raven.CaptureError(err, map[string]string{"Dir": dir})
		persisted = &Ledger{}
		dirty = true
	}
	l, changed := x.Reconcile(dir, persisted, files)
	return l, dirty || changed, nil
}

type view struct {
	l     *Ledger
	dirty bool
}

// View is Current for lock-free readers. Concurrent calls for the same
// directory share one load. The returned ledger is shared and must not be
// modified.
func (x *Index) View(dir string) (*Ledger, bool, error) {
	val, err := x.table.Do(dir, func() (interface{}, error) {
		l, dirty, err := x.Current(dir)
		if err != nil {
			return nil, err
		}
		return view{l: l, dirty: dirty}, nil
	})
	if err != nil {
		return nil, false, err
	}
	v := val.(view)
	return v.l, v.dirty, nil
}
