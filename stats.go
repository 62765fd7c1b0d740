package verso

import (
	"sync"
	"time"

	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/verso/history"
	"github.com/ndlib/verso/store"
	"github.com/ndlib/verso/summary"
	"github.com/ndlib/verso/util"
)

// scratchAge is how old an in-flight write must be before Reconcile
// removes it.
const scratchAge = time.Hour

// StorageStats returns the running totals. Without a summary backend it
// does a full walk instead.
func (vs *Store) StorageStats() (summary.Stats, error) {
	if vs.summary == nil {
		return vs.ScanStats()
	}
	return vs.summary.Load()
}

// ScanStats computes the totals by walking every key in the store.
func (vs *Store) ScanStats() (summary.Stats, error) {
	return vs.walk(func(k Key) (*history.Ledger, error) {
		return vs.ledger(k)
	})
}

// Reconcile walks every key, repairing ledgers that disagree with their
// directory, replaces the running totals with the result of the walk, and
// clears out abandoned scratch files.
func (vs *Store) Reconcile() (summary.Stats, error) {
	st, err := vs.walk(func(k Key) (*history.Ledger, error) {
		return vs.repair(k)
	})
	if err != nil {
		return st, err
	}
	if vs.summary != nil {
		if err := vs.summary.Replace(st); err != nil {
			return st, err
		}
	}
	if sw, ok := vs.s.(store.Sweeper); ok {
		n, err := sw.Sweep(vs.clock.Now().Add(-scratchAge))
		if err != nil {
			vs.logf("reconcile: sweep: %s", err.Error())
		} else if n > 0 {
			vs.logf("reconcile: removed %d abandoned writes", n)
		}
	}
	vs.logf("reconcile: %d versions, %d bytes", st.TotalVersions, st.TotalBytes)
	return st, nil
}

// walk totals the ledgers returned by load for every key, running up to
// vs.workers loads at once. The first error is returned after the walk
// finishes.
func (vs *Store) walk(load func(Key) (*history.Ledger, error)) (summary.Stats, error) {
	var (
		mu       sync.Mutex
		st       = summary.Stats{PerType: make(map[string]summary.TypeStats)}
		firstErr error
	)
	gate := util.NewGate(vs.workers)
	err := vs.eachKey(func(k Key) error {
		gate.Go(func() {
			l, err := load(k)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				vs.logf("walk %s: %s", k, err.Error())
				raven.CaptureError(err, map[string]string{"Key": k.String()})
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			var n int64
			for _, v := range l.Versions {
				n += v.Size
			}
			if len(l.Versions) > 0 {
				st.Add(k.Type, int64(len(l.Versions)), n)
			}
		})
		return nil
	})
	gate.Wait()
	if err == nil {
		err = firstErr
	}
	return st, err
}

// eachKey calls f for every key in the store, in sorted order, stopping at
// the first error.
func (vs *Store) eachKey(f func(Key) error) error {
	types, err := vs.ContentTypes()
	if err != nil {
		return err
	}
	for _, t := range types {
		ids, err := vs.subdirs(t)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := f(Key{Type: t, ID: id}); err != nil {
				return err
			}
		}
	}
	return nil
}
