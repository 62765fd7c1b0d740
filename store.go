package verso

import (
	"log"

	"github.com/facebookgo/clock"
	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/verso/history"
	"github.com/ndlib/verso/store"
	"github.com/ndlib/verso/summary"
)

// A Store is a handle on a version store. It is safe for concurrent use.
type Store struct {
	s         store.Store
	index     *history.Index
	summary   summary.Summary // nil if no running totals are kept
	locks     keyLocks
	clock     clock.Clock
	logger    *log.Logger
	metrics   *Metrics
	lockFiles bool
	workers   int
}

// New returns a Store keeping its versions in s and its running totals in
// sum, which may be nil. Only the Clock, Logger, Metrics, LockFiles and
// ScanWorkers settings of cfg are used.
func New(s store.Store, sum summary.Summary, cfg Config) *Store {
	vs := &Store{
		s:         s,
		index:     history.New(s),
		summary:   sum,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		lockFiles: cfg.LockFiles,
		workers:   cfg.ScanWorkers,
	}
	if vs.clock == nil {
		vs.clock = clock.New()
	}
	if vs.workers <= 0 {
		vs.workers = defaultScanWorkers
	}
	vs.index.Logger = vs.logger
	return vs
}

func (vs *Store) logf(format string, args ...interface{}) {
	if vs.logger != nil {
		vs.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Close releases the summary backend.
func (vs *Store) Close() error {
	if vs.summary == nil {
		return nil
	}
	return vs.summary.Close()
}

// addSummary records a change in the running totals. Failures only make
// the totals drift, so they are logged and not returned.
func (vs *Store) addSummary(ctype string, dv, db int64) {
	if vs.summary == nil {
		return
	}
	if err := vs.summary.Add(ctype, dv, db); err != nil {
		vs.logf("summary %s: %s", ctype, err.Error())
		raven.CaptureError(err, map[string]string{"Type": ctype})
	}
}
