/*
Package summary persists the running storage totals of a version store.

Every create and delete adjusts the totals by a delta, so reading them is
cheap. The totals can drift from the truth if a process dies between
publishing a snapshot and recording its delta; replacing the record with the
result of a full walk corrects them.

Three backends are provided: a JSON record kept in the store itself (File),
the embedded QL database (QL), and MySQL (MySQL).
*/
package summary

import (
	"sort"
)

// TypeStats are the totals for one content type.
type TypeStats struct {
	Versions int64 `json:"versions"`
	Bytes    int64 `json:"bytes"`
}

// Stats are the totals for a whole store.
type Stats struct {
	TotalVersions int64                `json:"total_versions"`
	TotalBytes    int64                `json:"total_bytes"`
	PerType       map[string]TypeStats `json:"per_type"`
}

// A Summary stores a Stats record.
type Summary interface {
	// Add adjusts the totals of ctype by dv versions and db bytes. Deltas
	// are negative for deletions.
	Add(ctype string, dv, db int64) error
	// Load returns the current totals.
	Load() (Stats, error)
	// Replace overwrites the totals.
	Replace(Stats) error
	Close() error
}

// Add applies a delta to s. Types whose totals reach zero are removed.
func (s *Stats) Add(ctype string, dv, db int64) {
	if s.PerType == nil {
		s.PerType = make(map[string]TypeStats)
	}
	ts := s.PerType[ctype]
	ts.Versions += dv
	ts.Bytes += db
	if ts.Versions <= 0 && ts.Bytes <= 0 {
		delete(s.PerType, ctype)
	} else {
		s.PerType[ctype] = ts
	}
	s.TotalVersions += dv
	s.TotalBytes += db
}

// Types returns the content types in s, sorted.
func (s Stats) Types() []string {
	var out []string
	for k := range s.PerType {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Equal compares two Stats records. A nil and an empty PerType are equal.
func Equal(a, b Stats) bool {
	if a.TotalVersions != b.TotalVersions || a.TotalBytes != b.TotalBytes {
		return false
	}
	if len(a.PerType) != len(b.PerType) {
		return false
	}
	for k, v := range a.PerType {
		if w, ok := b.PerType[k]; !ok || v != w {
			return false
		}
	}
	return true
}

// recompute the totals from the per type entries
func (s *Stats) total() {
	s.TotalVersions, s.TotalBytes = 0, 0
	for _, ts := range s.PerType {
		s.TotalVersions += ts.Versions
		s.TotalBytes += ts.Bytes
	}
}
