package verso

import (
	"fmt"

	"github.com/ndlib/verso/diff"
)

// DiffVersions compares versions a and b of k and returns the changes that
// turn a into b. No lock is taken. If either version cannot be loaded the
// error is an ErrDiffFailure wrapping the load error.
func (vs *Store) DiffVersions(k Key, a, b VersionID) ([]diff.Change, error) {
	if err := k.Valid(); err != nil {
		return nil, err
	}
	op := fmt.Sprintf("diff %s %d %d", k, a, b)
	from, err := vs.GetVersion(k, a)
	if err != nil {
		return nil, failure(ErrDiffFailure, op, err)
	}
	to, err := vs.GetVersion(k, b)
	if err != nil {
		return nil, failure(ErrDiffFailure, op, err)
	}
	changes := diff.Diff(from, to)
	vs.metrics.observeDiff(len(changes))
	return changes, nil
}
