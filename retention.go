package verso

import (
	"time"

	"github.com/pkg/errors"
)

// PurgeOldVersions deletes every version of k created more than days days
// ago, and returns how many were deleted. A days of 0 deletes everything
// created before now. All versions may be deleted; the most recent one is
// not kept.
func (vs *Store) PurgeOldVersions(k Key, days int) (int, error) {
	cutoff, err := vs.cutoff(days)
	if err != nil {
		return 0, err
	}
	return vs.purge(k, cutoff)
}

// PurgeAll applies PurgeOldVersions to every key in the store. It stops at
// the first error, returning the number deleted so far.
func (vs *Store) PurgeAll(days int) (int, error) {
	cutoff, err := vs.cutoff(days)
	if err != nil {
		return 0, err
	}
	var total int
	err = vs.eachKey(func(k Key) error {
		n, err := vs.purge(k, cutoff)
		total += n
		return err
	})
	return total, err
}

func (vs *Store) cutoff(days int) (time.Time, error) {
	if days < 0 {
		return time.Time{}, errors.Wrapf(ErrInvalidArgument, "purge: negative age %d", days)
	}
	if days > maxPurgeDays {
		days = maxPurgeDays
	}
	return vs.clock.Now().UTC().AddDate(0, 0, -days), nil
}

// ages beyond this reach before year 1 and match nothing
const maxPurgeDays = 1 << 20

func (vs *Store) purge(k Key, cutoff time.Time) (int, error) {
	list, err := vs.ListVersions(k)
	if err != nil {
		return 0, err
	}
	var count int
	for _, v := range list {
		if !v.Created.Before(cutoff) {
			continue
		}
		ok, err := vs.DeleteVersion(k, v.ID)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	if count > 0 {
		vs.logf("purge %s: deleted %d versions before %s", k, count, cutoff.Format(time.RFC3339))
	}
	return count, nil
}
