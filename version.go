package verso

import (
	"fmt"
	"sort"
	"strconv"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"

	"github.com/ndlib/verso/history"
	"github.com/ndlib/verso/snapshot"
	"github.com/ndlib/verso/store"
)

// CreateVersion stores data as a new version of k and returns its id. The
// version is visible to readers once this returns. If the snapshot could
// not be written the error is an ErrWriteFailure and k is unchanged.
func (vs *Store) CreateVersion(k Key, data snapshot.Value, author, comment string) (VersionID, error) {
	if err := k.Valid(); err != nil {
		return 0, err
	}
	op := "create " + k.String()
	unlock, err := vs.lock(k)
	if err != nil {
		vs.metrics.incWriteFailures()
		return 0, failure(ErrWriteFailure, op, err)
	}
	defer unlock()

	dir := k.dir()
	l, dirty, err := vs.index.Current(dir)
	if err != nil {
		vs.metrics.incWriteFailures()
		return 0, failure(ErrWriteFailure, op, err)
	}
	id := l.NextID()
	env := history.Envelope{
		ID:      id,
		Created: vs.clock.Now().UTC(),
		Author:  author,
		Comment: comment,
		Hash:    data.Hash(),
		Data:    data,
	}
	size, err := store.CreateJSON(vs.s, dir+"/"+history.FileName(id), env)
	if err != nil {
		vs.metrics.incWriteFailures()
		return 0, failure(ErrWriteFailure, op, err)
	}

	// the version exists now. the rest is bookkeeping a reader can redo
	v := env.Meta()
	v.Size = size
	l.Append(v)
	if err := vs.index.Save(dir, l); err != nil {
		vs.logf("%s: saving ledger: %s", op, err.Error())
		raven.CaptureError(err, map[string]string{"Key": k.String()})
	} else if dirty {
		vs.metrics.incRepairs()
	}
	vs.addSummary(k.Type, 1, size)
	vs.metrics.incCreated()
	return id, nil
}

// GetVersion returns the data of version id of k. A snapshot file which
// cannot be decoded is reported as ErrNotFound.
func (vs *Store) GetVersion(k Key, id VersionID) (snapshot.Value, error) {
	env, err := vs.envelope(k, id)
	if err != nil {
		return snapshot.Value{}, err
	}
	return env.Data, nil
}

func (vs *Store) envelope(k Key, id VersionID) (*history.Envelope, error) {
	if err := k.Valid(); err != nil {
		return nil, err
	}
	op := "get " + k.String() + " version " + strconv.Itoa(int(id))
	if id <= 0 {
		return nil, failure(ErrNotFound, op, nil)
	}
	env := new(history.Envelope)
	err := store.OpenJSON(vs.s, k.dir()+"/"+history.FileName(id), env)
	if err == store.ErrNoKey {
		return nil, failure(ErrNotFound, op, nil)
	} else if err != nil {
		vs.logf("%s: %s", op, err.Error())
		return nil, failure(ErrNotFound, op, err)
	}
	if !env.Data.Verify(env.Hash) {
		// still usable, but someone should look at it
		vs.logf("%s: hash mismatch, recorded %s", op, env.Hash)
		raven.CaptureMessage("snapshot hash mismatch", map[string]string{
			"Key":     k.String(),
			"Version": strconv.Itoa(int(id)),
		})
	}
	return env, nil
}

// VersionInfo returns the metadata of version id of k.
func (vs *Store) VersionInfo(k Key, id VersionID) (Version, error) {
	l, err := vs.ledger(k)
	if err != nil {
		return Version{}, err
	}
	i := l.Find(id)
	if i < 0 {
		return Version{}, failure(ErrNotFound, "info "+k.String()+" version "+strconv.Itoa(int(id)), nil)
	}
	return l.Versions[i], nil
}

// ListVersions returns the metadata of every version of k, most recently
// created first. A key with no versions gives an empty list.
func (vs *Store) ListVersions(k Key) ([]Version, error) {
	l, err := vs.ledger(k)
	if err != nil {
		return nil, err
	}
	result := make([]Version, len(l.Versions))
	copy(result, l.Versions)
	sort.Slice(result, func(i, j int) bool {
		ti, tj := result[i].Created, result[j].Created
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// LatestVersion returns the metadata of the most recently created version
// of k.
func (vs *Store) LatestVersion(k Key) (Version, error) {
	list, err := vs.ListVersions(k)
	if err != nil {
		return Version{}, err
	}
	if len(list) == 0 {
		return Version{}, failure(ErrNotFound, "latest "+k.String(), nil)
	}
	return list[0], nil
}

// ledger returns a read only view of the ledger of k which agrees with the
// directory. If the persisted ledger does not agree, it is repaired.
func (vs *Store) ledger(k Key) (*history.Ledger, error) {
	if err := k.Valid(); err != nil {
		return nil, err
	}
	l, dirty, err := vs.index.View(k.dir())
	if err != nil {
		return nil, err
	}
	if dirty {
		vs.repair(k)
	}
	return l, nil
}

// repair rewrites the ledger of k if it disagrees with the directory. It
// returns the current ledger.
func (vs *Store) repair(k Key) (*history.Ledger, error) {
	unlock, err := vs.lock(k)
	if err != nil {
		vs.logf("repair %s: %s", k, err.Error())
		return nil, err
	}
	defer unlock()
	l, dirty, err := vs.index.Current(k.dir())
	if err != nil || !dirty {
		return l, err
	}
	vs.logf("repair %s: rewriting ledger with %d versions", k, len(l.Versions))
	if err := vs.index.Save(k.dir(), l); err != nil {
		vs.logf("repair %s: %s", k, err.Error())
		raven.CaptureError(err, map[string]string{"Key": k.String()})
		return l, err
	}
	vs.metrics.incRepairs()
	return l, nil
}

// DeleteVersion removes version id of k. It returns false if there was no
// such version. Nothing prevents deleting the last version of a key.
func (vs *Store) DeleteVersion(k Key, id VersionID) (bool, error) {
	if err := k.Valid(); err != nil {
		return false, err
	}
	if id <= 0 {
		return false, nil
	}
	op := "delete " + k.String() + " version " + strconv.Itoa(int(id))
	fname := k.dir() + "/" + history.FileName(id)
	// avoid taking the lock, and making a directory, for missing versions
	if _, err := vs.s.Stat(fname); err == store.ErrNoKey {
		return false, nil
	}

	unlock, err := vs.lock(k)
	if err != nil {
		vs.metrics.incWriteFailures()
		return false, failure(ErrWriteFailure, op, err)
	}
	defer unlock()

	e, err := vs.s.Stat(fname)
	if err == store.ErrNoKey {
		return false, nil
	} else if err != nil {
		vs.metrics.incWriteFailures()
		return false, failure(ErrWriteFailure, op, err)
	}
	l, _, err := vs.index.Current(k.dir())
	if err != nil {
		vs.metrics.incWriteFailures()
		return false, failure(ErrWriteFailure, op, err)
	}
	// remove the file first, so the ledger never lists a missing version
	// for longer than it takes to notice
	if err := vs.s.Delete(fname); err != nil {
		vs.metrics.incWriteFailures()
		return false, failure(ErrWriteFailure, op, err)
	}
	l.Remove(id)
	if err := vs.index.Save(k.dir(), l); err != nil {
		vs.logf("%s: saving ledger: %s", op, err.Error())
		raven.CaptureError(err, map[string]string{"Key": k.String()})
	}
	vs.addSummary(k.Type, -1, -e.Size)
	vs.metrics.incDeleted()
	return true, nil
}

// Restore makes a new version of k with the data of version id, and
// returns the new version's id.
func (vs *Store) Restore(k Key, id VersionID, author string) (VersionID, error) {
	data, err := vs.GetVersion(k, id)
	if err != nil {
		return 0, err
	}
	return vs.CreateVersion(k, data, author, fmt.Sprintf("restored from version %d", id))
}

// ContentTypes lists the content types having at least one key, sorted.
func (vs *Store) ContentTypes() ([]string, error) {
	return vs.subdirs("")
}

// ContentIDs lists the content ids of type ctype, sorted.
func (vs *Store) ContentIDs(ctype string) ([]string, error) {
	if err := validPart(ctype); err != nil {
		return nil, errors.Wrapf(ErrInvalidKey, "type %q: %s", ctype, err.Error())
	}
	return vs.subdirs(ctype)
}

func (vs *Store) subdirs(dir string) ([]string, error) {
	entries, err := vs.s.List(dir)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, e := range entries {
		if !e.Dir || validPart(e.Name) != nil {
			continue
		}
		result = append(result, e.Name)
	}
	return result, nil
}
