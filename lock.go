package verso

import (
	"sync"

	"github.com/ndlib/verso/store"
)

// keyLocks is a table of mutexes, one per key in use. Entries are created
// on demand and removed once nobody holds or waits for them.
type keyLocks struct {
	mu sync.Mutex          // controls everything below
	m  map[string]*keyLock // locks in use
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (t *keyLocks) lock(name string) func() {
	t.mu.Lock()
	if t.m == nil {
		t.m = make(map[string]*keyLock)
	}
	l, ok := t.m[name]
	if !ok {
		l = &keyLock{}
		t.m[name] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.m, name)
		}
		t.mu.Unlock()
	}
}

// lock gives exclusive write access to key k. If enabled and the store
// supports it, other processes are excluded too. The returned function
// must be called to release the lock.
func (vs *Store) lock(k Key) (func(), error) {
	unlock := vs.locks.lock(k.dir())
	if !vs.lockFiles {
		return unlock, nil
	}
	locker, ok := vs.s.(store.Locker)
	if !ok {
		return unlock, nil
	}
	funlock, err := locker.Lock(k.dir())
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		funlock()
		unlock()
	}, nil
}
