package verso

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/verso/history"
	"github.com/ndlib/verso/store"
)

// A Key identifies one piece of content.
type Key struct {
	Type string
	ID   string
}

// Version is the metadata of a single version.
type Version = history.Version

// VersionID numbers the versions of a key, starting from 1.
type VersionID = history.VersionID

func (k Key) String() string {
	return k.Type + "/" + k.ID
}

// dir is the store directory holding the versions of k.
func (k Key) dir() string {
	return k.Type + "/" + k.ID
}

// Valid returns nil if k can be stored. Both parts must be non-empty,
// printable, and free of separators and whitespace. Names starting with a
// dot are reserved.
func (k Key) Valid() error {
	if err := validPart(k.Type); err != nil {
		return errors.Wrapf(ErrInvalidKey, "type %q: %s", k.Type, err.Error())
	}
	if err := validPart(k.ID); err != nil {
		return errors.Wrapf(ErrInvalidKey, "id %q: %s", k.ID, err.Error())
	}
	return nil
}

func validPart(s string) error {
	if strings.Contains(s, "/") {
		return errors.New("contains a slash")
	}
	if strings.HasPrefix(s, ".") {
		return errors.New("begins with a dot")
	}
	return store.ValidKey(s)
}
