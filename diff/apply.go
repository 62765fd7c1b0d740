package diff

import (
	"github.com/pkg/errors"

	"github.com/ndlib/verso/snapshot"
)

// ErrBadPath means a change does not fit the tree it is applied to.
var ErrBadPath = errors.New("diff: path does not match tree")

// Apply returns the tree obtained by applying changes to a. Applying the
// output of Diff(a, b) to a yields a tree equal to b. The input is not
// modified.
//
// A Removed list index truncates the list at that index, matching the
// positional comparison Diff uses: removals only ever happen at the tail.
func Apply(a snapshot.Value, changes []Change) (snapshot.Value, error) {
	var err error
	for _, c := range changes {
		a, err = applyOne(a, c.Segments, c)
		if err != nil {
			return snapshot.Value{}, errors.Wrapf(err, "at %q", c.Path)
		}
	}
	return a, nil
}

func applyOne(root snapshot.Value, segs []Segment, c Change) (snapshot.Value, error) {
	if len(segs) == 0 {
		if c.Kind != Changed {
			return root, ErrBadPath
		}
		return c.New, nil
	}
	seg, rest := segs[0], segs[1:]
	if seg.IsIndex {
		if root.Kind() != snapshot.List {
			return root, ErrBadPath
		}
		if len(rest) == 0 {
			return setIndex(root, seg.Index, c)
		}
		child, ok := root.Index(seg.Index)
		if !ok {
			return root, ErrBadPath
		}
		child, err := applyOne(child, rest, c)
		if err != nil {
			return root, err
		}
		root, _ = root.SetIndex(seg.Index, child)
		return root, nil
	}
	if root.Kind() != snapshot.Map {
		return root, ErrBadPath
	}
	if len(rest) == 0 {
		if c.Kind == Removed {
			return root.Without(seg.Key), nil
		}
		return root.With(seg.Key, c.New), nil
	}
	child, ok := root.Get(seg.Key)
	if !ok {
		return root, ErrBadPath
	}
	child, err := applyOne(child, rest, c)
	if err != nil {
		return root, err
	}
	return root.With(seg.Key, child), nil
}

func setIndex(list snapshot.Value, i int, c Change) (snapshot.Value, error) {
	switch c.Kind {
	case Removed:
		// once the tail is truncated, later removals in it are no-ops
		return list.Truncate(i), nil
	case Added:
		if i != list.Len() {
			return list, ErrBadPath
		}
	case Changed:
		if i >= list.Len() {
			return list, ErrBadPath
		}
	}
	out, ok := list.SetIndex(i, c.New)
	if !ok {
		return list, ErrBadPath
	}
	return out, nil
}
