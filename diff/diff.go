// Package diff computes structural differences between two snapshot trees.
//
// The walk visits the union of keys (for maps) or indices (for lists) at
// each nesting level, starting at the root. Lists are compared by position:
// item i of one side is compared with item i of the other, and the longer
// side contributes additions or removals at its tail. No attempt is made to
// match moved or inserted items by content.
//
// Changes are reported depth first, parents before children, with map keys
// in sorted order and list indices ascending, so the output is deterministic.
package diff

import (
	"strconv"
	"strings"

	"github.com/ndlib/verso/snapshot"
)

// Kind is the type of a single change.
type Kind int

const (
	Added Kind = iota + 1
	Removed
	Changed
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText lets a Kind serialize as its name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// A Segment is one step of a path: either a map key or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// A Change describes one difference. Old is unset for Added, and New is
// unset for Removed.
type Change struct {
	Path     string         `json:"path"`
	Segments []Segment      `json:"-"`
	Kind     Kind           `json:"kind"`
	Old      snapshot.Value `json:"old"`
	New      snapshot.Value `json:"new"`
}

// FormatPath renders segments the way Change.Path does: map keys are
// joined by ".", list indices are written as "[i]". The root is "".
func FormatPath(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// Diff returns the changes that turn a into b. Identical trees give an
// empty result.
func Diff(a, b snapshot.Value) []Change {
	w := &walker{}
	w.walk(a, b)
	return w.out
}

type walker struct {
	path []Segment
	out  []Change
}

func (w *walker) emit(kind Kind, from, to snapshot.Value) {
	segs := make([]Segment, len(w.path))
	copy(segs, w.path)
	w.out = append(w.out, Change{
		Path:     FormatPath(segs),
		Segments: segs,
		Kind:     kind,
		Old:      from,
		New:      to,
	})
}

func (w *walker) walk(a, b snapshot.Value) {
	switch {
	case a.Kind() == snapshot.Map && b.Kind() == snapshot.Map:
		w.walkMap(a, b)
	case a.Kind() == snapshot.List && b.Kind() == snapshot.List:
		w.walkList(a, b)
	case !snapshot.Equal(a, b):
		w.emit(Changed, a, b)
	}
}

func (w *walker) walkMap(a, b snapshot.Value) {
	for _, k := range unionKeys(a, b) {
		x, inA := a.Get(k)
		y, inB := b.Get(k)
		w.path = append(w.path, Segment{Key: k})
		switch {
		case !inB:
			w.emit(Removed, x, snapshot.Value{})
		case !inA:
			w.emit(Added, snapshot.Value{}, y)
		default:
			w.walk(x, y)
		}
		w.path = w.path[:len(w.path)-1]
	}
}

func (w *walker) walkList(a, b snapshot.Value) {
	n := a.Len()
	if b.Len() > n {
		n = b.Len()
	}
	for i := 0; i < n; i++ {
		x, inA := a.Index(i)
		y, inB := b.Index(i)
		w.path = append(w.path, Segment{Index: i, IsIndex: true})
		switch {
		case !inB:
			w.emit(Removed, x, snapshot.Value{})
		case !inA:
			w.emit(Added, snapshot.Value{}, y)
		default:
			w.walk(x, y)
		}
		w.path = w.path[:len(w.path)-1]
	}
}

// unionKeys merges the sorted key lists of two maps.
func unionKeys(a, b snapshot.Value) []string {
	ka, kb := a.Keys(), b.Keys()
	out := make([]string, 0, len(ka)+len(kb))
	i, j := 0, 0
	for i < len(ka) || j < len(kb) {
		switch {
		case j >= len(kb) || (i < len(ka) && ka[i] < kb[j]):
			out = append(out, ka[i])
			i++
		case i >= len(ka) || kb[j] < ka[i]:
			out = append(out, kb[j])
			j++
		default:
			out = append(out, ka[i])
			i++
			j++
		}
	}
	return out
}
