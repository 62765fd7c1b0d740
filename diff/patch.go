package diff

import (
	"encoding/json"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/pkg/errors"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ndlib/verso/snapshot"
)

// ErrRootPatch means a change replaces the whole document, which has no
// JSON Patch form this package will produce.
var ErrRootPatch = errors.New("diff: cannot express root replacement as a JSON patch")

// Pointer renders segments as an RFC 6901 JSON pointer.
func Pointer(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		if s.IsIndex {
			b.WriteString(strconv.Itoa(s.Index))
			continue
		}
		k := strings.Replace(s.Key, "~", "~0", -1)
		b.WriteString(strings.Replace(k, "/", "~1", -1))
	}
	return b.String()
}

type operation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value *snapshot.Value `json:"value,omitempty"`
}

// JSONPatch converts changes into an RFC 6902 patch. Applying the patch to
// the JSON encoding of a reproduces the JSON encoding of b, when changes
// came from Diff(a, b).
func JSONPatch(changes []Change) (jsonpatch.Patch, error) {
	ops := make([]operation, 0, len(changes))
	for i := 0; i < len(changes); i++ {
		c := changes[i]
		if len(c.Segments) == 0 {
			return nil, ErrRootPatch
		}
		switch c.Kind {
		case Added:
			ops = append(ops, operation{Op: "add", Path: Pointer(c.Segments), Value: &changes[i].New})
		case Changed:
			ops = append(ops, operation{Op: "replace", Path: Pointer(c.Segments), Value: &changes[i].New})
		case Removed:
			// list tail removals must go from the end, or the indices
			// shift under them
			j := i
			for j+1 < len(changes) && isTailRun(changes[j], changes[j+1]) {
				j++
			}
			for k := j; k >= i; k-- {
				ops = append(ops, operation{Op: "remove", Path: Pointer(changes[k].Segments)})
			}
			i = j
		}
	}
	b, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	return jsonpatch.DecodePatch(b)
}

// isTailRun is true if b removes the list item following the one a removes.
func isTailRun(a, b Change) bool {
	if b.Kind != Removed || len(a.Segments) != len(b.Segments) {
		return false
	}
	n := len(a.Segments) - 1
	sa, sb := a.Segments[n], b.Segments[n]
	if !sa.IsIndex || !sb.IsIndex || sb.Index != sa.Index+1 {
		return false
	}
	for i := 0; i < n; i++ {
		if a.Segments[i] != b.Segments[i] {
			return false
		}
	}
	return true
}

// TextPatch returns a character level patch between the old and new
// strings of a Changed string value, in the GNU diff-like text format of
// diff-match-patch. It returns "" for any other change.
func (c Change) TextPatch() string {
	if c.Kind != Changed || c.Old.Kind() != snapshot.String || c.New.Kind() != snapshot.String {
		return ""
	}
	dmp := diffpatch.New()
	diffs := dmp.DiffMain(c.Old.AsString(), c.New.AsString(), false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(c.Old.AsString(), diffs))
}
