package verso

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"

	"github.com/ndlib/verso/diff"
	"github.com/ndlib/verso/history"
	"github.com/ndlib/verso/snapshot"
	"github.com/ndlib/verso/store"
	"github.com/ndlib/verso/summary"
)

func value(t *testing.T, s string) snapshot.Value {
	v, err := snapshot.Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode %s: %s", s, err.Error())
	}
	return v
}

// newTestStore returns a Store over a memory store with a mock clock.
func newTestStore() (*Store, *store.Memory, *clock.Mock) {
	mem := store.NewMemory()
	mock := clock.NewMock()
	mock.Add(1000 * time.Hour)
	vs := New(mem, summary.NewFile(mem), Config{Clock: mock})
	return vs, mem, mock
}

func create(t *testing.T, vs *Store, k Key, data string) VersionID {
	id, err := vs.CreateVersion(k, value(t, data), "tester", "")
	if err != nil {
		t.Fatalf("create %s: %s", k, err.Error())
	}
	return id
}

func ids(list []Version) []VersionID {
	var out []VersionID
	for _, v := range list {
		out = append(out, v.ID)
	}
	return out
}

var page = Key{Type: "page", ID: "42"}

func TestRoundTrip(t *testing.T) {
	vs, _, mock := newTestStore()
	var table = []string{
		`{"title":"Home","blocks":[{"kind":"text","body":"hello"},{"kind":"image","src":"a.png"}]}`,
		`[]`,
		`null`,
		`{"n":12345678901234567890,"f":1.25,"b":false,"s":"é"}`,
	}
	for i, data := range table {
		id, err := vs.CreateVersion(page, value(t, data), "alice", fmt.Sprintf("edit %d", i))
		if err != nil {
			t.Fatalf("received %s", err.Error())
		}
		if id != VersionID(i+1) {
			t.Errorf("Got id %d, expected %d", id, i+1)
		}
		result, err := vs.GetVersion(page, id)
		if err != nil {
			t.Fatalf("received %s", err.Error())
		}
		if !snapshot.Equal(result, value(t, data)) {
			t.Errorf("Got %s, expected %s", result, data)
		}
		info, err := vs.VersionInfo(page, id)
		if err != nil {
			t.Fatalf("received %s", err.Error())
		}
		if info.Author != "alice" || info.Comment != fmt.Sprintf("edit %d", i) {
			t.Errorf("Got %+v", info)
		}
		if info.Hash != value(t, data).Hash() || info.Size == 0 {
			t.Errorf("Got hash %s size %d", info.Hash, info.Size)
		}
		if !info.Created.Equal(mock.Now()) {
			t.Errorf("Got created %v, expected %v", info.Created, mock.Now())
		}
	}
}

func TestListOrder(t *testing.T) {
	vs, _, mock := newTestStore()
	list, err := vs.ListVersions(page)
	if err != nil || len(list) != 0 {
		t.Errorf("Got %v, %v, expected an empty list", list, err)
	}
	for i := 0; i < 3; i++ {
		create(t, vs, page, `{"i":1}`)
		mock.Add(time.Minute)
	}
	// two versions with the same creation time are ordered by id
	create(t, vs, page, `{"i":2}`)
	create(t, vs, page, `{"i":3}`)

	list, err = vs.ListVersions(page)
	if err != nil {
		t.Fatal(err)
	}
	got := fmt.Sprint(ids(list))
	if got != "[5 4 3 2 1]" {
		t.Errorf("Got %s, expected [5 4 3 2 1]", got)
	}
	latest, err := vs.LatestVersion(page)
	if err != nil || latest.ID != 5 {
		t.Errorf("Got %v, %v, expected version 5", latest, err)
	}
	if _, err := vs.LatestVersion(Key{Type: "page", ID: "none"}); !IsNotFound(err) {
		t.Errorf("Got %v, expected not found", err)
	}
}

func TestTitleScenario(t *testing.T) {
	vs, _, mock := newTestStore()
	v1 := create(t, vs, page, `{"title":"A"}`)
	mock.Add(time.Second)
	v2 := create(t, vs, page, `{"title":"B"}`)

	changes, err := vs.DiffVersions(page, v1, v2)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("Got %d changes, expected 1", len(changes))
	}
	c := changes[0]
	if c.Path != "title" || c.Kind != diff.Changed || c.Old.AsString() != "A" || c.New.AsString() != "B" {
		t.Errorf("Got %+v", c)
	}

	// reflexive
	changes, err = vs.DiffVersions(page, v2, v2)
	if err != nil || len(changes) != 0 {
		t.Errorf("Got %v, %v, expected no changes", changes, err)
	}

	mock.Add(time.Second)
	v3, err := vs.Restore(page, v1, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if v3 != 3 {
		t.Errorf("Got %d, expected 3", v3)
	}
	data, _ := vs.GetVersion(page, v3)
	if !snapshot.Equal(data, value(t, `{"title":"A"}`)) {
		t.Errorf("Got %s, expected {\"title\":\"A\"}", data)
	}
	info, _ := vs.VersionInfo(page, v3)
	if info.Comment != "restored from version 1" || info.Author != "bob" {
		t.Errorf("Got %+v", info)
	}
}

func TestReconstruction(t *testing.T) {
	vs, _, _ := newTestStore()
	a := create(t, vs, page, `{"blocks":[{"t":"x"},{"t":"y"},{"t":"z"}],"meta":{"draft":true}}`)
	b := create(t, vs, page, `{"blocks":[{"t":"y"}],"meta":{"draft":false,"tags":["a"]}}`)
	changes, err := vs.DiffVersions(page, a, b)
	if err != nil {
		t.Fatal(err)
	}
	from, _ := vs.GetVersion(page, a)
	to, _ := vs.GetVersion(page, b)
	result, err := diff.Apply(from, changes)
	if err != nil {
		t.Fatal(err)
	}
	if !snapshot.Equal(result, to) {
		t.Errorf("Got %s, expected %s", result, to)
	}
}

func TestDiffFailure(t *testing.T) {
	vs, _, _ := newTestStore()
	v1 := create(t, vs, page, `{}`)
	_, err := vs.DiffVersions(page, v1, 9)
	if !errors.Is(err, ErrDiffFailure) || !IsNotFound(err) {
		t.Errorf("Got %v, expected a diff failure caused by a missing version", err)
	}
	if errors.Cause(err) != ErrDiffFailure {
		t.Errorf("Got cause %v, expected %v", errors.Cause(err), ErrDiffFailure)
	}
}

func TestNotFound(t *testing.T) {
	vs, _, _ := newTestStore()
	create(t, vs, page, `{}`)
	var table = []struct {
		k  Key
		id VersionID
	}{
		{page, 2},
		{page, 0},
		{page, -1},
		{Key{Type: "page", ID: "7"}, 1},
		{Key{Type: "layout", ID: "42"}, 1},
	}
	for _, test := range table {
		if _, err := vs.GetVersion(test.k, test.id); !IsNotFound(err) {
			t.Errorf("GetVersion(%s, %d) got %v, expected not found", test.k, test.id, err)
		}
		if _, err := vs.VersionInfo(test.k, test.id); !IsNotFound(err) {
			t.Errorf("VersionInfo(%s, %d) got %v, expected not found", test.k, test.id, err)
		}
		if _, err := vs.Restore(test.k, test.id, ""); !IsNotFound(err) {
			t.Errorf("Restore(%s, %d) got %v, expected not found", test.k, test.id, err)
		}
	}
}

func TestInvalidKey(t *testing.T) {
	vs, _, _ := newTestStore()
	var table = []Key{
		{"", "1"},
		{"page", ""},
		{"pa/ge", "1"},
		{"page", "../1"},
		{".scratch", "1"},
		{"page", ".lock"},
		{"page", "a b"},
		{"page", `a\b`},
		{"page", "a\x00"},
		{"page", string([]byte{0xff, 0xfe})},
	}
	for _, k := range table {
		if _, err := vs.CreateVersion(k, snapshot.NullValue(), "", ""); !IsInvalidKey(err) {
			t.Errorf("CreateVersion(%q) got %v, expected invalid key", k, err)
		}
		if _, err := vs.GetVersion(k, 1); !IsInvalidKey(err) {
			t.Errorf("GetVersion(%q) got %v, expected invalid key", k, err)
		}
		if _, err := vs.ListVersions(k); !IsInvalidKey(err) {
			t.Errorf("ListVersions(%q) got %v, expected invalid key", k, err)
		}
		if _, err := vs.DeleteVersion(k, 1); !IsInvalidKey(err) {
			t.Errorf("DeleteVersion(%q) got %v, expected invalid key", k, err)
		}
	}
	if _, err := vs.ContentIDs("a/b"); !IsInvalidKey(err) {
		t.Errorf("Got %v, expected invalid key", err)
	}
}

func TestDelete(t *testing.T) {
	vs, _, _ := newTestStore()
	create(t, vs, page, `{"a":1}`)
	create(t, vs, page, `{"a":2}`)

	var table = []struct {
		id     VersionID
		result bool
		remain string
	}{
		{3, false, "[2 1]"},
		{2, true, "[1]"},
		{2, false, "[1]"},
		{1, true, "[]"}, // the last version may go too
	}
	for _, test := range table {
		ok, err := vs.DeleteVersion(page, test.id)
		if err != nil {
			t.Fatal(err)
		}
		if ok != test.result {
			t.Errorf("Delete %d got %v, expected %v", test.id, ok, test.result)
		}
		list, _ := vs.ListVersions(page)
		if got := fmt.Sprint(ids(list)); got != test.remain {
			t.Errorf("After deleting %d got %s, expected %s", test.id, got, test.remain)
		}
	}
	// ids are not reused
	if id := create(t, vs, page, `{"a":3}`); id != 3 {
		t.Errorf("Got %d, expected 3", id)
	}
}

func TestConcurrentCreate(t *testing.T) {
	const n = 25
	vs, _, _ := newTestStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[VersionID]bool)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := vs.CreateVersion(page, snapshot.Int(int64(i)), "", "")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	for i := 1; i <= n; i++ {
		if !seen[VersionID(i)] {
			t.Errorf("id %d was not allocated", i)
		}
	}
	list, _ := vs.ListVersions(page)
	if len(list) != n || len(seen) != n {
		t.Errorf("Got %d versions and %d ids, expected %d", len(list), len(seen), n)
	}
}

func TestConcurrentCreateFiles(t *testing.T) {
	const n = 10
	vs, err := Open(Config{Root: t.TempDir(), LockFiles: true})
	if err != nil {
		t.Fatal(err)
	}
	defer vs.Close()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := vs.CreateVersion(page, snapshot.Int(int64(i)), "", ""); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	list, _ := vs.ListVersions(page)
	if len(list) != n {
		t.Errorf("Got %d versions, expected %d", len(list), n)
	}
	// creation times never decrease with the id
	for i, v := range list {
		if v.ID != VersionID(n-i) {
			t.Errorf("Got version %d at position %d, expected %d", v.ID, i, n-i)
		}
	}
}

func TestRepairOrphans(t *testing.T) {
	vs, mem, _ := newTestStore()
	create(t, vs, page, `{"a":1}`)
	create(t, vs, page, `{"a":2}`)
	create(t, vs, page, `{"a":3}`)

	// version 2 loses its file, version 9 appears without an entry
	mem.Delete("page/42/" + history.FileName(2))
	env := history.Envelope{ID: 9, Created: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Author: "restore-job", Data: value(t, `{"a":9}`)}
	if _, err := store.CreateJSON(mem, "page/42/"+history.FileName(9), env); err != nil {
		t.Fatal(err)
	}

	list, err := vs.ListVersions(page)
	if err != nil {
		t.Fatal(err)
	}
	if got := fmt.Sprint(ids(list)); got != "[9 3 1]" {
		t.Errorf("Got %s, expected [9 3 1]", got)
	}
	if list[0].Author != "restore-job" || list[0].Size == 0 {
		t.Errorf("adopted version has metadata %+v", list[0])
	}
	if _, err := vs.VersionInfo(page, 2); !IsNotFound(err) {
		t.Errorf("Got %v, expected not found", err)
	}

	// the ledger on disk was rewritten
	var l history.Ledger
	if err := store.OpenJSON(mem, "page/42/"+history.LedgerName, &l); err != nil {
		t.Fatal(err)
	}
	if len(l.Versions) != 3 || l.Next != 10 {
		t.Errorf("Got ledger %+v, expected 3 versions and next 10", l)
	}
	if id := create(t, vs, page, `{}`); id != 10 {
		t.Errorf("Got %d, expected 10", id)
	}
}

func TestMissingLedger(t *testing.T) {
	vs, mem, _ := newTestStore()
	create(t, vs, page, `{"a":1}`)
	create(t, vs, page, `{"a":2}`)
	mem.Delete("page/42/" + history.LedgerName)

	list, err := vs.ListVersions(page)
	if err != nil {
		t.Fatal(err)
	}
	if got := fmt.Sprint(ids(list)); got != "[2 1]" {
		t.Errorf("Got %s, expected [2 1]", got)
	}
	if id := create(t, vs, page, `{}`); id != 3 {
		t.Errorf("Got %d, expected 3", id)
	}
}

func TestUndecodableSnapshot(t *testing.T) {
	vs, mem, _ := newTestStore()
	create(t, vs, page, `{"a":1}`)
	w, _ := mem.Create("page/42/" + history.FileName(2))
	w.Write([]byte("garbage"))
	w.Close()

	if _, err := vs.GetVersion(page, 2); !IsNotFound(err) {
		t.Errorf("Got %v, expected not found", err)
	}
	info, err := vs.VersionInfo(page, 2)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size != 7 {
		t.Errorf("Got size %d, expected 7", info.Size)
	}
}

func TestContentListing(t *testing.T) {
	vs, _, _ := newTestStore()
	create(t, vs, Key{"page", "2"}, `{}`)
	create(t, vs, Key{"page", "1"}, `{}`)
	create(t, vs, Key{"layout", "home"}, `{}`)

	types, err := vs.ContentTypes()
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(types) != "[layout page]" {
		t.Errorf("Got %v, expected [layout page]", types)
	}
	list, err := vs.ContentIDs("page")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(list) != "[1 2]" {
		t.Errorf("Got %v, expected [1 2]", list)
	}
	list, err = vs.ContentIDs("article")
	if err != nil || len(list) != 0 {
		t.Errorf("Got %v, %v, expected nothing", list, err)
	}
}

// refusingStore fails every Create while refuse is set.
type refusingStore struct {
	store.Store
	refuse bool
}

func (r *refusingStore) Create(key string) (io.WriteCloser, error) {
	if r.refuse {
		return nil, errors.New("disk full")
	}
	return r.Store.Create(key)
}

func TestWriteFailure(t *testing.T) {
	mem := store.NewMemory()
	rs := &refusingStore{Store: mem}
	vs := New(rs, summary.NewFile(mem), Config{Clock: clock.NewMock()})
	create(t, vs, page, `{"title":"A"}`)
	before, _ := vs.StorageStats()

	rs.refuse = true
	_, err := vs.CreateVersion(page, value(t, `{"title":"B"}`), "tester", "")
	if !IsWriteFailure(err) {
		t.Errorf("Got %v, expected a write failure", err)
	}
	rs.refuse = false

	list, err := vs.ListVersions(page)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(list); len(got) != 1 || got[0] != 1 {
		t.Errorf("Got %v, expected [1]", got)
	}
	after, _ := vs.StorageStats()
	if !summary.Equal(after, before) {
		t.Errorf("Got %+v, expected %+v", after, before)
	}
	// the failed attempt does not use up an id
	if id := create(t, vs, page, `{"title":"B"}`); id != 2 {
		t.Errorf("Got %d, expected 2", id)
	}
}

func TestUnencodableData(t *testing.T) {
	vs, mem, _ := newTestStore()
	data := snapshot.MapValue(map[string]snapshot.Value{"title": snapshot.StringValue("bad \xff")})
	_, err := vs.CreateVersion(page, data, "tester", "")
	if !IsWriteFailure(err) {
		t.Errorf("Got %v, expected a write failure", err)
	}
	if _, err := mem.Stat("page/42/" + history.FileName(1)); err != store.ErrNoKey {
		t.Errorf("Got %v, expected %v", err, store.ErrNoKey)
	}
	list, _ := vs.ListVersions(page)
	if len(list) != 0 {
		t.Errorf("Got %v, expected no versions", ids(list))
	}
}

func TestNullSnapshot(t *testing.T) {
	vs, _, _ := newTestStore()
	id, err := vs.CreateVersion(page, snapshot.NullValue(), "tester", "")
	if err != nil {
		t.Fatal(err)
	}
	result, err := vs.GetVersion(page, id)
	if err != nil {
		t.Fatalf("received %s", err.Error())
	}
	if result.Kind() != snapshot.Null {
		t.Errorf("Got %s, expected null", result)
	}
}

func TestHashMismatch(t *testing.T) {
	vs, mem, _ := newTestStore()
	env := history.Envelope{
		ID:   1,
		Hash: snapshot.StringValue("something else").Hash(),
		Data: value(t, `{"title":"A"}`),
	}
	if _, err := store.CreateJSON(mem, "page/42/"+history.FileName(1), env); err != nil {
		t.Fatal(err)
	}
	// the snapshot is still returned
	result, err := vs.GetVersion(page, 1)
	if err != nil {
		t.Fatalf("received %s", err.Error())
	}
	if !snapshot.Equal(result, env.Data) {
		t.Errorf("Got %s, expected %s", result, env.Data)
	}
}
