package history

import (
	"testing"
	"time"

	"github.com/ndlib/verso/snapshot"
	"github.com/ndlib/verso/store"
)

func TestParseFileName(t *testing.T) {
	var table = []struct {
		input  string
		output VersionID
	}{
		{"00000001.json", 1},
		{"00012345.json", 12345},
		{"123456789.json", 123456789},
		{"history.json", 0},
		{"00000001.txt", 0},
		{"0001.json", 0},
		{"00000000.json", 0},
		{"-0000001.json", 0},
		{".lock", 0},
	}
	for _, test := range table {
		id := ParseFileName(test.input)
		if id != test.output {
			t.Errorf("For %s got %d, expected %d", test.input, id, test.output)
		}
	}
	if name := FileName(42); name != "00000042.json" || ParseFileName(name) != 42 {
		t.Errorf("Got %s, expected 00000042.json", name)
	}
}

func TestNextID(t *testing.T) {
	l := &Ledger{}
	for i := 1; i <= 3; i++ {
		id := l.NextID()
		if id != VersionID(i) {
			t.Errorf("Got %d, expected %d", id, i)
		}
		l.Append(Version{ID: id})
	}
	// deleting the newest version never frees its id
	l.Remove(3)
	if id := l.NextID(); id != 4 {
		t.Errorf("Got %d, expected %d", id, 4)
	}
	// a stale counter is corrected by the entries
	l = &Ledger{Next: 2, Versions: []Version{{ID: 7}}}
	if id := l.NextID(); id != 8 {
		t.Errorf("Got %d, expected %d", id, 8)
	}
}

func writeVersion(t *testing.T, s store.Store, dir string, id VersionID, title string) {
	env := Envelope{
		ID:      id,
		Created: time.Date(2024, 1, int(id), 0, 0, 0, 0, time.UTC),
		Author:  "tester",
		Data:    snapshot.MapValue(map[string]snapshot.Value{"title": snapshot.StringValue(title)}),
	}
	if _, err := store.CreateJSON(s, dir+"/"+FileName(id), env); err != nil {
		t.Fatal(err)
	}
}

func TestReconcile(t *testing.T) {
	s := store.NewMemory()
	x := New(s)
	writeVersion(t, s, "page/1", 1, "A")
	writeVersion(t, s, "page/1", 2, "B")
	writeVersion(t, s, "page/1", 4, "D")

	// ledger knows 1, 2 and 3; 3 has no file, 4 has no entry
	l := &Ledger{Next: 4, Versions: []Version{
		{ID: 1, File: FileName(1)},
		{ID: 2, File: FileName(2)},
		{ID: 3, File: FileName(3)},
	}}
	x.Save("page/1", l)

	current, dirty, err := x.Current("page/1")
	if err != nil {
		t.Fatal(err)
	}
	if !dirty {
		t.Errorf("expected ledger to be dirty")
	}
	var ids []VersionID
	for _, v := range current.Versions {
		ids = append(ids, v.ID)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 4 {
		t.Errorf("Got %v, expected [1 2 4]", ids)
	}
	if current.Next != 5 {
		t.Errorf("Got next %d, expected 5", current.Next)
	}
	adopted := current.Versions[2]
	if adopted.Author != "tester" || adopted.Size == 0 {
		t.Errorf("adopted version has metadata %+v", adopted)
	}

	// once saved, the ledger is clean
	x.Save("page/1", current)
	_, dirty, _ = x.Current("page/1")
	if dirty {
		t.Errorf("expected a clean ledger after saving")
	}
}

func TestCorruptLedger(t *testing.T) {
	s := store.NewMemory()
	x := New(s)
	writeVersion(t, s, "page/1", 1, "A")
	w, _ := s.Overwrite("page/1/" + LedgerName)
	w.Write([]byte("{not json"))
	w.Close()

	if _, err := x.Load("page/1"); err == nil {
		t.Errorf("expected an error loading a corrupt ledger")
	}
	l, dirty, err := x.View("page/1")
	if err != nil {
		t.Fatalf("received %s", err.Error())
	}
	if !dirty || len(l.Versions) != 1 || l.Versions[0].ID != 1 {
		t.Errorf("Got %+v (dirty %v), expected rescanned version 1", l, dirty)
	}
}

func TestUndecodableSnapshot(t *testing.T) {
	s := store.NewMemory()
	x := New(s)
	w, _ := s.Create("page/1/" + FileName(3))
	w.Write([]byte("garbage"))
	w.Close()

	l, err := x.Scan("page/1")
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Versions) != 1 || l.Versions[0].ID != 3 || l.Versions[0].Size != 7 {
		t.Errorf("Got %+v, expected inferred version 3 of size 7", l.Versions)
	}
	if l.Versions[0].Created.IsZero() {
		t.Errorf("expected creation time inferred from the file")
	}
}

func TestMissingDirectory(t *testing.T) {
	x := New(store.NewMemory())
	l, dirty, err := x.View("page/none")
	if err != nil || dirty || len(l.Versions) != 0 {
		t.Errorf("Got %+v, %v, %v, expected an empty clean ledger", l, dirty, err)
	}
}

func TestReconcileVanishedFile(t *testing.T) {
	s := store.NewMemory()
	x := New(s)
	writeVersion(t, s, "page/1", 1, "A")
	writeVersion(t, s, "page/1", 2, "B")
	files, err := x.Files("page/1")
	if err != nil {
		t.Fatal(err)
	}
	// version 2 is deleted between listing and adoption
	s.Delete("page/1/" + FileName(2))

	l, changed := x.Reconcile("page/1", &Ledger{}, files)
	if !changed {
		t.Errorf("expected the ledger to change")
	}
	if len(l.Versions) != 1 || l.Versions[0].ID != 1 {
		t.Errorf("Got %+v, expected only version 1", l.Versions)
	}
	if l.Versions[0].Author != "tester" {
		t.Errorf("Got author %q, expected %q", l.Versions[0].Author, "tester")
	}
}
