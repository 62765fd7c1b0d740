package verso

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ndlib/verso/snapshot"
)

func isInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

func writeFile(t *testing.T, name, content string) string {
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfig(t *testing.T) {
	p := writeFile(t, "verso.toml", `
root = "/var/lib/verso"
summary = "ql"
summary_dsn = "/var/lib/verso.ql"
lock_files = true
scan_workers = 8
`)
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "/var/lib/verso" || cfg.Summary != "ql" || cfg.SummaryDSN != "/var/lib/verso.ql" ||
		!cfg.LockFiles || cfg.ScanWorkers != 8 {
		t.Errorf("Got %+v", cfg)
	}

	p = writeFile(t, "bad.toml", "root = \"x\"\nroots = \"y\"\n")
	if _, err := LoadConfig(p); !isInvalidArgument(err) {
		t.Errorf("Got %v, expected an unknown setting error", err)
	}
	p = writeFile(t, "broken.toml", "root = \n")
	if _, err := LoadConfig(p); err == nil {
		t.Errorf("expected a syntax error")
	}
}

func TestOpen(t *testing.T) {
	var table = []struct {
		cfg Config
		ok  bool
	}{
		{Config{}, false},
		{Config{Root: t.TempDir()}, true},
		{Config{Root: t.TempDir(), Summary: "none"}, true},
		{Config{Root: t.TempDir(), Summary: "ql"}, true},
		{Config{Root: t.TempDir(), Summary: "mysql"}, false},
		{Config{Root: t.TempDir(), Summary: "redis"}, false},
	}
	for _, test := range table {
		vs, err := Open(test.cfg)
		if (err == nil) != test.ok {
			t.Errorf("Open(%+v) got %v, expected ok %v", test.cfg, err, test.ok)
		}
		if err != nil {
			continue
		}
		create(t, vs, page, `{"x":1}`)
		st, err := vs.StorageStats()
		if err != nil || st.TotalVersions != 1 {
			t.Errorf("Open(%+v) stats %+v, %v", test.cfg, st, err)
		}
		vs.Close()
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	vs, _, _ := newTestStore()
	vs.metrics = m

	a := create(t, vs, page, `{"a":1}`)
	b := create(t, vs, page, `{"a":2,"b":3}`)
	vs.DeleteVersion(page, 99)
	vs.DeleteVersion(page, a)
	vs.CreateVersion(Key{"bad/type", "1"}, snapshot.NullValue(), "", "")
	vs.DiffVersions(page, b, b)

	var table = []struct {
		name string
		c    prometheus.Collector
		goal float64
	}{
		{"created", m.created, 2},
		{"deleted", m.deleted, 1},
		{"write failures", m.writeFailures, 0},
		{"repairs", m.repairs, 0},
	}
	for _, test := range table {
		if v := testutil.ToFloat64(test.c); v != test.goal {
			t.Errorf("%s: Got %v, expected %v", test.name, v, test.goal)
		}
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 5 {
		t.Errorf("Got %d metrics (%v), expected 5", n, err)
	}

	// a nil Metrics is fine
	var none *Metrics
	none.incCreated()
	none.observeDiff(3)
}
