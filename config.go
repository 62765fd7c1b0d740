package verso

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/facebookgo/clock"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"

	"github.com/ndlib/verso/store"
	"github.com/ndlib/verso/summary"
)

// Config holds the settings used by Open. The settings with toml tags may
// be read from a file with LoadConfig.
type Config struct {
	Root        string `toml:"root"`         // directory holding the store
	Summary     string `toml:"summary"`      // "file" (the default), "ql", "mysql", or "none"
	SummaryDSN  string `toml:"summary_dsn"`  // QL file name or MySQL dial string
	LockFiles   bool   `toml:"lock_files"`   // also exclude other processes
	ScanWorkers int    `toml:"scan_workers"` // keys walked at once by ScanStats and Reconcile
	SentryDSN   string `toml:"sentry_dsn"`

	Clock   clock.Clock `toml:"-"` // nil means the wall clock
	Logger  *log.Logger `toml:"-"` // nil means the standard logger
	Metrics *Metrics    `toml:"-"`
}

const defaultScanWorkers = 4

// LoadConfig reads a TOML configuration file. Unknown settings are an
// error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		var names []string
		for _, k := range undecoded {
			names = append(names, k.String())
		}
		return cfg, errors.Wrapf(ErrInvalidArgument, "config %s: unknown settings %s", path, strings.Join(names, ", "))
	}
	return cfg, nil
}

// Open creates the root directory if needed and returns a Store over it,
// with the summary backend named in cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "no root directory")
	}
	if cfg.SentryDSN != "" {
		if err := raven.SetDSN(cfg.SentryDSN); err != nil {
			return nil, errors.Wrap(err, "sentry")
		}
	}
	fs, err := store.NewFileSystem(cfg.Root)
	if err != nil {
		return nil, err
	}
	var sum summary.Summary
	switch cfg.Summary {
	case "", "file":
		sum = summary.NewFile(fs)
	case "ql":
		dsn := cfg.SummaryDSN
		if dsn == "" {
			dsn = filepath.Join(cfg.Root, ".summary.ql")
		}
		sum, err = summary.NewQL(dsn)
	case "mysql":
		if cfg.SummaryDSN == "" {
			return nil, errors.Wrap(ErrInvalidArgument, "mysql summary needs summary_dsn")
		}
		sum, err = summary.NewMySQL(cfg.SummaryDSN)
	case "none":
	default:
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown summary %q", cfg.Summary)
	}
	if err != nil {
		return nil, err
	}
	return New(fs, sum, cfg), nil
}
