package store

import (
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

// FileSystem implements the file system based store. Keys map onto paths
// under root. Values are first written into a scratch directory and then
// renamed into place, so a partially written file is never visible under
// its final name.
type FileSystem struct {
	root string
}

const (
	// the subdir to store files while they are being written to.
	scratchdir = ".scratch"
)

var (
	// make sure it implements the Store interface
	_ Store   = &FileSystem{}
	_ Locker  = &FileSystem{}
	_ Sweeper = &FileSystem{}

	// ErrKeyExists indicates an attempt to create a key which already exists
	ErrKeyExists = errors.New("Key already exists")

	// ErrNoKey means the key is not in the store
	ErrNoKey = errors.New("Key does not exist")

	// ErrKeyEmpty means a key, or one of its path elements, is empty
	ErrKeyEmpty = errors.New("Key is empty")

	// ErrKeyContainsDots means a path element is "." or ".."
	ErrKeyContainsDots = errors.New("Key contains a relative path element")

	// ErrKeyContainsBackslash means the key provided contains a '\'
	ErrKeyContainsBackslash = errors.New("Key contains backslash")

	// ErrKeyContainsNonUnicode means the key provided contains a Non Unicode Rune
	ErrKeyContainsNonUnicode = errors.New("Key contains Non-Unicode character")

	// ErrKeyContainsWhiteSpace  means the key provided contains WhiteSpace
	ErrKeyContainsWhiteSpace = errors.New("Key contains White Space")

	// ErrKeyContainsControlChar  means the key provided contains Control Characters
	ErrKeyContainsControlChar = errors.New("Key contains Control  Characters")
)

// NewFileSystem creates a new FileSystem store based at the given root path.
// The root is created if it does not exist.
func NewFileSystem(root string) (*FileSystem, error) {
	err := os.MkdirAll(root, 0775)
	if err != nil {
		return nil, errors.Wrap(err, "store root")
	}
	return &FileSystem{root: root}, nil
}

// Root returns the directory the store lives in.
func (s *FileSystem) Root() string { return s.root }

func (s *FileSystem) fname(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// List returns the children of dir. Only directories are opened and files
// are stat'ed, never read.
func (s *FileSystem) List(dir string) ([]Entry, error) {
	if dir != "" {
		if err := ValidKey(dir); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(s.fname(dir))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	var result []Entry
	for {
		infos, err := f.Readdir(1000)
		if err == io.EOF {
			break
		} else if err != nil {
			log.Println(err)
			raven.CaptureError(err, map[string]string{"Dir": dir})
			return result, err
		}
		for _, fi := range infos {
			result = append(result, Entry{
				Name:    fi.Name(),
				Dir:     fi.IsDir(),
				Size:    fi.Size(),
				ModTime: fi.ModTime(),
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Open returns a reader for the given object along with its size.
func (s *FileSystem) Open(key string) (ReadAtCloser, int64, error) {
	if err := ValidKey(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(s.fname(key))
	if os.IsNotExist(err) {
		return nil, 0, ErrNoKey
	} else if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Stat returns the size and modification time of key.
func (s *FileSystem) Stat(key string) (Entry, error) {
	if err := ValidKey(key); err != nil {
		return Entry{}, err
	}
	fi, err := os.Stat(s.fname(key))
	if os.IsNotExist(err) {
		return Entry{}, ErrNoKey
	} else if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:    fi.Name(),
		Dir:     fi.IsDir(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}, nil
}

// Create creates a new item with the given key, and a writer to allow for
// saving data into the new item. ErrKeyExists is returned if the key is
// already present, either now or when the writer is closed.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	return s.create(key, false)
}

// Overwrite is like Create, except an existing value is silently replaced
// when the writer is closed.
func (s *FileSystem) Overwrite(key string) (io.WriteCloser, error) {
	return s.create(key, true)
}

func (s *FileSystem) create(key string, replace bool) (io.WriteCloser, error) {
	err := ValidKey(key)
	if err != nil {
		return nil, err
	}
	// first set up the eventual home dir of this file
	target := s.fname(key)
	err = os.MkdirAll(filepath.Dir(target), 0775)
	if err != nil {
		return nil, err
	}
	if !replace {
		_, err = os.Stat(target)
		if !os.IsNotExist(err) {
			return nil, ErrKeyExists
		}
	}
	// now set up the scratch location we will temporarily save the file to
	scratch := filepath.Join(s.root, scratchdir)
	err = os.MkdirAll(scratch, 0775)
	if err != nil {
		return nil, err
	}
	w, err := os.CreateTemp(scratch, path.Base(key)+"-*")
	if err != nil {
		return nil, err
	}
	return &moveCloser{f: w, target: target, replace: replace}, nil
}

// track the file so when it is closed, we can move it into the correct place
type moveCloser struct {
	f       *os.File
	target  string
	replace bool
	err     error // first write error
}

func (w *moveCloser) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.f.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}

func (w *moveCloser) Close() error {
	source := w.f.Name()
	err := w.err
	if err == nil {
		err = w.f.Sync()
	}
	err2 := w.f.Close()
	if err == nil {
		err = err2
	}
	if err == nil && !w.replace {
		_, err = os.Stat(w.target)
		if !os.IsNotExist(err) {
			err = ErrKeyExists
		} else {
			err = nil
		}
	}
	if err == nil {
		err = os.Rename(source, w.target)
	}
	if err != nil {
		os.Remove(source)
	}
	return err
}

// Delete the given key from the store. It is not an error if the key doesn't
// exist.
func (s *FileSystem) Delete(key string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	err := os.Remove(s.fname(key))
	// don't report a missing file as an error
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

// Sweep removes scratch files last modified before cutoff. These are left
// behind when a process dies in the middle of a write.
func (s *FileSystem) Sweep(cutoff time.Time) (int, error) {
	entries, err := s.List(scratchdir)
	if err != nil {
		return 0, err
	}
	var n int
	for _, e := range entries {
		if e.Dir || !e.ModTime.Before(cutoff) {
			continue
		}
		err = os.Remove(filepath.Join(s.root, scratchdir, e.Name))
		if err != nil && !os.IsNotExist(err) {
			return n, err
		}
		n++
	}
	return n, nil
}

// ValidKey checks every path element of key.
func ValidKey(key string) error {
	for _, elem := range strings.Split(key, "/") {
		if err := validElement(elem); err != nil {
			return errors.Wrapf(err, "key %q", key)
		}
	}
	return nil
}

// Some Simple Item Key Validations
func validElement(elem string) error {
	if elem == "" {
		return ErrKeyEmpty
	}
	if elem == "." || elem == ".." {
		return ErrKeyContainsDots
	}

	// Valid Unicode
	if !utf8.ValidString(elem) {
		return ErrKeyContainsNonUnicode
	}

	if strings.Contains(elem, `\`) {
		return ErrKeyContainsBackslash
	}

	for _, rune := range elem {
		// No White Space
		if unicode.IsSpace(rune) {
			return ErrKeyContainsWhiteSpace
		}

		// No Control Characters
		if unicode.IsControl(rune) {
			return ErrKeyContainsControlChar
		}
	}

	return nil
}
