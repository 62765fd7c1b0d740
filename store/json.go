package store

import (
	"encoding/json"
	"io"
	"log"

	"github.com/ndlib/verso/util"
)

// These helpers serialize values as JSON instead of using streams. They do
// not cache the results of serialization/deserialization.

// OpenJSON reads the item having the given key and unserializes it into
// value.
func OpenJSON(s ROStore, key string, value interface{}) error {
	r, _, err := s.Open(key)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(NewReader(r))
	err = dec.Decode(value)
	err2 := r.Close()
	if err == nil {
		err = err2
	} else if err2 != nil {
		log.Println(key, err2)
	}
	return err
}

// CreateJSON saves value under key, which must not already exist. It
// returns the number of bytes written.
func CreateJSON(s Store, key string, value interface{}) (int64, error) {
	return putJSON(s.Create, key, value)
}

// SaveJSON saves value under key, atomically replacing any existing value.
func SaveJSON(s Store, key string, value interface{}) (int64, error) {
	return putJSON(s.Overwrite, key, value)
}

// marshal before opening the writer, since Close always publishes
func putJSON(open func(string) (io.WriteCloser, error), key string, value interface{}) (int64, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	b = append(b, '\n')
	w, err := open(key)
	if err != nil {
		return 0, err
	}
	hw := util.NewHashWriter(w)
	_, err = hw.Write(b)
	err2 := w.Close()
	if err == nil {
		err = err2
	}
	return hw.Size(), err
}
