package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// A HashWriter wraps an io.Writer and also calculates the SHA256 hash and
// the number of bytes written.
type HashWriter struct {
	w      io.Writer
	sha256 hash.Hash
	n      int64
}

// NewHashWriter returns a HashWriter wrapping w.
func NewHashWriter(w io.Writer) *HashWriter {
	hw := &HashWriter{sha256: sha256.New()}
	hw.w = io.MultiWriter(w, hw.sha256)
	return hw
}

// NewHashWriterPlain return a HashWriter that does not wrap an output stream.
// It will just compute the checksum of the data written to it.
func NewHashWriterPlain() *HashWriter {
	hw := &HashWriter{sha256: sha256.New()}
	hw.w = hw.sha256
	return hw
}

func (hw *HashWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.n += int64(n)
	return n, err
}

// Size is the number of bytes written so far.
func (hw *HashWriter) Size() int64 {
	return hw.n
}

// SHA256 returns the hex encoded digest of everything written so far.
func (hw *HashWriter) SHA256() string {
	return hex.EncodeToString(hw.sha256.Sum(nil))
}

// CheckSHA256 returns the SHA256 hash for this writer, and compares it for
// equality with the goal hash passed in. If the goal is empty then it is
// treated as matching, and true is returned.
func (hw *HashWriter) CheckSHA256(goal []byte) ([]byte, bool) {
	computed := hw.sha256.Sum(nil)
	ok := len(goal) == 0 || bytes.Equal(goal, computed)
	return computed, ok
}
