/*
Package history keeps the ledger of versions for each content key.

A content key owns one directory in a store.Store. The directory holds one
snapshot file per version, named by the zero padded version number (e.g.
"00000012.json"), and one ledger file, "history.json", listing the metadata
of every version in creation order together with the next id to allocate.

The ledger is the cheap way to list versions, but the snapshot files are
authoritative. Whenever the two disagree, Reconcile rebuilds the ledger from
the directory contents: entries without a file are dropped, and files
without an entry are adopted using the metadata recorded in the file
itself, or its size and modification time if the file cannot be decoded.

Version ids are numbered sequentially starting from 1 and are never reused
for a key, even after the version has been deleted, as long as the ledger
survives.
*/
package history

import (
	"time"

	"github.com/ndlib/verso/snapshot"
)

// VersionID identifies a version of a content key
type VersionID int

// Version contains the metadata on a single version. It is immutable once
// created.
type Version struct {
	ID      VersionID `json:"id"`
	Created time.Time `json:"created"`
	Author  string    `json:"author,omitempty"`
	Comment string    `json:"comment,omitempty"`
	Hash    string    `json:"hash,omitempty"` // sha256 of the canonical data encoding
	Size    int64     `json:"size"`           // size of the snapshot file in bytes
	File    string    `json:"file"`           // name of the snapshot file in the key's directory
}

// Ledger is the persisted index for one content key.
type Ledger struct {
	Next     VersionID `json:"next"`     // the next id to allocate
	Versions []Version `json:"versions"` // sorted by id
}

// Envelope is the serialized form of a snapshot file.
type Envelope struct {
	ID      VersionID      `json:"id"`
	Created time.Time      `json:"created"`
	Author  string         `json:"author,omitempty"`
	Comment string         `json:"comment,omitempty"`
	Hash    string         `json:"hash,omitempty"`
	Data    snapshot.Value `json:"data"`
}

// Meta returns the version metadata recorded in the envelope.
func (e *Envelope) Meta() Version {
	return Version{
		ID:      e.ID,
		Created: e.Created,
		Author:  e.Author,
		Comment: e.Comment,
		Hash:    e.Hash,
		File:    FileName(e.ID),
	}
}

// Find returns the position of version id in the ledger, or -1.
func (l *Ledger) Find(id VersionID) int {
	for i := range l.Versions {
		if l.Versions[i].ID == id {
			return i
		}
	}
	return -1
}

// NextID allocates a new version id. It is no less than the counter and
// greater than every id in the ledger.
func (l *Ledger) NextID() VersionID {
	n := l.Next
	if n < 1 {
		n = 1
	}
	for _, v := range l.Versions {
		if v.ID >= n {
			n = v.ID + 1
		}
	}
	l.Next = n + 1
	return n
}

// Append adds v to the end of the ledger.
func (l *Ledger) Append(v Version) {
	l.Versions = append(l.Versions, v)
	if v.ID >= l.Next {
		l.Next = v.ID + 1
	}
}

// Remove drops version id from the ledger and returns whether it was
// present. The counter is unchanged.
func (l *Ledger) Remove(id VersionID) bool {
	i := l.Find(id)
	if i < 0 {
		return false
	}
	l.Versions = append(l.Versions[:i:i], l.Versions[i+1:]...)
	return true
}
