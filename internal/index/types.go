// Package index builds and serves the multi-key document index of a repository tree.
package index

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/vault-md/textrepo/internal/meta"
)

var (
	// ErrNotFound indicates an identity or selector matched no document.
	ErrNotFound = errors.New("index: no matching document")
	// ErrAmbiguous indicates a selector matched more than one document where one was required.
	ErrAmbiguous = errors.New("index: more than one matching document")
	// ErrCorruptSnapshot indicates a persisted snapshot could not be read back.
	ErrCorruptSnapshot = errors.New("index: corrupt snapshot")
)

// Record describes one document file.
type Record struct {
	LongID     string
	Path       string // slash-separated, relative to the repository root
	UID        string
	MUIDs      []string
	MTimeNanos int64
	Meta       meta.Set
}

// Field returns the hyphen-joined muids, the name a document contributes to a merged view.
func (r *Record) Field() string {
	return strings.Join(r.MUIDs, "-")
}

// Node is a directory or document in the tree index.
type Node struct {
	Name     string
	Children map[string]*Node
	Order    []string // child names in human sort order
	Record   *Record  // set for documents only
	Meta     meta.Set
}

// IsDocument reports whether n is a document leaf.
func (n *Node) IsDocument() bool {
	return n.Record != nil
}

// Snapshot is one complete build of the index. It is never mutated after the
// build that produced it finishes.
type Snapshot struct {
	Tree        *Node
	UIDs        map[string]map[string]bool
	MUIDs       map[string]map[string]bool
	Files       map[string]*Record
	Definitions meta.Definitions
	BuiltAt     time.Time

	uidOnce   sync.Once
	uidSorted []string
	uidErr    error
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		UIDs:        map[string]map[string]bool{},
		MUIDs:       map[string]map[string]bool{},
		Files:       map[string]*Record{},
		Definitions: meta.Definitions{},
	}
}

// Len returns the number of indexed documents.
func (s *Snapshot) Len() int {
	return len(s.Files)
}

// SplitLongID derives uid and muids from a document long id. Without an
// underscore the whole id is the uid.
func SplitLongID(longID string) (string, []string) {
	uid, muidString, found := strings.Cut(longID, "_")
	if !found {
		return longID, nil
	}
	return uid, strings.Split(muidString, "-")
}

// LongIDFromPath returns the long id of a document path (its file stem).
func LongIDFromPath(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

func notFound(uid string, muids []string) error {
	if len(muids) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	return fmt.Errorf("%w: %s %v", ErrNotFound, uid, muids)
}
