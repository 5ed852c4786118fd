package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vault-md/textrepo/internal/sortkey"
)

// Record returns the document with the given long id.
func (s *Snapshot) Record(longID string) (*Record, error) {
	rec, ok := s.Files[longID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, longID)
	}
	return rec, nil
}

// RelatedPaths returns paths followed by every indexed document sharing a uid
// with one of them, without duplicates. Completion of those documents depends
// on the segment counts of the given ones. Unindexed paths are kept as given.
func (s *Snapshot) RelatedPaths(paths ...string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	push := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	var uids []string
	for _, p := range paths {
		p = strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
		push(p)
		if rec, ok := s.Files[LongIDFromPath(p)]; ok {
			uids = append(uids, rec.UID)
		}
	}
	for _, uid := range uids {
		longIDs := make([]string, 0, len(s.UIDs[uid]))
		for longID := range s.UIDs[uid] {
			longIDs = append(longIDs, longID)
		}
		sort.Strings(longIDs)
		for _, longID := range longIDs {
			if rec, ok := s.Files[longID]; ok {
				push(rec.Path)
			}
		}
	}
	return out
}

// MatchingIDs returns every long id that has uid and all of muids, in human
// sort order. An unknown uid or muid is ErrNotFound; a known combination that
// matches nothing returns an empty slice.
func (s *Snapshot) MatchingIDs(uid string, muids ...string) ([]string, error) {
	base, ok := s.UIDs[uid]
	if !ok {
		return nil, notFound(uid, muids)
	}

	sets := make([]map[string]bool, 0, len(muids))
	for _, muid := range muids {
		set, ok := s.MUIDs[muid]
		if !ok {
			return nil, notFound(uid, muids)
		}
		sets = append(sets, set)
	}

	var result []string
	for longID := range base {
		matched := true
		for _, set := range sets {
			if !set[longID] {
				matched = false
				break
			}
		}
		if matched {
			result = append(result, longID)
		}
	}
	sortkey.SortHuman(result)
	return result, nil
}

// MatchingID returns the single long id matching uid and muids.
func (s *Snapshot) MatchingID(uid string, muids ...string) (string, error) {
	ids, err := s.MatchingIDs(uid, muids...)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", notFound(uid, muids)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s %v matched %v", ErrAmbiguous, uid, muids, ids)
	}
}

// MatchingRecord returns the single document matching uid and muids.
func (s *Snapshot) MatchingRecord(uid string, muids ...string) (*Record, error) {
	longID, err := s.MatchingID(uid, muids...)
	if err != nil {
		return nil, err
	}
	return s.Record(longID)
}

// ParentUID returns uid when it is indexed, otherwise the nearest uid that
// precedes it in canonical order. Segments whose numbering does not line up
// with file boundaries are owned by that preceding document.
//
// This guesses: a uid that no document owns is attributed to whatever sorts
// just before it. A uid that sorts before every indexed uid returns
// ErrNotFound; it does not wrap around to the last uid.
func (s *Snapshot) ParentUID(uid string) (string, error) {
	if _, ok := s.UIDs[uid]; ok {
		return uid, nil
	}

	sorted, err := s.sortedUIDs()
	if err != nil {
		return "", err
	}

	var cmpErr error
	pos := sort.Search(len(sorted), func(i int) bool {
		c, err := sortkey.Compare(sorted[i], uid)
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return c >= 0
	})
	if cmpErr != nil {
		return "", cmpErr
	}
	if pos == 0 {
		return "", fmt.Errorf("%w: no uid precedes %s", ErrNotFound, uid)
	}
	return sorted[pos-1], nil
}

func (s *Snapshot) sortedUIDs() ([]string, error) {
	s.uidOnce.Do(func() {
		uids := make([]string, 0, len(s.UIDs))
		for uid := range s.UIDs {
			uids = append(uids, uid)
		}
		s.uidErr = sortkey.Sort(uids)
		s.uidSorted = uids
	})
	return s.uidSorted, s.uidErr
}

// Subtree walks the tree index along path.
func (s *Snapshot) Subtree(path ...string) (*Node, error) {
	node := s.Tree
	for _, part := range path {
		if node == nil || node.Children == nil {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, path)
		}
		child, ok := node.Children[part]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, path)
		}
		node = child
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, path)
	}
	return node, nil
}
