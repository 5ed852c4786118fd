// Package document reads and writes segment documents.
//
// A document is a JSON object mapping segment id to text. Documents are always
// written with their keys in canonical segment order and replace the previous
// file in a single rename.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vault-md/textrepo/internal/sortkey"
)

// MetaKey is the reserved key carrying attribute overrides.
const MetaKey = "_meta"

// Document is a decoded segment file.
type Document struct {
	Segments map[string]string
	Meta     json.RawMessage
}

// New returns an empty document.
func New() *Document {
	return &Document{Segments: map[string]string{}}
}

// Load reads the document at path.
func Load(path string) (*Document, error) {
	//nolint:gosec // G304: path comes from the repository index
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, nil
}

// Decode parses document JSON.
func Decode(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := &Document{Segments: make(map[string]string, len(raw))}
	for key, value := range raw {
		if key == MetaKey {
			doc.Meta = value
			continue
		}
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return nil, fmt.Errorf("segment %q is not a string", key)
		}
		doc.Segments[key] = text
	}
	return doc, nil
}

// CountNonEmpty returns the number of segments with non-empty text.
func (d *Document) CountNonEmpty() int {
	count := 0
	for _, text := range d.Segments {
		if text != "" {
			count++
		}
	}
	return count
}

// SortedIDs returns the segment ids in canonical order.
func (d *Document) SortedIDs() ([]string, error) {
	ids := make([]string, 0, len(d.Segments))
	for id := range d.Segments {
		ids = append(ids, id)
	}
	if err := sortkey.Sort(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Encode renders the document with two-space indentation and canonical key order.
func (d *Document) Encode() ([]byte, error) {
	ids, err := d.SortedIDs()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 && d.Meta == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	first := true
	writeEntry := func(key string, value []byte) {
		if !first {
			buf.WriteString(",\n")
		}
		first = false
		buf.WriteString("  ")
		buf.Write(marshalString(key))
		buf.WriteString(": ")
		buf.Write(value)
	}

	if d.Meta != nil {
		var compact bytes.Buffer
		if err := json.Compact(&compact, d.Meta); err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", MetaKey, err)
		}
		writeEntry(MetaKey, compact.Bytes())
	}
	for _, id := range ids {
		writeEntry(id, marshalString(d.Segments[id]))
	}
	buf.WriteString("\n}")
	return buf.Bytes(), nil
}

// Save writes the document to path, replacing any existing file atomically.
func Save(path string, d *Document) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, keeping the mode of an existing file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func marshalString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}
