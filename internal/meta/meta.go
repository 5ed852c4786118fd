// Package meta models inherited metadata definitions.
//
// Files named with the reserved "_" prefix declare attributes keyed by a path
// part, for example {"sujato": {"type": "author", "root_lang": "pli"}}. A
// document inherits every attribute whose key names one of its path parts.
// While descending a tree the nearest definition of a key wins; the global
// table keeps the first definition of a key that was seen.
package meta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Attribute is one typed metadata object.
type Attribute struct {
	Type  string
	UID   string
	Props map[string]json.RawMessage
}

// String returns the string property name, or "" when absent or not a string.
func (a Attribute) String(name string) string {
	raw, ok := a.Props[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// MarshalJSON renders the attribute as its properties plus uid.
func (a Attribute) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(a.Props)+1)
	for k, v := range a.Props {
		out[k] = v
	}
	uid, err := json.Marshal(a.UID)
	if err != nil {
		return nil, err
	}
	out["uid"] = uid
	return json.Marshal(out)
}

// Definitions maps a definition key (a path part) to its attribute.
type Definitions map[string]Attribute

// ParseDefinitions decodes the content of a metadata definition file.
func ParseDefinitions(data []byte) (Definitions, error) {
	var raw map[string]map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode definitions: %w", err)
	}

	defs := make(Definitions, len(raw))
	for key, obj := range raw {
		typeRaw, ok := obj["type"]
		if !ok {
			return nil, fmt.Errorf("definition %q has no type", key)
		}
		var typ string
		if err := json.Unmarshal(typeRaw, &typ); err != nil || typ == "" {
			return nil, fmt.Errorf("definition %q has an invalid type", key)
		}
		var props map[string]json.RawMessage
		for k, v := range obj {
			if k == "type" {
				continue
			}
			if props == nil {
				props = make(map[string]json.RawMessage, len(obj)-1)
			}
			props[k] = v
		}
		defs[key] = Attribute{Type: typ, UID: key, Props: props}
	}
	return defs, nil
}

// Clone returns a shallow copy that can be merged into without touching d.
func (d Definitions) Clone() Definitions {
	out := make(Definitions, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge overlays other onto d. Keys in other replace keys in d.
func (d Definitions) Merge(other Definitions) {
	for k, v := range other {
		d[k] = v
	}
}

// MergeFirst adds keys from other that d does not define yet.
func (d Definitions) MergeFirst(other Definitions) {
	for k, v := range other {
		if _, exists := d[k]; !exists {
			d[k] = v
		}
	}
}

// Keys returns the definition keys in sorted order.
func (d Definitions) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve collects the attributes for a slash-separated path. A trailing
// ".json" on a part is ignored. The result is keyed by attribute type; when two
// parts define the same type, the deeper part wins.
func (d Definitions) Resolve(path string) Set {
	var set Set
	for _, part := range strings.Split(path, "/") {
		part = strings.TrimSuffix(part, ".json")
		if attr, ok := d[part]; ok {
			set = set.With(attr)
		}
	}
	return set
}

// Set is an ordered collection of attributes with at most one per type.
type Set []Attribute

// With returns s with attr added, replacing an attribute of the same type in place.
func (s Set) With(attr Attribute) Set {
	for i := range s {
		if s[i].Type == attr.Type {
			out := append(Set(nil), s...)
			out[i] = attr
			return out
		}
	}
	return append(append(Set(nil), s...), attr)
}

// ByType returns the attribute of the given type.
func (s Set) ByType(typ string) (Attribute, bool) {
	for _, attr := range s {
		if attr.Type == typ {
			return attr, true
		}
	}
	return Attribute{}, false
}

// Property returns the first string value of name across the attributes, in
// inheritance order (outermost first).
func (s Set) Property(name string) string {
	for _, attr := range s {
		if v := attr.String(name); v != "" {
			return v
		}
	}
	return ""
}

// MarshalJSON renders the set as an object keyed by attribute type.
func (s Set) MarshalJSON() ([]byte, error) {
	out := make(map[string]Attribute, len(s))
	for _, attr := range s {
		out[attr.Type] = attr
	}
	return json.Marshal(out)
}
