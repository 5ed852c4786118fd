package meta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) Definitions {
	t.Helper()
	defs, err := ParseDefinitions([]byte(src))
	require.NoError(t, err)
	return defs
}

func TestParseDefinitions(t *testing.T) {
	defs := mustParse(t, `{"sujato": {"type": "author", "root_lang": "pli", "root_edition": "ms"}}`)

	attr, ok := defs["sujato"]
	require.True(t, ok)
	assert.Equal(t, "author", attr.Type)
	assert.Equal(t, "sujato", attr.UID)
	assert.Equal(t, "pli", attr.String("root_lang"))
	_, hasType := attr.Props["type"]
	assert.False(t, hasType)
}

func TestParseDefinitionsRequiresType(t *testing.T) {
	_, err := ParseDefinitions([]byte(`{"sujato": {"name": "x"}}`))
	assert.Error(t, err)
}

func TestMergeNearestWinsLocallyFirstWinsGlobally(t *testing.T) {
	outer := mustParse(t, `{"en": {"type": "language", "name": "English"}}`)
	inner := mustParse(t, `{"en": {"type": "language", "name": "English (inner)"}}`)

	local := outer.Clone()
	local.Merge(inner)
	assert.Equal(t, "English (inner)", local["en"].String("name"))
	assert.Equal(t, "English", outer["en"].String("name"), "clone must not alias the parent table")

	global := Definitions{}
	global.MergeFirst(outer)
	global.MergeFirst(inner)
	assert.Equal(t, "English", global["en"].String("name"))
}

func TestResolveInvertsByType(t *testing.T) {
	defs := mustParse(t, `{
		"translation": {"type": "category"},
		"en": {"type": "language"},
		"sujato": {"type": "author", "root_lang": "pli", "root_edition": "ms"}
	}`)

	set := defs.Resolve("translation/en/sujato/dn/dn1_translation-en-sujato.json")
	require.Len(t, set, 3)
	assert.Equal(t, "category", set[0].Type)
	assert.Equal(t, "translation", set[0].UID)

	author, ok := set.ByType("author")
	require.True(t, ok)
	assert.Equal(t, "sujato", author.UID)
	assert.Equal(t, "pli", set.Property("root_lang"))
	assert.Equal(t, "ms", set.Property("root_edition"))
	assert.Equal(t, "", set.Property("missing"))
}

func TestSetMarshalJSON(t *testing.T) {
	defs := mustParse(t, `{"en": {"type": "language", "name": "English"}}`)
	data, err := json.Marshal(defs.Resolve("en"))
	require.NoError(t, err)

	var decoded map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "en", decoded["language"]["uid"])
	assert.Equal(t, "English", decoded["language"]["name"])
}
