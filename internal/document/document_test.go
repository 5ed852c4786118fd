package document

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dn1_translation-en-x.json")

	doc := New()
	doc.Segments["dn1:1.10"] = "ten"
	doc.Segments["dn1:1.2"] = "two <b>"
	doc.Segments["dn1:0.1"] = ""
	doc.Segments["dn1:1.1"] = "Pāli ñāṇa"

	if err := Save(path, doc); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	want := "{\n" +
		"  \"dn1:0.1\": \"\",\n" +
		"  \"dn1:1.1\": \"Pāli ñāṇa\",\n" +
		"  \"dn1:1.2\": \"two <b>\",\n" +
		"  \"dn1:1.10\": \"ten\"\n" +
		"}"
	if string(data) != want {
		t.Fatalf("unexpected file content:\n%s\nwant:\n%s", data, want)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(loaded.Segments) != len(doc.Segments) {
		t.Fatalf("expected %d segments, got %d", len(doc.Segments), len(loaded.Segments))
	}
	for id, text := range doc.Segments {
		got, ok := loaded.Segments[id]
		if !ok || got != text {
			t.Fatalf("segment %s: expected %q, got %q (present=%v)", id, text, got, ok)
		}
	}

	ids, err := loaded.SortedIDs()
	if err != nil {
		t.Fatalf("SortedIDs error: %v", err)
	}
	if ids[0] != "dn1:0.1" || ids[3] != "dn1:1.10" {
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")

	for i := 0; i < 2; i++ {
		doc := New()
		doc.Segments["a:1"] = "x"
		if err := Save(path, doc); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the document, found %d entries", len(entries))
	}
}

func TestCountNonEmptyIgnoresMeta(t *testing.T) {
	doc, err := Decode([]byte(`{"_meta": {"x": 1}, "a:1": "text", "a:2": ""}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if got := doc.CountNonEmpty(); got != 1 {
		t.Fatalf("expected 1 non-empty segment, got %d", got)
	}
	if doc.Meta == nil {
		t.Fatalf("expected _meta to be preserved")
	}
}

func TestDecodeRejectsNonStringSegments(t *testing.T) {
	if _, err := Decode([]byte(`{"a:1": 5}`)); err == nil {
		t.Fatalf("expected error for non-string segment value")
	}
}

func TestEncodeEmpty(t *testing.T) {
	data, err := New().Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if string(data) != "{}" {
		t.Fatalf("expected {}, got %s", data)
	}
}
