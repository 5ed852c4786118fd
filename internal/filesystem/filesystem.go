// Package filesystem keeps a content-addressed copy of segment text that a
// write replaced without the writer having seen it.
package filesystem

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vault-md/textrepo/internal/config"
)

// ensureClobberDir creates the archive directory.
func ensureClobberDir() error {
	return os.MkdirAll(config.GetClobberDir(), 0o750)
}

// GetFieldDir returns the directory that stores archived text for a field.
func GetFieldDir(field string) string {
	return filepath.Join(config.GetClobberDir(), urlEncode(field))
}

// SaveFile archives content for a segment of field and returns the file path
// and hash. Saving the same text twice yields the same file.
func SaveFile(field, segmentID, content string) (string, string, error) {
	if err := ensureClobberDir(); err != nil {
		return "", "", err
	}

	fieldDir := GetFieldDir(field)
	if err := os.MkdirAll(fieldDir, 0o750); err != nil {
		return "", "", err
	}

	hash := calculateHash(content)
	filePath := getFilePath(field, segmentID, hash)

	if err := os.WriteFile(filePath, []byte(content), 0o600); err != nil {
		return "", "", err
	}

	return filePath, hash, nil
}

// ReadFile reads a file from disk and returns its contents as a string.
func ReadFile(path string) (string, error) {
	//nolint:gosec // G304: path is built from the archive directory
	bytes, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// FileExists reports whether the given path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// VerifyFile ensures the file exists and its SHA-256 hash matches the expected hash.
func VerifyFile(path, expectedHash string) (bool, error) {
	if !FileExists(path) {
		return false, nil
	}

	content, err := ReadFile(path)
	if err != nil {
		return false, err
	}

	actualHash := calculateHash(content)
	return actualHash == expectedHash, nil
}

// ArchivedText is one archived file.
type ArchivedText struct {
	Path      string
	SegmentID string
	Hash      string
}

// ListKeyFiles returns the archived texts of one segment, sorted by path.
func ListKeyFiles(field, segmentID string) ([]ArchivedText, error) {
	all, err := ListFieldFiles(field)
	if err != nil {
		return nil, err
	}
	var out []ArchivedText
	for _, a := range all {
		if a.SegmentID == segmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListFieldFiles returns every archived text of a field, sorted by path.
// Files that do not follow the archive naming are skipped.
func ListFieldFiles(field string) ([]ArchivedText, error) {
	dir := GetFieldDir(field)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []ArchivedText
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		stem := strings.TrimSuffix(name, ".txt")
		sep := strings.LastIndex(stem, "_")
		if sep < 0 || len(stem)-sep-1 != sha256.Size*2 {
			continue
		}
		encoded, hash := stem[:sep], stem[sep+1:]
		segmentID, err := url.QueryUnescape(encoded)
		if err != nil {
			continue
		}
		out = append(out, ArchivedText{
			Path:      filepath.Join(dir, name),
			SegmentID: segmentID,
			Hash:      hash,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// DeleteKeyFiles removes every archived text of a segment and returns the
// number of removed files.
func DeleteKeyFiles(field, segmentID string) (int, error) {
	texts, err := ListKeyFiles(field, segmentID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, text := range texts {
		if err := os.Remove(text.Path); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// DeleteFieldFiles removes all archived text for a field.
func DeleteFieldFiles(field string) error {
	dir := GetFieldDir(field)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(dir)
}

// Archive adapts the package functions to the segment store.
type Archive struct{}

// Save archives text replaced in segmentID of field.
func (Archive) Save(field, segmentID, text string) (string, error) {
	path, _, err := SaveFile(field, segmentID, text)
	return path, err
}

// getFilePath constructs the storage path for a segment and content hash.
func getFilePath(field, segmentID, hash string) string {
	filename := urlEncode(segmentID) + "_" + hash + ".txt"
	return filepath.Join(GetFieldDir(field), filename)
}

func calculateHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func urlEncode(value string) string {
	// url.QueryEscape encodes spaces as '+', so convert to '%20' to match encodeURIComponent.
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
