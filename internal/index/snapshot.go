package index

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/vault-md/textrepo/internal/document"
)

// snapshotMagic prefixes every snapshot file; bump the trailing version when
// the encoded layout changes.
var snapshotMagic = []byte("TXRIDX\x00\x01")

const checksumSize = 8

// encodeSnapshot renders snap as magic, checksum, gob payload.
func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	out := make([]byte, 0, len(snapshotMagic)+checksumSize+payload.Len())
	out = append(out, snapshotMagic...)
	out = binary.LittleEndian.AppendUint64(out, xxhash.Sum64(payload.Bytes()))
	out = append(out, payload.Bytes()...)
	return out, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	header := len(snapshotMagic) + checksumSize
	if len(data) < header || !bytes.Equal(data[:len(snapshotMagic)], snapshotMagic) {
		return nil, fmt.Errorf("%w: bad header", ErrCorruptSnapshot)
	}
	sum := binary.LittleEndian.Uint64(data[len(snapshotMagic):header])
	payload := data[header:]
	if xxhash.Sum64(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	snap := newSnapshot()
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Tree == nil {
		return nil, fmt.Errorf("%w: missing tree", ErrCorruptSnapshot)
	}
	return snap, nil
}

func writeSnapshot(path string, snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := document.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func readSnapshot(path string) (*Snapshot, error) {
	//nolint:gosec // G304: snapshot path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(data)
}
