package sstable

import "io"

// IndexEntry is one record of Index.db:
// key:disk_string<u16> ‖ position:u64 ‖ promoted_index:disk_string<u32>.
// The promoted index is reserved but always empty in this format version.
type IndexEntry struct {
	Key           []byte
	Position      uint64
	PromotedIndex []byte
}

// ReadIndexEntry parses a single Index.db record.
func ReadIndexEntry(r io.Reader) (*IndexEntry, error) {
	key, err := readSizedString[uint16](r)
	if err != nil {
		return nil, err
	}
	pos, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	promoted, err := readSizedString[uint32](r)
	if err != nil {
		return nil, err
	}
	return &IndexEntry{Key: key, Position: pos, PromotedIndex: promoted}, nil
}

// WriteIndexEntry serializes a single Index.db record.
func WriteIndexEntry(w io.Writer, key []byte, pos uint64, promotedIndex []byte) error {
	if err := writeSizedString[uint16](w, key); err != nil {
		return err
	}
	if err := writeUint64(w, pos); err != nil {
		return err
	}
	return writeSizedString[uint32](w, promotedIndex)
}
