package sstable

import (
	"strconv"
	"strings"
)

// EncodeDigest renders the Digest.sha1 payload: the ASCII decimal encoding
// of the full-file checksum. The component is named
// "Digest.sha1" for historical reasons but carries a CRC-32, not a SHA-1.
func EncodeDigest(checksum uint32) []byte {
	return []byte(strconv.FormatUint(uint64(checksum), 10))
}

// ParseDigest parses a Digest.sha1 payload back into its checksum.
func ParseDigest(data []byte) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, wrapMalformed(err, "digest")
	}
	return uint32(v), nil
}
