package sstable

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Compressor is the block compress/decompress pair the codec asks the
// registry for. Names are opaque to the codec:
// CompressionInfo just carries whatever name and options were configured.
type Compressor interface {
	Name() string
	Compress(dst, src []byte) []byte
	Decompress(dst, src []byte) ([]byte, error)
}

var errUnsupportedCompressor = errors.New("sstable: compressor not available in this build")

type noneCompressor struct{}

func (noneCompressor) Name() string { return "none" }
func (noneCompressor) Compress(dst, src []byte) []byte {
	return append(dst[:0], src...)
}
func (noneCompressor) Decompress(dst, src []byte) ([]byte, error) {
	return append(dst[:0], src...), nil
}

type snappyCompressor struct{}

func (snappyCompressor) Name() string { return "snappy" }
func (snappyCompressor) Compress(dst, src []byte) []byte {
	return snappy.Encode(dst[:cap(dst)], src)
}
func (snappyCompressor) Decompress(dst, src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	out, err := snappy.Decode(dst[:n], src)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// deflateCompressor uses the standard library's compress/flate. No
// third-party deflate implementation is wired into this codec's
// dependency set, so this one slot in the registry is stdlib by
// necessity (see DESIGN.md).
type deflateCompressor struct{}

func (deflateCompressor) Name() string { return "deflate" }
func (deflateCompressor) Compress(dst, src []byte) []byte {
	var buf bytes.Buffer
	fw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	_, _ = fw.Write(src)
	_ = fw.Close()
	return append(dst[:0], buf.Bytes()...)
}
func (deflateCompressor) Decompress(dst, src []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(src))
	defer fr.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, fr); err != nil {
		return nil, err
	}
	return append(dst[:0], buf.Bytes()...), nil
}

// lz4Compressor registers the "lz4" name so LookupCompressor accepts it,
// but it has no codec behind it: Compress returns no bytes at all and
// Decompress fails with errUnsupportedCompressor, so Data written under
// this name cannot be read back (see DESIGN.md).
type lz4Compressor struct{}

func (lz4Compressor) Name() string { return "lz4" }
func (lz4Compressor) Compress(dst, src []byte) []byte {
	return nil
}
func (lz4Compressor) Decompress(dst, src []byte) ([]byte, error) {
	return nil, errUnsupportedCompressor
}

var compressorRegistry = map[string]Compressor{
	"none":    noneCompressor{},
	"snappy":  snappyCompressor{},
	"deflate": deflateCompressor{},
	"lz4":     lz4Compressor{},
}

// LookupCompressor resolves a compressor by name.
func LookupCompressor(name string) (Compressor, error) {
	c, ok := compressorRegistry[name]
	if !ok {
		return nil, errors.Errorf("sstable: unknown compressor %q", name)
	}
	return c, nil
}
