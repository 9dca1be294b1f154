package sstable

import (
	"bufio"
	"hash"
	"hash/crc32"
	"os"

	"github.com/pkg/errors"
)

var errClosedWriter = errors.New("sstable: writer is closed")

// This file implements a forward-only writer over a file that
// accumulates an incremental CRC over a configurable chunk size (for the
// CRC component) and a cumulative full-file checksum (for the Digest
// component), grounded on sstables.cc's checksummed_file_writer and on
// grailbio-bigslice's incremental hash/crc32 usage (sliceio/codec.go,
// mapio/block.go).
const defaultChunkLen = 4096

// ChecksummedWriter is used for the uncompressed Data-file write path. It
// is not reusable once Close has been called.
type ChecksummedWriter struct {
	bw       *bufio.Writer
	f        *os.File
	offset   int64
	fullCRC  hash.Hash32
	chunkCRC hash.Hash32
	chunkLen uint32
	chunkPos uint32
	chunks   []uint32
	closed   bool
}

// NewChecksummedWriter wraps f. chunkLen is the CRC.db chunk size; 0
// selects the default.
func NewChecksummedWriter(f *os.File, chunkLen uint32) *ChecksummedWriter {
	if chunkLen == 0 {
		chunkLen = defaultChunkLen
	}
	return &ChecksummedWriter{
		bw:       bufio.NewWriterSize(f, 64*1024),
		f:        f,
		fullCRC:  crc32.NewIEEE(),
		chunkCRC: crc32.NewIEEE(),
		chunkLen: chunkLen,
	}
}

// Write appends p, updating both checksums and rolling the per-chunk CRC
// whenever a chunk boundary is crossed.
func (w *ChecksummedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errClosedWriter
	}
	total := 0
	for len(p) > 0 {
		remaining := w.chunkLen - w.chunkPos
		n := len(p)
		if uint32(n) > remaining {
			n = int(remaining)
		}
		chunk := p[:n]
		if _, err := w.bw.Write(chunk); err != nil {
			return total, newError(ErrIO, "", err)
		}
		w.fullCRC.Write(chunk)
		w.chunkCRC.Write(chunk)
		w.offset += int64(n)
		w.chunkPos += uint32(n)
		total += n
		p = p[n:]

		if w.chunkPos == w.chunkLen {
			w.chunks = append(w.chunks, w.chunkCRC.Sum32())
			w.chunkCRC.Reset()
			w.chunkPos = 0
		}
	}
	return total, nil
}

// Offset returns the current logical byte position.
func (w *ChecksummedWriter) Offset() int64 { return w.offset }

// Flush pushes any buffered bytes to the underlying file.
func (w *ChecksummedWriter) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return newError(ErrIO, "", err)
	}
	return nil
}

// Close flushes, finalizes a trailing partial chunk into the CRC list, and
// syncs+closes the underlying file. The writer is not reusable afterwards.
func (w *ChecksummedWriter) Close() error {
	if w.closed {
		return errClosedWriter
	}
	w.closed = true
	if err := w.Flush(); err != nil {
		return err
	}
	if w.chunkPos > 0 {
		w.chunks = append(w.chunks, w.chunkCRC.Sum32())
		w.chunkPos = 0
	}
	if err := w.f.Sync(); err != nil {
		return newError(ErrIO, "", err)
	}
	return w.f.Close()
}

// FullChecksum returns the whole-file CRC-32 (IEEE), the value written into
// Digest.sha1.
func (w *ChecksummedWriter) FullChecksum() uint32 { return w.fullCRC.Sum32() }

// Chunks returns the per-chunk CRC-32 list written into CRC.db.
func (w *ChecksummedWriter) Chunks() []uint32 { return w.chunks }

// ChunkLen returns the configured CRC chunk size.
func (w *ChecksummedWriter) ChunkLen() uint32 { return w.chunkLen }
