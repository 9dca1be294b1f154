package sstable

import (
	"encoding/binary"
	"hash"
	"hash/crc32"
	"math/rand"
	"os"
	"strconv"
)

// This file implements a block-addressed compressed reader/writer
// pairs. The logical byte stream is split into meta.ChunkLen-byte chunks;
// each chunk is compressed, appended to the physical Data file trailed by
// an optional CRC-32, and its starting physical offset recorded in
// meta.Offsets. Grounded on sstables.cc's
// make_compressed_file_output_stream/make_compressed_file_input_stream.

const compressedTrailerLen = 4 // trailing CRC-32 per chunk, when enabled

// CompressedWriter wraps a Data file, compressing it in fixed-size logical
// chunks per meta.ChunkLen. It mutates meta in place as it writes.
type CompressedWriter struct {
	f          *os.File
	meta       *CompressionInfo
	codec      Compressor
	buf        []byte // accumulates up to ChunkLen bytes of the current logical chunk
	physOffset int64
	logicalOff int64
	crcChance  float64
	closed     bool
	fullCRC    hash.Hash32
}

// NewCompressedWriter opens a compressing sink over f. meta.CompressorName,
// meta.ChunkLen and meta.Options must already be populated by the caller
// (NewEncoder in encoder.go does this).
func NewCompressedWriter(f *os.File, meta *CompressionInfo) (*CompressedWriter, error) {
	codec, err := LookupCompressor(meta.CompressorName)
	if err != nil {
		return nil, err
	}
	chance := 1.0
	if s, ok := meta.Options["crc_check_chance"]; ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			chance = v
		}
	}
	return &CompressedWriter{
		f:         f,
		meta:      meta,
		codec:     codec,
		crcChance: chance,
		fullCRC:   crc32.NewIEEE(),
	}, nil
}

// Write appends p to the logical stream, sealing chunks as they fill.
func (w *CompressedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errClosedWriter
	}
	total := 0
	for len(p) > 0 {
		room := int(w.meta.ChunkLen) - len(w.buf)
		n := len(p)
		if n > room {
			n = room
		}
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		total += n
		w.logicalOff += int64(n)
		if len(w.buf) == int(w.meta.ChunkLen) {
			if err := w.sealChunk(); err != nil {
				return total, err
			}
		}
	}
	w.meta.DataLen = uint64(w.logicalOff)
	return total, nil
}

func (w *CompressedWriter) sealChunk() error {
	if len(w.buf) == 0 {
		return nil
	}
	compressed := w.codec.Compress(nil, w.buf)
	w.meta.Offsets = append(w.meta.Offsets, uint64(w.physOffset))

	out := compressed
	if w.crcChance > 0 {
		sum := crc32.ChecksumIEEE(compressed)
		var trailer [compressedTrailerLen]byte
		binary.BigEndian.PutUint32(trailer[:], sum)
		out = append(out, trailer[:]...)
	}
	if _, err := w.f.Write(out); err != nil {
		return newError(ErrIO, "", err)
	}
	w.fullCRC.Write(out)
	w.physOffset += int64(len(out))
	w.buf = w.buf[:0]
	return nil
}

// Offset returns the current logical byte position.
func (w *CompressedWriter) Offset() int64 { return w.logicalOff }

// FullChecksum returns the CRC-32 (IEEE) over every physical byte written
// to the compressed Data file, the value written into Digest.sha1
// (sstables.cc's compression_metadata::full_checksum, accumulated
// incrementally via init_full_checksum/update_full_checksum).
func (w *CompressedWriter) FullChecksum() uint32 { return w.fullCRC.Sum32() }

// Close flushes any trailing partial chunk and finalizes meta.DataLen.
func (w *CompressedWriter) Close() error {
	if w.closed {
		return errClosedWriter
	}
	w.closed = true
	if err := w.sealChunk(); err != nil {
		return err
	}
	w.meta.DataLen = uint64(w.logicalOff)
	if err := w.f.Sync(); err != nil {
		return newError(ErrIO, "", err)
	}
	return w.f.Close()
}

// CompressedReader supports random-access reads over a compressed Data
// file, decompressing only the chunks a caller actually touches.
type CompressedReader struct {
	f         *os.File
	meta      *CompressionInfo
	codec     Compressor
	crcChance float64
}

// NewCompressedReader opens a decompressing view over f using the already
// parsed CompressionInfo.
func NewCompressedReader(f *os.File, meta *CompressionInfo) (*CompressedReader, error) {
	codec, err := LookupCompressor(meta.CompressorName)
	if err != nil {
		return nil, err
	}
	chance := 1.0
	if s, ok := meta.Options["crc_check_chance"]; ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			chance = v
		}
	}
	return &CompressedReader{f: f, meta: meta, codec: codec, crcChance: chance}, nil
}

// chunkContaining returns the index of the chunk holding logical position
// pos, along with the physical byte range of that (compressed) chunk on
// disk.
func (r *CompressedReader) chunkContaining(pos int64) (idx int, physStart, physEnd int64) {
	idx = int(pos / int64(r.meta.ChunkLen))
	physStart = int64(r.meta.Offsets[idx])
	if idx+1 < len(r.meta.Offsets) {
		physEnd = int64(r.meta.Offsets[idx+1])
	} else {
		fi, err := r.f.Stat()
		if err == nil {
			physEnd = fi.Size()
		}
	}
	return
}

// ReadAt returns length bytes of the decompressed logical stream starting
// at pos, spanning as many physical chunks as necessary.
func (r *CompressedReader) ReadAt(pos int64, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	for len(out) < length {
		idx, physStart, physEnd := r.chunkContaining(pos)
		raw := make([]byte, physEnd-physStart)
		if _, err := r.f.ReadAt(raw, physStart); err != nil {
			return nil, newError(ErrIO, "", err)
		}
		payload := raw
		if r.crcChance > 0 && len(raw) >= compressedTrailerLen {
			payload = raw[:len(raw)-compressedTrailerLen]
			if rand.Float64() < r.crcChance {
				want := binary.BigEndian.Uint32(raw[len(raw)-compressedTrailerLen:])
				if got := crc32.ChecksumIEEE(payload); got != want {
					return nil, malformed("chunk %d: CRC mismatch: got %x, want %x", idx, got, want)
				}
			}
		}
		plain, err := r.codec.Decompress(nil, payload)
		if err != nil {
			return nil, newError(ErrIO, "", err)
		}
		chunkStart := int64(idx) * int64(r.meta.ChunkLen)
		skip := pos - chunkStart
		if skip < 0 || skip > int64(len(plain)) {
			return nil, malformed("chunk %d: position %d out of range", idx, pos)
		}
		avail := plain[skip:]
		need := length - len(out)
		if len(avail) > need {
			avail = avail[:need]
		}
		out = append(out, avail...)
		pos += int64(len(avail))
		if len(avail) == 0 {
			break
		}
	}
	return out, nil
}
