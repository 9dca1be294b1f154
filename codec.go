package sstable

import (
	"encoding/binary"
	"io"
	"math"
)

// This file implements the format's big-endian scalar read/write
// primitives with strict short-read and narrowing checks. Every function
// here mirrors one of sstables.cc's read_integer/parse/write template
// overloads, expressed with encoding/binary's explicit byte-order calls
// instead of a pointer-cast packed view.

// Integer is the set of widths the codec moves in bulk (used by the
// integer-array fast path in disktypes.go).
type Integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, newError(ErrIO, "", err)
	}
	if got < n {
		return buf[:got], bufferSizeMismatch(got, n)
	}
	return buf, nil
}

func readUint8(r io.Reader) (uint8, error) {
	b, err := readFull(r, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	b, err := readFull(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	b, err := readFull(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	b, err := readFull(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	v, err := readUint32(r)
	return int32(v), err
}

func writeInt32(w io.Writer, v int32) error {
	return writeUint32(w, uint32(v))
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func writeInt64(w io.Writer, v int64) error {
	return writeUint64(w, uint64(v))
}

func readBool(r io.Reader) (bool, error) {
	v, err := readUint8(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func writeBool(w io.Writer, v bool) error {
	if v {
		return writeUint8(w, 1)
	}
	return writeUint8(w, 0)
}

func readFloat64(r io.Reader) (float64, error) {
	v, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func writeFloat64(w io.Writer, v float64) error {
	return writeUint64(w, math.Float64bits(v))
}

// checkTruncateUint32 mirrors check_truncate_and_assign: it narrows a
// size_t-ish length into a fixed disk width and fails loudly rather than
// silently wrapping if the value does not survive the round trip.
func checkTruncateUint32(from int) (uint32, error) {
	to := uint32(from)
	if int(to) != from {
		return 0, overflow(to, from)
	}
	return to, nil
}

func checkTruncateUint16(from int) (uint16, error) {
	to := uint16(from)
	if int(to) != from {
		return 0, overflow(to, from)
	}
	return to, nil
}
