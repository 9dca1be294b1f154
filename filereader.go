package sstable

import (
	"bufio"
	"io"
	"log"
	"os"
)

// This file implements a random-access reader abstracting a file
// behind ReadExactly/Seek/EOF, grounded on sstables.cc's
// random_access_reader / file_random_access_reader /
// shared_file_random_access_reader.

const defaultReaderBufferSize = 8192

// FileReader owns a file and a current forward-only buffered stream
// positioned by the last Seek call. It is the Go analogue of
// file_random_access_reader: seeking reopens the stream at the requested
// absolute offset rather than supporting backward reads within the buffer.
type FileReader struct {
	f        *os.File
	bufSize  int
	br       *bufio.Reader
	pos      int64
	eof      bool
	closeErr error
}

// OpenFileReader wraps f and seeks to the start.
func OpenFileReader(f *os.File, bufSize int) *FileReader {
	if bufSize <= 0 {
		bufSize = defaultReaderBufferSize
	}
	r := &FileReader{f: f, bufSize: bufSize}
	r.Seek(0)
	return r
}

// Seek reopens the input stream at pos, mirroring sstables.cc's open_at.
func (r *FileReader) Seek(pos int64) {
	r.pos = pos
	r.eof = false
	r.br = bufio.NewReaderSize(io.NewSectionReader(r.f, pos, 1<<62), r.bufSize)
}

// ReadExactly returns exactly n bytes, or fewer at a clean EOF (never an
// error purely for a short final read). The caller
// distinguishes a clean EOF from a mid-record truncation by inspecting
// EOF() and the returned slice length.
func (r *FileReader) ReadExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(r.br, buf)
	r.pos += int64(got)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		r.eof = true
		return buf[:got], nil
	}
	if err != nil {
		return buf[:got], newError(ErrIO, "", err)
	}
	return buf, nil
}

// Read implements io.Reader directly over the current buffered stream, so
// a FileReader can be handed straight to the codec primitives in this
// package (which expect plain io.Reader and detect short reads themselves via
// bufferSizeMismatch) instead of always going through ReadExactly.
func (r *FileReader) Read(p []byte) (int, error) {
	n, err := r.br.Read(p)
	r.pos += int64(n)
	if err == io.EOF {
		r.eof = true
	}
	return n, err
}

// EOF reports whether the current stream has been exhausted.
func (r *FileReader) EOF() bool { return r.eof }

// Pos returns the current logical read offset.
func (r *FileReader) Pos() int64 { return r.pos }

// Close closes the underlying file, propagating any error to the caller.
func (r *FileReader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// Release closes the underlying file and only logs a failure, matching the
// destructor behaviour in sstables.cc ("dropping the reader closes the
// file, logging but not propagating close failures").
func (r *FileReader) Release() {
	if err := r.Close(); err != nil {
		log.Printf("sstable: close failed: %v", err)
	}
}

// SharedFileReader permits multiple concurrent readers over the same
// underlying file handle, each with its own cursor — the analogue of
// shared_file_random_access_reader, used by ReadIndexes.
type SharedFileReader struct {
	f       *os.File
	bufSize int
}

// NewSharedFileReader wraps f for concurrent section reads.
func NewSharedFileReader(f *os.File, bufSize int) *SharedFileReader {
	return &SharedFileReader{f: f, bufSize: bufSize}
}

// ReaderAt returns a fresh FileReader positioned at pos, sharing the
// underlying *os.File but owning an independent buffered cursor. Closing
// the returned reader must not close the shared file, so Close is a no-op
// here; callers that want to release the shared file call
// SharedFileReader.Close directly.
func (s *SharedFileReader) ReaderAt(pos int64) *FileReader {
	r := &FileReader{f: nil, bufSize: s.bufSize}
	if r.bufSize <= 0 {
		r.bufSize = defaultReaderBufferSize
	}
	r.pos = pos
	r.br = bufio.NewReaderSize(io.NewSectionReader(s.f, pos, 1<<62), r.bufSize)
	return r
}

// Close closes the shared underlying file.
func (s *SharedFileReader) Close() error { return s.f.Close() }
