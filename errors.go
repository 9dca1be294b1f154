package sstable

import (
	"os"

	"github.com/pkg/errors"
)

// ErrorKind classifies the failure modes described by the sstable codec.
type ErrorKind int

const (
	// ErrMalformed marks a structural violation of the on-disk grammar:
	// an oversized TOC, an unrecognized component name, a size field that
	// overflows on write, or an EOF encountered mid-record on read.
	ErrMalformed ErrorKind = iota
	// ErrFileNotFound marks a TOC or declared component file missing on load.
	ErrFileNotFound
	// ErrBufferSizeMismatch marks a short read; almost always rewritten as
	// ErrMalformed at the call site, except by ReadIndexEntry (for
	// ReadIndexes) and ReadCRC, which treat it as a possible end of stream.
	ErrBufferSizeMismatch
	// ErrOverflow marks a size-narrowing failure on write.
	ErrOverflow
	// ErrIO marks an error propagated unchanged from the I/O layer.
	ErrIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformed:
		return "malformed_sstable"
	case ErrFileNotFound:
		return "file_not_found"
	case ErrBufferSizeMismatch:
		return "buffer_size_mismatch"
	case ErrOverflow:
		return "overflow"
	case ErrIO:
		return "io_error"
	default:
		return "unknown"
	}
}

// SSTableError is the concrete error type this package uses to classify
// codec failures. It carries a stable Kind alongside whatever
// path and underlying error triggered it, so callers can classify failures
// without string-matching.
type SSTableError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *SSTableError) Error() string {
	if e.Path != "" {
		return e.Kind.String() + ": " + e.Path + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *SSTableError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, path string, err error) *SSTableError {
	return &SSTableError{Kind: kind, Path: path, Err: err}
}

func malformed(format string, args ...interface{}) error {
	return &SSTableError{Kind: ErrMalformed, Err: errors.Errorf(format, args...)}
}

func wrapMalformed(err error, format string, args ...interface{}) error {
	return &SSTableError{Kind: ErrMalformed, Err: errors.Wrapf(err, format, args...)}
}

var errBufferSizeMismatch = errors.New("buffer improperly sized to hold requested data")

// bufferSizeMismatch is raised by the scalar codec whenever a read returns
// fewer bytes than requested. Most component parsers rewrite it into
// ErrMalformed immediately; ReadIndexEntry passes it through for
// ReadIndexes, and ReadCRC stops at it.
func bufferSizeMismatch(got, want int) error {
	return &SSTableError{Kind: ErrBufferSizeMismatch, Err: errors.Wrapf(errBufferSizeMismatch, "got %d, expected %d", got, want)}
}

// rewriteNotFound turns an os.ErrNotExist-flavoured error into
// ErrFileNotFound, the way sstables.cc's read_toc/read_simple catch a
// std::system_error with ENOENT and rethrow as malformed_sstable_exception's
// file-not-found sibling.
func rewriteNotFound(path string, err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return newError(ErrFileNotFound, path, err)
	}
	return newError(ErrIO, path, err)
}

func overflow(to, from interface{}) error {
	return &SSTableError{Kind: ErrOverflow, Err: errors.Errorf("assigning %v to narrower type caused an overflow (got %v)", from, to)}
}
