package sstable

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
)

// sstableFilename renders the fixed filename grammar: <version>-<generation>
// -<format>-<component>. The format part is always "big"; the version is
// whatever prefix the caller passes (SSTable.Filename passes
// SupportedVersion).
func sstableFilename(prefix string, generation uint64, component Component) string {
	return fmt.Sprintf("%s-%d-big-%s", prefix, generation, component)
}

// SupportedVersion and SupportedFormat are the only (version, format) pair
// this codec understands. Additional pairs may be added in the future but
// a given pair is never re-used for a different layout.
const (
	SupportedVersion = "la"
	SupportedFormat  = "big"
)

// SSTable is the façade over one sstable's nine possible component files:
// construct with Open, then either Load an existing set of files or
// WriteComponents a fresh one. Not safe for concurrent use — callers must
// serialize access to a single SSTable the way a single cooperative-
// scheduler fiber would.
type SSTable struct {
	dir        string
	generation uint64
	io         IOEngine

	components map[Component]struct{}

	statistics      *Statistics
	compressionInfo *CompressionInfo
	crc             *CRC
	filter          *Filter
	summary         *Summary

	indexFile *SharedFileReader
	dataFile  *os.File
	compData  *CompressedReader

	dataSize          uint64
	bytesOnDisk        uint64
	bytesOnDiskCached  bool
	markedForDeletion bool
}

// Open constructs an SSTable handle without touching disk. Callers then
// call either Load or WriteComponents.
func Open(dir string, generation uint64, io IOEngine) *SSTable {
	if io == nil {
		io = DefaultIOEngine
	}
	return &SSTable{dir: dir, generation: generation, io: io}
}

// Filename returns the on-disk path of the given component.
func (s *SSTable) Filename(c Component) string {
	return componentPath(s.dir, SupportedVersion, s.generation, c)
}

// HasComponent reports whether c is present per the TOC (or, before
// loading, per what WriteComponents has written so far).
func (s *SSTable) HasComponent(c Component) bool {
	_, ok := s.components[c]
	return ok
}

// DataSize returns the logical (uncompressed) byte length of Data.db.
func (s *SSTable) DataSize() uint64 { return s.dataSize }

// Statistics returns the Statistics.db content loaded by Load, or the
// sealed statistics written by WriteComponents. Nil until one of those
// has run.
func (s *SSTable) Statistics() *Statistics { return s.statistics }

// Summary returns the Summary.db content loaded by Load, or the summary
// written by WriteComponents. Nil until one of those has run.
func (s *SSTable) Summary() *Summary { return s.summary }

// BytesOnDisk sums the physical size of every present component file,
// caching the result.
func (s *SSTable) BytesOnDisk() (uint64, error) {
	if s.bytesOnDiskCached {
		return s.bytesOnDisk, nil
	}
	var total uint64
	for c := range s.components {
		sz, err := s.io.FileSize(s.Filename(c))
		if err != nil {
			return 0, err
		}
		total += uint64(sz)
	}
	s.bytesOnDisk = total
	s.bytesOnDiskCached = true
	return s.bytesOnDisk, nil
}

// Load parses TOC, then Statistics, CompressionInfo (if present), Filter,
// Summary, then opens Index and Data for random reads.
func (s *SSTable) Load(ctx context.Context) error {
	tocData, err := s.readWholeFile(s.Filename(ComponentTOC))
	if err != nil {
		return err
	}
	components, err := ParseTOC(tocData)
	if err != nil {
		return err
	}
	s.components = components

	if err := ctx.Err(); err != nil {
		return err
	}

	statsData, err := s.readWholeFile(s.Filename(ComponentStatistics))
	if err != nil {
		return err
	}
	stats, err := ReadStatistics(statsData)
	if err != nil {
		return err
	}
	s.statistics = stats

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.HasComponent(ComponentCompressionInfo) {
		f, err := s.openComponent(ComponentCompressionInfo)
		if err != nil {
			return err
		}
		ci, err := ReadCompressionInfo(f)
		f.Close()
		if err != nil {
			return err
		}
		s.compressionInfo = ci
	} else if s.HasComponent(ComponentCRC) {
		f, err := s.openComponent(ComponentCRC)
		if err != nil {
			return err
		}
		crc, err := ReadCRC(f)
		f.Close()
		if err != nil {
			return err
		}
		s.crc = crc
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.HasComponent(ComponentFilter) {
		data, err := s.readWholeFile(s.Filename(ComponentFilter))
		if err != nil {
			return err
		}
		filter, err := ReadFilter(newByteReader(data))
		if err != nil {
			return err
		}
		s.filter = filter
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	sf, err := s.openComponent(ComponentSummary)
	if err != nil {
		return err
	}
	summary, err := ReadSummary(sf)
	sf.Close()
	if err != nil {
		return err
	}
	s.summary = summary

	if err := ctx.Err(); err != nil {
		return err
	}

	indexFile, err := s.io.OpenFileDMA(s.Filename(ComponentIndex), os.O_RDONLY)
	if err != nil {
		return rewriteNotFound(s.Filename(ComponentIndex), err)
	}
	s.indexFile = NewSharedFileReader(indexFile, defaultReaderBufferSize)

	dataFile, err := s.io.OpenFileDMA(s.Filename(ComponentData), os.O_RDONLY)
	if err != nil {
		return rewriteNotFound(s.Filename(ComponentData), err)
	}
	s.dataFile = dataFile

	if s.compressionInfo != nil {
		cr, err := NewCompressedReader(dataFile, s.compressionInfo)
		if err != nil {
			return err
		}
		s.compData = cr
		s.dataSize = s.compressionInfo.DataLen
	} else {
		fi, err := dataFile.Stat()
		if err != nil {
			return newError(ErrIO, s.Filename(ComponentData), err)
		}
		s.dataSize = uint64(fi.Size())
	}

	return nil
}

func (s *SSTable) openComponent(c Component) (*os.File, error) {
	f, err := s.io.OpenFileDMA(s.Filename(c), os.O_RDONLY)
	if err != nil {
		return nil, rewriteNotFound(s.Filename(c), err)
	}
	return f, nil
}

func (s *SSTable) readWholeFile(path string) ([]byte, error) {
	f, err := s.io.OpenFileDMA(path, os.O_RDONLY)
	if err != nil {
		return nil, rewriteNotFound(path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, newError(ErrIO, path, err)
	}
	buf := make([]byte, fi.Size())
	if _, err := io.ReadFull(f, buf); err != nil && err != io.EOF {
		return nil, newError(ErrIO, path, err)
	}
	return buf, nil
}

// byteReader adapts a []byte to io.Reader for the handful of component
// parsers (e.g. ReadFilter) that only need sequential reads.
type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// WriteComponents orchestrates the full partition-encoder pass and writes
// every resulting component, finishing with TOC — universally last, for
// crash safety, rather than the inconsistent store()/write_components()
// ordering some implementations use.
func (s *SSTable) WriteComponents(ctx context.Context, source MutationSource, estimatedPartitionCount uint64, opts EncoderOptions) error {
	if err := s.io.TouchDirectory(s.dir); err != nil {
		return err
	}

	opts.EstimatedPartitionCount = estimatedPartitionCount

	dataFile, err := s.io.OpenFileDMA(s.Filename(ComponentData), os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return newError(ErrIO, s.Filename(ComponentData), err)
	}
	indexFile, err := s.io.OpenFileDMA(s.Filename(ComponentIndex), os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return newError(ErrIO, s.Filename(ComponentIndex), err)
	}

	enc, err := NewEncoder(dataFile, indexFile, opts)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := source.Next()
		if err != nil {
			return err
		}
		if p == nil {
			break
		}
		if err := enc.WritePartition(p); err != nil {
			return err
		}
	}

	result, err := enc.Finish()
	if err != nil {
		return err
	}

	s.summary = result.Summary
	s.filter = result.Filter
	s.statistics = &Statistics{
		Validation: &ValidationMetadata{
			Partitioner:         opts.Schema.Partitioner(),
			BloomFilterFPChance: opts.Schema.BloomFilterFPChance(),
		},
		Compaction: &CompactionMetadata{},
		Stats:      result.Statistics,
	}
	s.compressionInfo = result.CompressionInfo
	s.crc = result.CRC

	components := map[Component]struct{}{
		ComponentData:       {},
		ComponentIndex:      {},
		ComponentSummary:    {},
		ComponentStatistics: {},
		ComponentDigest:     {},
	}
	if s.compressionInfo != nil {
		components[ComponentCompressionInfo] = struct{}{}
	} else {
		components[ComponentCRC] = struct{}{}
	}
	if s.filter != nil {
		components[ComponentFilter] = struct{}{}
	}
	s.components = components

	if err := s.writeSimpleComponent(ComponentStatistics, func(w writerCloser) error {
		return WriteStatistics(w, s.statistics)
	}); err != nil {
		return err
	}

	if s.compressionInfo != nil {
		if err := s.writeSimpleComponent(ComponentCompressionInfo, func(w writerCloser) error {
			return WriteCompressionInfo(w, s.compressionInfo)
		}); err != nil {
			return err
		}
	} else {
		if err := s.writeSimpleComponent(ComponentCRC, func(w writerCloser) error {
			return WriteCRC(w, s.crc)
		}); err != nil {
			return err
		}
	}

	if s.filter != nil {
		if err := s.writeSimpleComponent(ComponentFilter, func(w writerCloser) error {
			return WriteFilter(w, s.filter)
		}); err != nil {
			return err
		}
	}

	if err := s.writeSimpleComponent(ComponentSummary, func(w writerCloser) error {
		return WriteSummary(w, s.summary)
	}); err != nil {
		return err
	}

	if err := s.writeSimpleComponent(ComponentDigest, func(w writerCloser) error {
		_, err := w.Write(EncodeDigest(result.FullChecksum))
		return err
	}); err != nil {
		return err
	}

	// TOC is the commit marker: written only once every other component
	// has been sealed successfully.
	return s.writeSimpleComponent(ComponentTOC, func(w writerCloser) error {
		_, err := w.Write(EncodeTOC(s.components))
		return err
	})
}

// Store rewrites TOC, Statistics, CompressionInfo-or-CRC, Filter and
// Summary without touching Data, Index or Digest (sstable::store in
// sstables.cc) — a metadata-only flush for a caller that has mutated the
// in-memory component values (e.g. after compaction bookkeeping) on an
// sstable whose Data/Index/Digest were already committed by a prior Load
// or WriteComponents call. Unlike WriteComponents, TOC is written first,
// matching store()'s own ordering; this is safe only because Data/Index
// never change underneath it.
func (s *SSTable) Store(ctx context.Context) error {
	if s.components == nil {
		return malformed("cannot store: sstable has no loaded or written component set")
	}

	if err := s.writeSimpleComponent(ComponentTOC, func(w writerCloser) error {
		_, err := w.Write(EncodeTOC(s.components))
		return err
	}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.writeSimpleComponent(ComponentStatistics, func(w writerCloser) error {
		return WriteStatistics(w, s.statistics)
	}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.compressionInfo != nil {
		if err := s.writeSimpleComponent(ComponentCompressionInfo, func(w writerCloser) error {
			return WriteCompressionInfo(w, s.compressionInfo)
		}); err != nil {
			return err
		}
	} else if s.crc != nil {
		if err := s.writeSimpleComponent(ComponentCRC, func(w writerCloser) error {
			return WriteCRC(w, s.crc)
		}); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.filter != nil {
		if err := s.writeSimpleComponent(ComponentFilter, func(w writerCloser) error {
			return WriteFilter(w, s.filter)
		}); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return s.writeSimpleComponent(ComponentSummary, func(w writerCloser) error {
		return WriteSummary(w, s.summary)
	})
}

type writerCloser interface {
	Write([]byte) (int, error)
}

func (s *SSTable) writeSimpleComponent(c Component, fn func(writerCloser) error) error {
	f, err := s.io.OpenFileDMA(s.Filename(c), os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return newError(ErrIO, s.Filename(c), err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return newError(ErrIO, s.Filename(c), err)
	}
	return f.Close()
}

// ReadIndexes seeks Index.db to position and parses up to quantity
// entries, tolerating a clean EOF at an entry boundary (returning fewer
// entries, no error) while still failing on a truncated entry. The
// EOF-vs-malformed distinction is made by recording the stream offset
// before each entry read and only treating a buffer_size_mismatch as a
// clean EOF if it happened at that exact offset.
func (s *SSTable) ReadIndexes(position int64, quantity uint64) ([]*IndexEntry, error) {
	r := s.indexFile.ReaderAt(position)
	entries := make([]*IndexEntry, 0, quantity)
	for uint64(len(entries)) < quantity {
		before := r.Pos()
		entry, err := ReadIndexEntry(r)
		if err != nil {
			if se, ok := err.(*SSTableError); ok && se.Kind == ErrBufferSizeMismatch {
				if r.Pos() == before {
					break // clean EOF: no bytes at all were consumed for this entry
				}
				return nil, malformed("truncated index entry at offset %d", before)
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DataRead returns length raw bytes of the logical Data stream starting at
// pos, transparently decompressing if the sstable is compressed.
func (s *SSTable) DataRead(pos int64, length int) ([]byte, error) {
	if s.compData != nil {
		return s.compData.ReadAt(pos, length)
	}
	buf := make([]byte, length)
	n, err := s.dataFile.ReadAt(buf, pos)
	if err != nil && n < length {
		return nil, newError(ErrIO, s.Filename(ComponentData), err)
	}
	return buf, nil
}

// MarkForDeletion flags the sstable for best-effort component cleanup on
// Close.
func (s *SSTable) MarkForDeletion() { s.markedForDeletion = true }

// Close releases open file handles and, if MarkForDeletion was called,
// removes every present component file. Removal failures are logged, not
// returned, matching the destructor-time best-effort cleanup style common
// to implementations of this format.
func (s *SSTable) Close() error {
	if s.indexFile != nil {
		s.indexFile.Close()
	}
	if s.dataFile != nil {
		s.dataFile.Close()
	}
	if s.markedForDeletion {
		for c := range s.components {
			if err := s.io.RemoveFile(s.Filename(c)); err != nil {
				log.Printf("sstable: failed to remove %s: %v", s.Filename(c), err)
			}
		}
	}
	return nil
}
