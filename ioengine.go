package sstable

import (
	"os"
	"path/filepath"
)

// IOEngine abstracts the filesystem calls SSTable.Load/Store make, the way
// bsm/bfs abstracts blob storage elsewhere — kept as a seam for tests and
// for callers that want sstables on something other than a local disk
// (e.g. an object-store-backed DMA stand-in), without pulling in an
// actual blob-storage dependency.
type IOEngine interface {
	OpenFileDMA(path string, flag int) (*os.File, error)
	FileSize(path string) (int64, error)
	RemoveFile(path string) error
	TouchDirectory(dir string) error
}

type defaultIOEngine struct{}

// DefaultIOEngine is the IOEngine backed directly by the os package.
var DefaultIOEngine IOEngine = defaultIOEngine{}

func (defaultIOEngine) OpenFileDMA(path string, flag int) (*os.File, error) {
	return os.OpenFile(path, flag, 0644)
}

func (defaultIOEngine) FileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, rewriteNotFound(path, err)
	}
	return fi.Size(), nil
}

func (defaultIOEngine) RemoveFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return newError(ErrIO, path, err)
	}
	return nil
}

func (defaultIOEngine) TouchDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newError(ErrIO, dir, err)
	}
	f, err := os.Open(dir)
	if err != nil {
		return newError(ErrIO, dir, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return newError(ErrIO, dir, err)
	}
	return nil
}

// componentPath joins a directory, keyspace-independent basename, generation
// and component into the on-disk filename sstables use, per
// sstable::filename in sstables.cc.
func componentPath(dir, prefix string, generation uint64, component Component) string {
	return filepath.Join(dir, sstableFilename(prefix, generation, component))
}
