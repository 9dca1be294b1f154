package sstable

import (
	"bytes"
	"io"
)

// CompositeMarker selects the end-of-component byte written after the last
// component of a composite clustering key, used to frame open/closed range
// bounds in Data.db (sstables.cc composite_marker, used by
// write_range_tombstone to bracket a deletion with a start and end marker
// that straddle every clustering value in between).
type CompositeMarker int8

const (
	MarkerNone      CompositeMarker = 0
	MarkerStartRange CompositeMarker = -1
	MarkerEndRange   CompositeMarker = 1
)

// Composite is an exploded clustering key or column-name prefix: an ordered
// list of components, each framed on the wire as
// length:u16 ‖ bytes ‖ eoc:i8. Every component's eoc is 0 except the last,
// which carries the CompositeMarker (sstables.cc composite::from_exploded).
type Composite struct {
	Components []([]byte)
	Marker     CompositeMarker
}

// FromExploded builds a Composite from an already-split list of column-name
// parts plus a trailing marker.
func FromExploded(parts [][]byte, marker CompositeMarker) Composite {
	return Composite{Components: parts, Marker: marker}
}

// Bytes serializes the composite to its on-disk representation without the
// leading u16 total-length prefix that write_column_name adds around it.
func (c Composite) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	for i, part := range c.Components {
		n, err := narrowLength[uint16](len(part))
		if err != nil {
			return nil, err
		}
		if err := writeUint16(&buf, n); err != nil {
			return nil, err
		}
		if _, err := buf.Write(part); err != nil {
			return nil, err
		}
		eoc := int8(0)
		if i == len(c.Components)-1 {
			eoc = int8(c.Marker)
		}
		if err := writeUint8(&buf, uint8(eoc)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Size returns the serialized byte length of the composite, without having
// to build it, matching composite::size() used by write_column_name to
// compute the outer disk_string length.
func (c Composite) Size() int {
	n := 0
	for _, part := range c.Components {
		n += 2 + len(part) + 1
	}
	return n
}

// WriteColumnName writes a compound (multi-component) column name:
// clustering_key ‖ column_names, framed together behind a single u16
// length, per sstables.cc's write_column_name(composite, suffix, marker)
// overload. When suffix has no components (so the suffix composite would
// be the marker alone) and the clustering key is not empty, the trailing
// eoc byte of the clustering key is replaced by marker instead, matching
// sstables.cc's "if (c.size() == 1)" branch.
func WriteColumnName(w io.Writer, clusteringKey Composite, suffix [][]byte, marker CompositeMarker, tracker *ColumnNameTracker) error {
	if tracker != nil {
		tracker.observe(suffix)
	}

	suffixComposite := FromExploded(suffix, marker)
	suffixBytes, err := suffixComposite.Bytes()
	if err != nil {
		return err
	}

	ckBytes, err := clusteringKey.Bytes()
	if err != nil {
		return err
	}
	if len(suffixComposite.Components) == 0 && len(ckBytes) > 0 {
		// The marker is not itself a component: fold it into the
		// clustering key's trailing eoc byte instead of appending a new,
		// otherwise-empty component.
		ckBytes[len(ckBytes)-1] = byte(marker)
	}

	total := len(ckBytes) + len(suffixBytes)
	sz, err := narrowLength[uint16](total)
	if err != nil {
		return err
	}
	if err := writeUint16(w, sz); err != nil {
		return err
	}
	if _, err := w.Write(ckBytes); err != nil {
		return err
	}
	_, err = w.Write(suffixBytes)
	return err
}

// WriteSimpleColumnName writes a non-compound column name: a bare
// disk_string<u16>, used by simple (non-compound) schemas (sstables.cc's
// write_column_name(bytes_view) overload).
func WriteSimpleColumnName(w io.Writer, name []byte, tracker *ColumnNameTracker) error {
	if tracker != nil {
		tracker.observe([][]byte{name})
	}
	return writeSizedString[uint16](w, name)
}

// ColumnNameTracker folds every column name written into a file into the
// running min/max seen so far, feeding StatsMetadata.MinColumnNames /
// MaxColumnNames (sstables.cc column_name_helper::min_components /
// max_components).
type ColumnNameTracker struct {
	min [][]byte
	max [][]byte
}

// observe folds components into the running per-index min/max, growing
// both slices to the longest composite seen so far. Each index is
// compared independently of the others (column_name_helper::min_components
// / max_components track one extreme per component position, not one
// extreme whole tuple).
func (t *ColumnNameTracker) observe(components [][]byte) {
	t.min = componentwiseExtreme(t.min, components, false)
	t.max = componentwiseExtreme(t.max, components, true)
}

// componentwiseExtreme extends cur to len(candidate) if needed, then
// independently keeps whichever of cur[i]/candidate[i] is the min
// (greater=false) or max (greater=true) at each index i.
func componentwiseExtreme(cur, candidate [][]byte, greater bool) [][]byte {
	if len(candidate) > len(cur) {
		grown := make([][]byte, len(candidate))
		copy(grown, cur)
		cur = grown
	}
	for i, c := range candidate {
		if cur[i] == nil || (greater && bytes.Compare(c, cur[i]) > 0) || (!greater && bytes.Compare(c, cur[i]) < 0) {
			cur[i] = append([]byte(nil), c...)
		}
	}
	return cur
}

// MinColumnNames returns the tracked minimum, one entry per distinct
// component position observed, flattened for StatsMetadata.
func (t *ColumnNameTracker) MinColumnNames() [][]byte { return t.min }

// MaxColumnNames returns the tracked maximum, flattened for StatsMetadata.
func (t *ColumnNameTracker) MaxColumnNames() [][]byte { return t.max }
