// Command sstabledump loads an sstable's components and prints a summary
// of what it finds, without ever writing to the sstable it inspects.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bsm/sstable"
)

func main() {
	dir := flag.String("dir", ".", "directory containing the sstable component files")
	generation := flag.Uint64("generation", 0, "sstable generation number")
	flag.Parse()

	if err := run(*dir, *generation); err != nil {
		fmt.Fprintln(os.Stderr, "sstabledump:", err)
		os.Exit(1)
	}
}

func run(dir string, generation uint64) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	t := sstable.Open(abs, generation, nil)
	defer t.Close()

	if err := t.Load(context.Background()); err != nil {
		return err
	}

	fmt.Printf("generation:    %d\n", generation)
	fmt.Printf("data size:     %d bytes\n", t.DataSize())

	onDisk, err := t.BytesOnDisk()
	if err != nil {
		return err
	}
	fmt.Printf("bytes on disk: %d\n", onDisk)

	for _, c := range []sstable.Component{
		sstable.ComponentData,
		sstable.ComponentIndex,
		sstable.ComponentSummary,
		sstable.ComponentStatistics,
		sstable.ComponentFilter,
		sstable.ComponentCompressionInfo,
		sstable.ComponentCRC,
		sstable.ComponentDigest,
	} {
		fmt.Printf("  %-20s present=%v\n", c.String(), t.HasComponent(c))
	}

	entries, err := t.ReadIndexes(0, 1<<20)
	if err != nil {
		return err
	}
	fmt.Printf("index entries: %d\n", len(entries))
	for i, e := range entries {
		if i >= 10 {
			fmt.Printf("  ... (%d more)\n", len(entries)-i)
			break
		}
		fmt.Printf("  [%s] -> data offset %s\n", quoteKey(e.Key), strconv.FormatUint(e.Position, 10))
	}

	if summary := t.Summary(); summary != nil {
		if err := printJSON("summary header", summary.Header); err != nil {
			return err
		}
	}
	if stats := t.Statistics(); stats != nil {
		if err := printJSON("statistics", stats); err != nil {
			return err
		}
	}

	return nil
}

func printJSON(label string, v interface{}) error {
	enc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s:\n%s\n", label, enc)
	return nil
}

func quoteKey(key []byte) string {
	if len(key) > 32 {
		key = key[:32]
	}
	return strconv.Quote(string(key))
}
