// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package poptrie is a read-only, memory-mapped lookup engine for IP-address
// membership and per-prefix value retrieval over a compiled database of IPv4
// and IPv6 CIDR prefixes. The index is a stride-8 poptrie: a
// popcount-compressed multi-way trie laid out in a single contiguous binary
// blob (see doc.go for the on-disk format), traversed with constant-time
// per-level popcount arithmetic and no per-query allocation.
package poptrie

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/metacubex/poptrie/internal/mmapfile"
)

const (
	nodeSize  = 72
	magicSize = 4
	// valueSize is the byte width of a single LE u16 value.
	valueSize = 2
)

var magic = [magicSize]byte{'P', 'T', 'V', '2'}

// Index is an opened, memory-mapped poptrie database. It is safe for
// concurrent use by any number of goroutines for the remainder of its life:
// every field below is set once in Open and never mutated again, except the
// corruption counter, which is only ever incremented atomically.
//
// Index is released with Close. If Close runs while another goroutine is
// still querying the index, behavior is undefined — the caller is
// responsible for keeping the Index alive across every in-flight call,
// typically via reference counting in the layer embedding this package.
type Index struct {
	file *mmapfile.File
	data []byte

	nodesStart  uint32
	valuesStart uint32
	valuesCount uint32
	legacy      bool

	workers int

	corrupt corruptCounter
}

// Option configures an Index at Open time.
type Option func(*Index)

// WithWorkers overrides the fan-out width used by the batch methods
// (ContainsPacked, LookupPacked, ContainsStrings, LookupStrings). n <= 0 is
// ignored and the default (runtime.NumCPU()) is kept.
func WithWorkers(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// Open maps path read-only and validates its header.
//
// A PTV2-magic file is validated against its declared node_count/values_count
// with overflow-checked arithmetic; a magic-less file is accepted as the
// legacy headerless layout only if its length is a positive multiple of 72.
// Magic match always wins over the legacy heuristic — a file that merely
// happens to be a multiple of 72 bytes long is still read as PTV2 if its
// first four bytes say so.
func Open(path string, opts ...Option) (*Index, error) {
	f, err := mmapfile.Open(path)
	if err != nil {
		return nil, newIOError("open", err)
	}

	idx, err := newIndex(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	idx.workers = defaultWorkers()
	for _, opt := range opts {
		opt(idx)
	}

	logrus.WithFields(logrus.Fields{
		"path":         path,
		"nodes_start":  idx.nodesStart,
		"values_start": idx.valuesStart,
		"values_count": idx.valuesCount,
		"legacy":       idx.legacy,
	}).Debug("poptrie: index opened")

	return idx, nil
}

func newIndex(f *mmapfile.File) (*Index, error) {
	data := f.Bytes()
	n := len(data)

	if n >= 16 && string(data[:magicSize]) == string(magic[:]) {
		return newIndexV2(f, data)
	}

	if n > 0 && n%nodeSize == 0 {
		return &Index{
			file:        f,
			data:        data,
			nodesStart:  0,
			valuesStart: uint32(n),
			valuesCount: 0,
			legacy:      true,
		}, nil
	}

	return nil, newInvalidFileError("alignment mismatch; expected multiple of 72")
}

func newIndexV2(f *mmapfile.File, data []byte) (*Index, error) {
	nodeCount := binary.LittleEndian.Uint32(data[4:8])
	valuesCount := binary.LittleEndian.Uint32(data[8:12])
	// reserved bytes [12:16] are read (implicitly, by slicing past them)
	// but never interpreted.

	nodesBytes, ok := mulOverflowU32(nodeCount, nodeSize)
	if !ok {
		return nil, newInvalidFileError("node_count overflow")
	}
	valuesBytes, ok := mulOverflowU32(valuesCount, valueSize)
	if !ok {
		return nil, newInvalidFileError("values_count overflow")
	}

	nodesStart := uint32(16)
	valuesStart, ok := addOverflowU32(nodesStart, nodesBytes)
	if !ok {
		return nil, newInvalidFileError("nodes region overflow")
	}
	total, ok := addOverflowU32(valuesStart, valuesBytes)
	if !ok {
		return nil, newInvalidFileError("values region overflow")
	}

	if uint64(len(data)) != uint64(total) {
		return nil, newInvalidFileError(fmt.Sprintf(
			"file length %d does not match header (expected %d)", len(data), total))
	}

	return &Index{
		file:        f,
		data:        data,
		nodesStart:  nodesStart,
		valuesStart: valuesStart,
		valuesCount: valuesCount,
		legacy:      false,
	}, nil
}

// mulOverflowU32 returns a*b and whether the product fits in a uint32 when
// computed in 64-bit arithmetic, the same explicit-overflow-check style
// used for size arithmetic at other file-format boundaries.
func mulOverflowU32(a, b uint32) (uint32, bool) {
	p := uint64(a) * uint64(b)
	if p > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(p), true
}

func addOverflowU32(a, b uint32) (uint32, bool) {
	s := uint64(a) + uint64(b)
	if s > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(s), true
}

// Close tears down the memory mapping. Safe to call once per Index.
func (idx *Index) Close() error {
	return idx.file.Close()
}

// Stat returns a read-only snapshot of the index's load-time layout.
func (idx *Index) Stat() Stats {
	nodeCount := uint32(0)
	if !idx.legacy {
		nodeCount = (idx.valuesStart - idx.nodesStart) / nodeSize
	} else {
		nodeCount = uint32(len(idx.data)) / nodeSize
	}
	return Stats{
		NodeCount:   nodeCount,
		ValuesCount: idx.valuesCount,
		NodesStart:  idx.nodesStart,
		ValuesStart: idx.valuesStart,
		Legacy:      idx.legacy,
	}
}

// CorruptCount returns the number of CorruptIndex classifications observed
// at query time since Open. It never affects query results; it is purely
// observability.
func (idx *Index) CorruptCount() uint64 {
	return idx.corrupt.load()
}

// Dump writes a human-readable rendering of the trie structure to w, walking
// the mapped node region from the root. Intended for debugging and tests,
// in the spirit of github.com/metacubex/bart's dump/dumpRec development aid,
// adapted to walk file offsets instead of an in-memory node.children/
// node.prefixes pair.
func (idx *Index) Dump(w io.Writer) {
	fmt.Fprintf(w, "### nodes_start=%d values_start=%d values_count=%d legacy=%v\n",
		idx.nodesStart, idx.valuesStart, idx.valuesCount, idx.legacy)
	if len(idx.data) < int(idx.nodesStart)+nodeSize {
		fmt.Fprintln(w, "(empty)")
		return
	}
	idx.dumpNode(w, idx.nodesStart, 0, nil)
}

func (idx *Index) dumpNode(w io.Writer, offset uint32, depth int, path []byte) {
	if int(offset)+nodeSize > len(idx.data) {
		fmt.Fprintf(w, "%s<out-of-range node at %d>\n", strings.Repeat(".", depth), offset)
		return
	}

	var child, leaf bitmap256
	copy(child[:], idx.data[offset:offset+32])
	copy(leaf[:], idx.data[offset+32:offset+64])
	baseOffset := binary.LittleEndian.Uint32(idx.data[offset+64 : offset+68])
	baseIndex := binary.LittleEndian.Uint32(idx.data[offset+68 : offset+72])

	indent := strings.Repeat(".", depth)
	fmt.Fprintf(w, "%s[depth %d] path=%v children=%d leaves=%d base_offset=%d base_index=%d\n",
		indent, depth, path, child.popcount(), leaf.popcount(), baseOffset, baseIndex)

	for b := 0; b < 256; b++ {
		octet := byte(b)
		if !child.test(octet) {
			continue
		}
		childOffset := baseOffset + uint32(child.rank(octet))*nodeSize
		idx.dumpNode(w, childOffset, depth+1, append(append([]byte{}, path...), octet))
	}
}
