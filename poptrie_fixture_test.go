// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package poptrie

import (
	"encoding/binary"
	"os"
	"sort"
	"testing"
)

// Compiling a CIDR list into a PTV2 file is out of scope here — only the
// on-disk format is. Tests still need compiled fixtures, so this file
// hand-assembles tiny PTV2 blobs directly from (prefix, value) pairs with a
// deliberately naive byte-trie builder: a simple, obviously-correct
// reference used only to cross-check the fast path, never shipped as
// product code.
//
// Only byte-aligned prefix lengths (multiples of 8, including 0) are
// supported — sufficient for every scenario exercised by this package. A
// non-byte-aligned length is a test bug, not a runtime condition, so it
// panics.

type fixturePrefix struct {
	octets []byte // full-length address octets (4 or 16)
	bits   int    // prefix length, must be a multiple of 8
	value  uint16
}

type buildNode struct {
	children map[byte]*buildNode
	leaves   map[byte]uint16
}

func newBuildNode() *buildNode {
	return &buildNode{children: map[byte]*buildNode{}, leaves: map[byte]uint16{}}
}

// insert adds prefix p into the trie rooted at root.
func (root *buildNode) insert(p fixturePrefix) {
	if p.bits%8 != 0 {
		panic("fixture: only byte-aligned prefix lengths are supported")
	}
	byteLen := p.bits / 8

	if byteLen == 0 {
		// A /0 default route matches every first-octet value: expand the
		// leaf bitmap at the root across all 256 possible octets.
		for b := 0; b < 256; b++ {
			root.leaves[byte(b)] = p.value
		}
		return
	}

	n := root
	for d := 0; d < byteLen-1; d++ {
		octet := p.octets[d]
		child, ok := n.children[octet]
		if !ok {
			child = newBuildNode()
			n.children[octet] = child
		}
		n = child
	}
	n.leaves[p.octets[byteLen-1]] = p.value
}

// buildPTV2 serializes prefixes into a minimal valid PTV2 file and returns
// its bytes, using a breadth-first layout so that every node's children land
// in a single contiguous block starting at that node's BaseOffset: child k
// lives at file offset BaseOffset + rank_child(k) * 72.
func buildPTV2(t *testing.T, prefixes []fixturePrefix) []byte {
	t.Helper()

	root := newBuildNode()
	for _, p := range prefixes {
		root.insert(p)
	}

	type flatNode struct {
		n          *buildNode
		baseOffset uint32
		baseIndex  uint32
	}

	flat := []*flatNode{{n: root}}

	for i := 0; i < len(flat); i++ {
		cur := flat[i]
		if len(cur.n.children) == 0 {
			continue
		}
		cur.baseOffset = 16 + uint32(len(flat))*nodeSize
		for _, octet := range sortedKeys(cur.n.children) {
			flat = append(flat, &flatNode{n: cur.n.children[octet]})
		}
	}

	var values []uint16
	for _, fn := range flat {
		fn.baseIndex = uint32(len(values))
		for _, octet := range sortedLeafKeys(fn.n.leaves) {
			values = append(values, fn.n.leaves[octet])
		}
	}

	nodeCount := uint32(len(flat))
	valuesCount := uint32(len(values))

	out := make([]byte, 16+int(nodeCount)*nodeSize+int(valuesCount)*2)
	copy(out[0:4], magic[:])
	binary.LittleEndian.PutUint32(out[4:8], nodeCount)
	binary.LittleEndian.PutUint32(out[8:12], valuesCount)
	// out[12:16] reserved, left zero

	for i, fn := range flat {
		offset := 16 + i*nodeSize
		var childBM, leafBM bitmap256
		for octet := range fn.n.children {
			setBit(&childBM, octet)
		}
		for octet := range fn.n.leaves {
			setBit(&leafBM, octet)
		}
		copy(out[offset:offset+32], childBM[:])
		copy(out[offset+32:offset+64], leafBM[:])
		binary.LittleEndian.PutUint32(out[offset+64:offset+68], fn.baseOffset)
		binary.LittleEndian.PutUint32(out[offset+68:offset+72], fn.baseIndex)
	}

	valuesStart := 16 + int(nodeCount)*nodeSize
	for i, v := range values {
		at := valuesStart + i*2
		binary.LittleEndian.PutUint16(out[at:at+2], v)
	}

	return out
}

// writePTV2 writes the serialized fixture to a temp file and returns its
// path, ready for Open.
func writePTV2(t *testing.T, prefixes []fixturePrefix) string {
	t.Helper()
	data := buildPTV2(t, prefixes)
	f, err := os.CreateTemp(t.TempDir(), "poptrie-*.bin")
	if err != nil {
		t.Fatalf("create temp fixture: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write temp fixture: %v", err)
	}
	return f.Name()
}

func setBit(b *bitmap256, k byte) {
	b[k>>3] |= 1 << (7 - (k & 7))
}

func sortedKeys(m map[byte]*buildNode) []byte {
	keys := make([]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedLeafKeys(m map[byte]uint16) []byte {
	keys := make([]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// v4 and v6 are small helpers for building fixturePrefix.octets from a
// dotted-quad or hex literal at test-authoring time.
func v4(a, b, c, d byte) []byte { return []byte{a, b, c, d} }
