// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package poptrie

import "encoding/binary"

// Contains reports whether any stored prefix contains ip, which must be a
// 4-octet (IPv4) or 16-octet (IPv6) slice in network byte order.
func (idx *Index) Contains(ip []byte) bool {
	found, _ := idx.walk(ip, false)
	return found
}

// Lookup returns the 16-bit value associated with the longest prefix
// matching ip, or 0 if no prefix matches. ip must be a 4-octet or 16-octet
// slice in network byte order.
func (idx *Index) Lookup(ip []byte) uint16 {
	_, value := idx.walk(ip, true)
	return value
}

// walk runs the shared leaf/child/descend state machine that both Contains
// and Lookup build on. needValue controls whether the value region is
// consulted on a leaf hit; contains-only callers skip that work entirely.
func (idx *Index) walk(ip []byte, needValue bool) (found bool, value uint16) {
	cursor := idx.nodesStart

	for _, b := range ip {
		var child, leaf bitmap256

		if !idx.readBitmaps(cursor, &child, &leaf) {
			idx.corrupt.incr()
			return false, 0
		}

		if leaf.test(b) {
			if !needValue {
				return true, 0
			}
			return true, idx.leafValue(cursor, &leaf, b)
		}

		if !child.test(b) {
			return false, 0
		}

		baseOffset, ok := idx.readBaseOffset(cursor)
		if !ok {
			idx.corrupt.incr()
			return false, 0
		}

		next, ok := addOverflowU32(baseOffset, uint32(child.rank(b))*nodeSize)
		if !ok || int(next)+nodeSize > len(idx.data) {
			idx.corrupt.incr()
			return false, 0
		}
		cursor = next
	}

	return false, 0
}

// readBitmaps loads the ChildBitmap and LeafBitmap of the node at offset.
// Returns false (a CorruptIndex condition) if the node's 64 bitmap bytes
// fall outside the mapped region.
func (idx *Index) readBitmaps(offset uint32, child, leaf *bitmap256) bool {
	if int(offset)+64 > len(idx.data) {
		return false
	}
	copy(child[:], idx.data[offset:offset+32])
	copy(leaf[:], idx.data[offset+32:offset+64])
	return true
}

func (idx *Index) readBaseOffset(offset uint32) (uint32, bool) {
	if int(offset)+68 > len(idx.data) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(idx.data[offset+64 : offset+68]), true
}

// leafValue resolves the stored value for octet b at the node starting at
// offset, given its already-loaded LeafBitmap. It is authoritative that the
// rank used here is rank_leaf (over LeafBitmap), never rank_child: passing
// the child bitmap here would silently misattribute values between
// adjacent slots.
func (idx *Index) leafValue(offset uint32, leaf *bitmap256, b byte) uint16 {
	if idx.valuesCount == 0 {
		return 0
	}
	if int(offset)+72 > len(idx.data) {
		idx.corrupt.incr()
		return 0
	}
	baseIndex := binary.LittleEndian.Uint32(idx.data[offset+68 : offset+72])

	valueIndex, ok := addOverflowU32(baseIndex, uint32(leaf.rank(b)))
	if !ok || valueIndex >= idx.valuesCount {
		return 0
	}

	at := idx.valuesStart + valueIndex*valueSize
	if int(at)+valueSize > len(idx.data) {
		idx.corrupt.incr()
		return 0
	}
	return binary.LittleEndian.Uint16(idx.data[at : at+valueSize])
}
