// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package poptrie

// The PTV2 file format
//
// A compiled database is a single flat binary file, memory-mapped read-only
// by Open. It has two layouts:
//
// PTV2 (current): a 16-byte header followed by a node region and a value
// region.
//
//	offset 0:  magic        [4]byte  "PTV2"
//	offset 4:  node_count   uint32   little-endian
//	offset 8:  values_count uint32   little-endian
//	offset 12: reserved     [4]byte  zero
//	offset 16: nodes        [node_count]node, 72 bytes each
//	offset 16+72*node_count: values [values_count]uint16, little-endian
//
// Each node is:
//
//	ChildBitmap [32]byte // bit k set: octet k has a child node
//	LeafBitmap  [32]byte // bit k set: octet k has a stored value
//	BaseOffset  uint32   // little-endian; file offset of this node's first child
//	BaseIndex   uint32   // little-endian; index of this node's first value
//
// Bit k of a 256-bit bitmap lives at byte k>>3, intra-byte position
// 7-(k&7) — the most significant bit of byte 0 is bit 0. Child k, if
// ChildBitmap has bit k set, lives at file offset
// BaseOffset + rank_child(k)*72, where rank_child(k) counts set bits in
// ChildBitmap strictly below position k. Octet k's stored value, if
// LeafBitmap has bit k set, is values[BaseIndex + rank_leaf(k)], with
// rank_leaf computed the same way over LeafBitmap.
//
// Legacy headerless: a file whose length is a positive multiple of 72 and
// does not begin with the PTV2 magic is accepted as a bare node region with
// no value table; every Lookup against such a file returns 0, though
// Contains still reports membership correctly.
