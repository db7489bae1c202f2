// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package poptrie

import "sync/atomic"

// Stats is a read-only snapshot of an Index's load-time layout, returned by
// Index.Stat for introspection (e.g. the stat subcommand of poptriectl).
type Stats struct {
	NodeCount   uint32
	ValuesCount uint32
	NodesStart  uint32
	ValuesStart uint32
	Legacy      bool
}

// corruptCounter counts CorruptIndex classifications encountered at query
// time. Surfacing this counter is optional; it never changes query
// behavior — every query still returns a default-on-corruption result for
// the offending slot.
type corruptCounter struct {
	hits atomic.Uint64
}

func (c *corruptCounter) incr() {
	c.hits.Add(1)
}

func (c *corruptCounter) load() uint64 {
	return c.hits.Load()
}
