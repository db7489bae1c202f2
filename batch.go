// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package poptrie

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// packedChunk is the number of IPs per fan-out task for packed-buffer
// queries — a small multiple of the stride, large enough to amortize task
// overhead.
const packedChunk = 1024

// stringChunk is smaller than packedChunk because per-element parse cost
// already dominates string-batch wall time; chunking still helps amortize
// goroutine scheduling overhead over a pool sized to NumCPU.
const stringChunk = 256

// defaultWorkers is the fan-out width new Index values start with: one
// goroutine per logical CPU, no more. Open(WithWorkers(n)) overrides it.
func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// ContainsPacked splits buf into contiguous stride-byte (4 for IPv4, 16 for
// IPv6) chunks and reports, for each, whether any stored prefix contains it.
// A trailing partial chunk is silently ignored — callers must pre-align buf.
func (idx *Index) ContainsPacked(buf []byte, isV6 bool) []bool {
	stride := packedStride(isV6)
	n := len(buf) / stride
	out := make([]bool, n)

	runChunked(n, packedChunk, idx.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = idx.Contains(buf[i*stride : i*stride+stride])
		}
	})

	return out
}

// LookupPacked is ContainsPacked's Lookup counterpart.
func (idx *Index) LookupPacked(buf []byte, isV6 bool) []uint16 {
	stride := packedStride(isV6)
	n := len(buf) / stride
	out := make([]uint16, n)

	runChunked(n, packedChunk, idx.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = idx.Lookup(buf[i*stride : i*stride+stride])
		}
	})

	return out
}

// ContainsStrings parses each element of addrs as a textual IPv4 or IPv6
// address and reports containment; a parse failure records false for that
// element without aborting the batch; an unparseable address is a local miss.
func (idx *Index) ContainsStrings(addrs []string) []bool {
	out := make([]bool, len(addrs))

	runChunked(len(addrs), stringChunk, idx.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			octets, ok := parseAddr(addrs[i])
			if !ok {
				continue
			}
			out[i] = idx.Contains(octets)
		}
	})

	return out
}

// LookupStrings is ContainsStrings's Lookup counterpart; a parse failure
// records 0.
func (idx *Index) LookupStrings(addrs []string) []uint16 {
	out := make([]uint16, len(addrs))

	runChunked(len(addrs), stringChunk, idx.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			octets, ok := parseAddr(addrs[i])
			if !ok {
				continue
			}
			out[i] = idx.Lookup(octets)
		}
	})

	return out
}

func packedStride(isV6 bool) int {
	if isV6 {
		return 16
	}
	return 4
}

// runChunked fans [0, n) out across a bounded errgroup in contiguous,
// chunkSize-wide slabs, each handled by exactly one goroutine; since fn
// writes only into its own [lo, hi) slice of the caller's result vector,
// workers never share a write target and no synchronization is needed on
// the hot path. maxWorkers bounds the errgroup's concurrency limit; values
// <= 0 are treated as 1. Blocks until every chunk has completed.
func runChunked(n, chunkSize, maxWorkers int, fn func(lo, hi int)) {
	if n == 0 {
		return
	}
	if n <= chunkSize {
		fn(0, n)
		return
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(maxWorkers)

	for lo := 0; lo < n; lo += chunkSize {
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		lo, hi := lo, hi
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}

	// fn never returns an error; this only ever waits for completion.
	_ = g.Wait()
}
