// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package poptrie

import "net/netip"

// parseAddr parses s as a dotted-quad IPv4 or colon-hex IPv6 address
// (including "::" compression and embedded IPv4 suffixes) and returns its
// octets in network order. net/netip is the idiomatic choice here — both
// github.com/metacubex/bart and github.com/gaissmai/bart build their entire
// public API around netip.Addr/netip.Prefix rather than a third-party IP
// library.
func parseAddr(s string) (octets []byte, ok bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, false
	}
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	b := addr.AsSlice()
	return b, len(b) == 4 || len(b) == 16
}
