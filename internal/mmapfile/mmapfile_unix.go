// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

//go:build linux || darwin

package mmapfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmap maps the first size bytes of f read-only and shared, following the
// same raw mmap(2)-over-a-file-descriptor shape as
// internal/watcher/ebpf's ring-buffer reader in the tripwire agent
// (syscall.Mmap with PROT_READ|MAP_SHARED), but through golang.org/x/sys/unix
// the way lima's fsutil/osutil packages do for other raw syscalls, rather
// than the lower-level syscall package directly.
func mmap(f *os.File, size int64) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func munmap(data []byte) error {
	return unix.Munmap(data)
}
