//go:build unix && !linux

package region

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/ramtest/internal/sysinfo"
)

// realSys binds the acquisition hooks to the kernel. Non-Linux systems
// have no MAP_HUGETLB or MAP_LOCKED; huge pages are unsupported and device
// mappings rely on the explicit mlock that follows.
func realSys() sysOps {
	return sysOps{
		MapAnon: func(size uint64, huge bool) ([]byte, error) {
			if huge {
				return nil, ErrHugePagesUnsupported
			}
			return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE,
				unix.MAP_PRIVATE|unix.MAP_ANON)
		},
		Unmap:  unix.Munmap,
		Lock:   unix.Mlock,
		Unlock: unix.Munlock,
		MapDevice: func(dev Physical, size uint64) ([]byte, func() error, error) {
			oflags := os.O_RDWR
			if dev.Sync {
				oflags |= unix.O_SYNC
			}
			f, err := os.OpenFile(dev.Device, oflags, 0)
			if err != nil {
				return nil, nil, err
			}
			defer f.Close() // safe before return; mapping keeps pages alive

			data, err := unix.Mmap(int(f.Fd()), int64(dev.Addr), int(size),
				unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
			if err != nil {
				return nil, nil, err
			}
			return data, func() error { return unix.Munmap(data) }, nil
		},
		FreeHugePages: func(pageSize uint64) (uint64, error) {
			return sysinfo.HugePages{}.Free(pageSize)
		},
	}
}
