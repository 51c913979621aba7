//go:build linux

package region

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/ramtest/internal/sysinfo"
)

// realSys binds the acquisition hooks to the kernel.
func realSys() sysOps {
	return sysOps{
		MapAnon: func(size uint64, huge bool) ([]byte, error) {
			flags := unix.MAP_PRIVATE | unix.MAP_ANON
			if huge {
				flags |= unix.MAP_HUGETLB
			}
			return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, flags)
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
				unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_LOCKED)
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
