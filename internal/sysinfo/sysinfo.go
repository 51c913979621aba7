// Package sysinfo discovers page-size facts from the running kernel.
//
// Regular page size comes from the runtime. Huge-page size and the free
// huge-page count come from /proc/meminfo and the sysfs huge-page tree;
// both paths are overridable so tests can point at a synthetic tree.
package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultHugePageSize is assumed when /proc/meminfo is unreadable or does
// not advertise a huge-page size. 2MB is the x86-64 default pool size.
const DefaultHugePageSize = 2 << 20

// PageSize returns the system's regular page size in bytes.
func PageSize() uint64 {
	return uint64(os.Getpagesize())
}

// HugePages locates the kernel's huge-page accounting files.
// The zero value reads the real /proc and /sys trees.
type HugePages struct {
	Meminfo   string // defaults to /proc/meminfo
	SysfsRoot string // defaults to /sys/kernel/mm/hugepages
}

func (h HugePages) meminfo() string {
	if h.Meminfo != "" {
		return h.Meminfo
	}
	return "/proc/meminfo"
}

func (h HugePages) sysfsRoot() string {
	if h.SysfsRoot != "" {
		return h.SysfsRoot
	}
	return "/sys/kernel/mm/hugepages"
}

// PageSize returns the kernel's default huge-page size in bytes, falling
// back to DefaultHugePageSize when it cannot be determined.
func (h HugePages) PageSize() uint64 {
	f, err := os.Open(h.meminfo())
	if err != nil {
		return DefaultHugePageSize
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Hugepagesize:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Hugepagesize:"))
		if len(fields) < 1 {
			break
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil || kb == 0 {
			break
		}
		return kb << 10
	}
	return DefaultHugePageSize
}

// Free returns the number of free huge pages in the pool for the given
// huge-page size. A missing pool (or non-Linux system) is an error; callers
// treat that as an unknown count.
func (h HugePages) Free(pageSize uint64) (uint64, error) {
	path := fmt.Sprintf("%s/hugepages-%dkB/free_hugepages", h.sysfsRoot(), pageSize>>10)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("sysinfo: reading free huge pages: %w", err)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sysinfo: parsing %s: %w", path, err)
	}
	return n, nil
}
