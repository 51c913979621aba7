// Package region acquires the page-aligned, optionally pinned memory
// region that the fault-detection engine tests.
//
// Acquisition is layered: a huge-page mapping, a general anonymous
// mapping, or a physical-device mapping. The first two degrade and retry
// on partial failure, shrinking the request one page at a time (or
// clamping to the kernel's free huge-page count) until they converge or
// fall below a single page. The physical path maps a fixed address at the
// exact requested size and never renegotiates.
package region

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/ramtest/pattern"
)

// Source identifies which allocation strategy produced a region.
type Source int

const (
	// SourceHeap is a general anonymous mapping.
	SourceHeap Source = iota
	// SourceHugePage is an anonymous mapping backed by the kernel's
	// huge-page pool.
	SourceHugePage
	// SourcePhysicalDevice is a shared mapping of a memory device at a
	// fixed physical base address.
	SourcePhysicalDevice
)

func (s Source) String() string {
	switch s {
	case SourceHeap:
		return "heap"
	case SourceHugePage:
		return "hugepage"
	case SourcePhysicalDevice:
		return "physical"
	default:
		return "unknown"
	}
}

// Region is the memory under test. The raw mapping owns the pages; the
// aligned view is what tests touch. The aligned base is page-aligned and
// the usable length is an even word-pair multiple, so splitting it leaves
// both halves word-aligned.
type Region struct {
	raw     []byte
	aligned []byte
	release func() error

	pageSize uint64
	pinned   bool
	source   Source
}

// Bytes returns the aligned usable view.
func (r *Region) Bytes() []byte { return r.aligned }

// TotalBytes is the size of the raw mapping, including any prefix skipped
// for alignment.
func (r *Region) TotalBytes() uint64 { return uint64(len(r.raw)) }

// UsableBytes is the length of the aligned view available to tests.
func (r *Region) UsableBytes() uint64 { return uint64(len(r.aligned)) }

// PageSize is the page size the region was aligned to.
func (r *Region) PageSize() uint64 { return r.pageSize }

// Pinned reports whether the usable range is locked into RAM.
func (r *Region) Pinned() bool { return r.pinned }

// Source reports which strategy produced the region.
func (r *Region) Source() Source { return r.source }

// Release unpins and unmaps the region. The region must not be used
// afterwards.
func (r *Region) Release() error {
	if r.release == nil {
		return nil
	}
	err := r.release()
	r.release = nil
	r.raw = nil
	r.aligned = nil
	return err
}

// FromBytes wraps an existing buffer as a Region, aligning it to pageSize.
// The buffer stands in for real acquired memory in simulated runs and
// tests; Release does not return it anywhere.
func FromBytes(buf []byte, pageSize uint64) (*Region, error) {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("region: page size %d is not a power of two", pageSize)
	}
	aligned := alignToPage(buf, pageSize)
	if len(aligned) == 0 {
		return nil, ErrTooSmall
	}
	return &Region{
		raw:      buf,
		aligned:  aligned,
		pageSize: pageSize,
		source:   SourceHeap,
		release:  func() error { return nil },
	}, nil
}

// BufferPair is the comparand pair: two disjoint, equal-length halves
// covering the usable region.
type BufferPair struct {
	HalfA []byte
	HalfB []byte
}

// Split divides the usable region into its comparand halves.
func (r *Region) Split() BufferPair {
	half := len(r.aligned) / 2
	return BufferPair{
		HalfA: r.aligned[:half],
		HalfB: r.aligned[half : 2*half],
	}
}

// Words is the per-half word count.
func (p BufferPair) Words() int {
	return len(p.HalfA) / pattern.WordSize
}

// alignToPage returns the sub-slice of buf that starts on the next page
// boundary, trimmed so its length is a word-pair multiple. Anonymous
// mappings are already page-aligned, so the prefix skip only triggers for
// providers that hand back unaligned memory.
func alignToPage(buf []byte, pageSize uint64) []byte {
	base := uint64(uintptr(unsafe.Pointer(&buf[0])))
	skip := uint64(0)
	if rem := base % pageSize; rem != 0 {
		skip = pageSize - rem
	}
	if skip >= uint64(len(buf)) {
		return nil
	}
	usable := (uint64(len(buf)) - skip) &^ uint64(2*pattern.WordSize-1)
	return buf[skip : skip+usable]
}
