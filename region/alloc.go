package region

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/ramtest/internal/sysinfo"
)

// Config selects an acquisition strategy. There is deliberately no
// package-level state: physical-mapping parameters travel here, not in
// globals.
type Config struct {
	// WantBytes is the requested region size. The allocator may settle
	// for less on the huge-page and heap paths, never on the physical
	// path.
	WantBytes uint64

	// Pin asks for the usable range to be locked into RAM so accesses
	// hit real memory rather than a page-fault handler.
	Pin bool

	// HugePages backs the mapping with the kernel's huge-page pool.
	HugePages bool

	// Physical, when set, maps a fixed physical address range from a
	// memory device instead of anonymous memory.
	Physical *Physical

	// PageSize overrides page-size discovery. Zero means discover: the
	// regular page size, or the huge-page size in huge-page mode.
	PageSize uint64

	// Logger receives degrade-and-retry warnings. Nil discards them.
	Logger *slog.Logger
}

// Physical holds the physical-device mapping parameters.
type Physical struct {
	Device string // memory device path, e.g. /dev/mem
	Addr   uint64 // page-aligned physical base address
	Sync   bool   // open the device O_SYNC
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Acquire obtains the largest usable region for cfg. See the package
// comment for the layering and degrade rules.
func Acquire(cfg Config) (*Region, error) {
	return acquire(cfg, realSys())
}

// sysOps abstracts the syscalls acquisition needs so the retry logic can
// be driven against fakes.
type sysOps struct {
	MapAnon       func(size uint64, huge bool) ([]byte, error)
	Unmap         func(b []byte) error
	Lock          func(b []byte) error
	Unlock        func(b []byte) error
	MapDevice     func(dev Physical, size uint64) ([]byte, func() error, error)
	FreeHugePages func(pageSize uint64) (uint64, error)
}

func acquire(cfg Config, sys sysOps) (*Region, error) {
	pageSize := cfg.PageSize
	if pageSize == 0 {
		if cfg.HugePages {
			pageSize = sysinfo.HugePages{}.PageSize()
		} else {
			pageSize = sysinfo.PageSize()
		}
	}

	if cfg.Physical != nil {
		return acquirePhysical(cfg, sys, pageSize)
	}

	log := cfg.logger()
	source := SourceHeap
	want := cfg.WantBytes
	if cfg.HugePages {
		// Huge-page requests are rounded up to a whole number of pages.
		source = SourceHugePage
		if rem := want % pageSize; rem != 0 {
			want += pageSize - rem
		}
	}
	if want < pageSize {
		return nil, fmt.Errorf("%w: want %d bytes, page size %d", ErrTooSmall, cfg.WantBytes, pageSize)
	}
	origWant := want
	pin := cfg.Pin

	// Each pass either shrinks want by at least one page or permanently
	// clears the pin flag, so the loop converges in at most
	// want/pageSize + 1 passes.
	for {
		buf, got, err := mapAnonShrinking(sys, cfg.HugePages, want, pageSize, log)
		if err != nil {
			return nil, err
		}
		want = got

		aligned := alignToPage(buf, pageSize)
		if len(aligned) == 0 {
			_ = sys.Unmap(buf)
			return nil, ErrExhausted
		}

		if !pin {
			return newRegion(buf, aligned, pageSize, false, source, sys), nil
		}

		err = sys.Lock(aligned)
		switch {
		case err == nil:
			return newRegion(buf, aligned, pageSize, true, source, sys), nil

		case errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOMEM):
			// Over a lock limit: give back a page and retry, still
			// trying to pin.
			log.Warn("mlock over limit, reducing", "bytes", want)
			_ = sys.Unmap(buf)
			want -= pageSize
			if want < pageSize {
				return nil, ErrExhausted
			}

		case errors.Is(err, unix.EPERM):
			// Not allowed to pin at all: start over unpinned at the
			// original size.
			log.Warn("mlock not permitted, continuing unpinned", "err", err)
			_ = sys.Unmap(buf)
			pin = false
			want = origWant

		default:
			// Unknown failure: keep what we have, just unpinned.
			log.Warn("mlock failed, continuing unpinned", "err", err)
			return newRegion(buf, aligned, pageSize, false, source, sys), nil
		}
	}
}

// mapAnonShrinking drives one allocation strategy to convergence: it
// returns a mapping of at most want bytes, shrinking on resource
// exhaustion, or fails once the request falls below one page.
func mapAnonShrinking(sys sysOps, huge bool, want, pageSize uint64, log *slog.Logger) ([]byte, uint64, error) {
	for {
		buf, err := sys.MapAnon(want, huge)
		if err == nil {
			return buf, want, nil
		}

		if huge {
			if !errors.Is(err, unix.ENOMEM) {
				return nil, 0, fmt.Errorf("region: huge page mapping failed: %w", err)
			}
			// The pool may simply be smaller than the request; clamp
			// to the free page count when that gets us there faster.
			if free, ferr := sys.FreeHugePages(pageSize); ferr == nil && free > 0 && want > free*pageSize {
				want = free * pageSize
			} else {
				want -= pageSize
			}
		} else {
			want -= pageSize
		}

		if want < pageSize {
			return nil, 0, ErrExhausted
		}
		log.Debug("allocation failed, reducing", "bytes", want, "hugepages", huge)
	}
}

// acquirePhysical maps a fixed physical range at the exact requested size.
// There is no renegotiation: any mapping failure is fatal. Pinning is
// best-effort only.
func acquirePhysical(cfg Config, sys sysOps, pageSize uint64) (*Region, error) {
	dev := *cfg.Physical
	if cfg.WantBytes < pageSize {
		return nil, fmt.Errorf("%w: want %d bytes, page size %d", ErrTooSmall, cfg.WantBytes, pageSize)
	}
	if dev.Addr%pageSize != 0 {
		return nil, fmt.Errorf("region: physical base 0x%x is not page-aligned", dev.Addr)
	}

	buf, closer, err := sys.MapDevice(dev, cfg.WantBytes)
	if err != nil {
		return nil, fmt.Errorf("region: mapping %s at 0x%x: %w", dev.Device, dev.Addr, err)
	}

	aligned := alignToPage(buf, pageSize)
	if len(aligned) == 0 {
		_ = closer()
		return nil, ErrExhausted
	}

	pinned := false
	if cfg.Pin {
		if err := sys.Lock(aligned); err != nil {
			cfg.logger().Warn("mlock on device mapping failed, continuing unpinned", "err", err)
		} else {
			pinned = true
		}
	}

	r := newRegion(buf, aligned, pageSize, pinned, SourcePhysicalDevice, sys)
	r.release = releaseFunc(sys, aligned, pinned, closer)
	return r, nil
}

func newRegion(raw, aligned []byte, pageSize uint64, pinned bool, source Source, sys sysOps) *Region {
	r := &Region{
		raw:      raw,
		aligned:  aligned,
		pageSize: pageSize,
		pinned:   pinned,
		source:   source,
	}
	r.release = releaseFunc(sys, aligned, pinned, func() error { return sys.Unmap(raw) })
	return r
}

func releaseFunc(sys sysOps, aligned []byte, pinned bool, unmap func() error) func() error {
	return func() error {
		if pinned {
			_ = sys.Unlock(aligned)
		}
		return unmap()
	}
}
