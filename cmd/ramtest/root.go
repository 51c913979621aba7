package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshuapare/ramtest/engine"
	"github.com/joshuapare/ramtest/internal/memsize"
	"github.com/joshuapare/ramtest/internal/sysinfo"
	"github.com/joshuapare/ramtest/region"
	"github.com/joshuapare/ramtest/report"
)

// testMaskEnv selects which pattern tests run, as a bitmask over the test
// table ordinals. The --mask flag takes precedence.
const testMaskEnv = "RAMTEST_TEST_MASK"

var (
	// Flags
	hugepages bool
	noLock    bool
	noSync    bool
	device    string
	physAddr  string
	maskFlag  string
	quiet     bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "ramtest <mem>[B|K|M|G] [loops]",
	Short: "Stress-test physical RAM for stuck bits, bad address lines and coupling faults",
	Long: `ramtest writes deterministic and random bit patterns into a live memory
region and verifies that readback matches. A bare size is megabytes; a loop
count of 0 (the default) runs until interrupted.

The region is locked into RAM when permitted. With -p the region is mapped
from a memory device at a fixed physical address instead of anonymous
memory.`,
	Version:       "0.1.0",
	Args:          cobra.RangeArgs(1, 2),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVarP(&hugepages, "hugepages", "H", false, "Back the region with huge pages")
	rootCmd.Flags().BoolVar(&noLock, "no-lock", false, "Do not attempt to lock the region into RAM")
	rootCmd.Flags().BoolVarP(&noSync, "no-sync", "u", false, "Open the memory device without O_SYNC")
	rootCmd.Flags().StringVarP(&device, "device", "d", "", "Memory device to map with -p (default /dev/mem)")
	rootCmd.Flags().StringVarP(&physAddr, "physaddr", "p", "", "Map this physical base address (hex, page-aligned)")
	rootCmd.Flags().StringVarP(&maskFlag, "mask", "m", "", "Bitmask of pattern tests to run (0 or unset = all)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose diagnostics")
}

// exitError carries a non-zero process exit status out of cobra.
type exitError struct{ code int }

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status 0x%02x", e.code)
}

func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return engine.ExitNonStarter
}

func run(cmd *cobra.Command, args []string) error {
	want, err := memsize.Parse(args[0])
	if err != nil {
		return err
	}

	loops := uint64(0)
	if len(args) > 1 {
		loops, err = strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return fmt.Errorf("bad loop count %q: %w", args[1], err)
		}
	}

	mask, err := resolveMask(maskFlag, os.Getenv(testMaskEnv))
	if err != nil {
		return err
	}

	phys, err := physicalConfig(physAddr, device, !noSync)
	if err != nil {
		return err
	}

	pageSize := sysinfo.PageSize()
	if hugepages {
		pageSize = sysinfo.HugePages{}.PageSize()
	}

	out := io.Writer(os.Stdout)
	if quiet {
		out = io.Discard
	}
	rep := report.NewText(out)
	rep.Banner(rootCmd.Version)
	rep.PageSize(pageSize)
	rep.Want(want)

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	r, err := region.Acquire(region.Config{
		WantBytes: want,
		Pin:       !noLock,
		HugePages: hugepages,
		Physical:  phys,
		PageSize:  pageSize,
		Logger:    log,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return &exitError{code: engine.ExitNonStarter}
	}
	defer r.Release()
	rep.Got(r)
	if !r.Pinned() && !noLock {
		fmt.Fprintln(os.Stderr, "Continuing with unlocked memory; testing will be slower and less reliable.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := engine.Run(ctx, r, engine.Config{
		Loops:     loops,
		Selection: mask,
		Reporter:  rep,
	})
	rep.Done(status)
	if status != 0 {
		return &exitError{code: status}
	}
	return nil
}

// resolveMask picks the test-selection mask from the flag, falling back to
// the environment. Zero means "run everything".
func resolveMask(flag, env string) (uint64, error) {
	src := flag
	if src == "" {
		src = env
	}
	if src == "" {
		return 0, nil
	}
	mask, err := strconv.ParseUint(src, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad test mask %q: %w", src, err)
	}
	return mask, nil
}

// physicalConfig validates the physical-mapping arguments. A device on its
// own is an error: the base address decides whether the physical path is
// used at all.
func physicalConfig(addr, dev string, sync bool) (*region.Physical, error) {
	if addr == "" {
		if dev != "" {
			return nil, errors.New("a memory device (-d) requires a physical base address (-p)")
		}
		return nil, nil
	}
	base, err := strconv.ParseUint(addr, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("bad physical base address %q; want a hex address like 0x1000: %w", addr, err)
	}
	if dev == "" {
		dev = "/dev/mem"
	}
	return &region.Physical{Device: dev, Addr: base, Sync: sync}, nil
}
