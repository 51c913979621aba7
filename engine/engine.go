// Package engine drives fault-detection passes over an acquired region.
package engine

import (
	"context"

	"github.com/joshuapare/ramtest/pattern"
	"github.com/joshuapare/ramtest/region"
)

// Exit status bits. The process exit code is the OR of every condition
// observed over the whole run.
const (
	// ExitNonStarter: invalid configuration or no usable region at all.
	ExitNonStarter = 0x01
	// ExitAddressLines: the stuck-address test found aliased addresses.
	ExitAddressLines = 0x02
	// ExitOtherTest: at least one pattern test detected a fault.
	ExitOtherTest = 0x04
)

// stuckAddressName is reported for the whole-region address-line test,
// which runs outside the selectable table.
const stuckAddressName = "Stuck Address"

// resetFill is the known state the region is returned to between tests so
// residue from one pattern cannot skew the next.
const resetFill = ^pattern.Word(0)

// stuckAddress is swappable for fault-injection in tests.
var stuckAddress = pattern.StuckAddress

// Reporter receives progress events. Rendering is the caller's concern;
// the engine only says what ran and how many mismatches it saw.
type Reporter interface {
	LoopStart(loop, total uint64)
	TestStart(name string)
	TestResult(name string, faults int)
}

type nopReporter struct{}

func (nopReporter) LoopStart(uint64, uint64) {}
func (nopReporter) TestStart(string)         {}
func (nopReporter) TestResult(string, int)   {}

// Config selects what runs and for how long.
type Config struct {
	// Loops is the number of full passes. Zero runs until ctx is
	// cancelled.
	Loops uint64

	// Selection is a bitmask over test-table ordinals: bit i selects
	// table entry i. Zero selects every test.
	Selection uint64

	// Tests overrides the pattern table; nil uses pattern.Tests.
	Tests []pattern.Descriptor

	// Reporter receives progress events; nil discards them.
	Reporter Reporter
}

func (c Config) reporter() Reporter {
	if c.Reporter != nil {
		return c.Reporter
	}
	return nopReporter{}
}

func (c Config) tests() []pattern.Descriptor {
	if c.Tests != nil {
		return c.Tests
	}
	return pattern.Tests
}

// Run executes the configured passes over the region and returns the
// aggregated exit-status bitmask. A detected fault never stops the run:
// every selected test of every loop still executes, so one bad bit cannot
// hide another.
func Run(ctx context.Context, r *region.Region, cfg Config) int {
	rep := cfg.reporter()
	tests := cfg.tests()

	whole := pattern.WordsOf(r.Bytes())
	pair := r.Split()
	a := pattern.WordsOf(pair.HalfA)
	b := pattern.WordsOf(pair.HalfB)

	status := 0
	for loop := uint64(1); cfg.Loops == 0 || loop <= cfg.Loops; loop++ {
		if ctx.Err() != nil {
			break
		}
		rep.LoopStart(loop, cfg.Loops)

		rep.TestStart(stuckAddressName)
		faults := stuckAddress(whole)
		rep.TestResult(stuckAddressName, faults)
		if faults > 0 {
			status |= ExitAddressLines
		}
		// The address pass leaves the halves holding different values;
		// reset so in-place comparison tests start from agreement.
		pattern.Fill(whole, resetFill)

		for i, d := range tests {
			if cfg.Selection != 0 && cfg.Selection&(1<<uint(i)) == 0 {
				continue
			}
			rep.TestStart(d.Name)
			faults := d.Op(a, b)
			rep.TestResult(d.Name, faults)
			if faults > 0 {
				status |= ExitOtherTest
			}
			pattern.Fill(whole, resetFill)
		}
	}
	return status
}
