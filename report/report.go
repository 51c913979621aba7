// Package report renders engine progress and results as text.
//
// The layout follows the classic memory-tester output: one banner, the
// sizing lines, then per loop an indented test column with an ok/FAILED
// verdict per test.
package report

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/ramtest/internal/memsize"
	"github.com/joshuapare/ramtest/pattern"
	"github.com/joshuapare/ramtest/region"
)

// Text writes human-readable progress to w.
type Text struct {
	w io.Writer
	p *message.Printer
}

// NewText returns a reporter writing to w. Byte counts are grouped for
// readability ("67,108,864 bytes").
func NewText(w io.Writer) *Text {
	return &Text{w: w, p: message.NewPrinter(language.English)}
}

// Banner prints the version header.
func (t *Text) Banner(version string) {
	fmt.Fprintf(t.w, "ramtest version %s (%d-bit)\n\n", version, pattern.WordBits)
}

// PageSize reports the page size in use.
func (t *Text) PageSize(bytes uint64) {
	t.p.Fprintf(t.w, "pagesize is %d bytes\n", bytes)
}

// Want reports the requested region size.
func (t *Text) Want(bytes uint64) {
	t.p.Fprintf(t.w, "want %s (%d bytes)\n", memsize.Format(bytes), bytes)
}

// Got reports the acquired region, its source and whether it is pinned.
func (t *Text) Got(r *region.Region) {
	t.p.Fprintf(t.w, "got  %s (%d bytes) from %s", memsize.Format(r.UsableBytes()), r.UsableBytes(), r.Source())
	if r.Pinned() {
		fmt.Fprint(t.w, ", locked")
	}
	fmt.Fprintln(t.w)
}

// LoopStart prints the loop header; total 0 means an unbounded run.
func (t *Text) LoopStart(loop, total uint64) {
	if total > 0 {
		fmt.Fprintf(t.w, "Loop %d/%d:\n", loop, total)
		return
	}
	fmt.Fprintf(t.w, "Loop %d:\n", loop)
}

// TestStart prints the padded test name column.
func (t *Text) TestStart(name string) {
	fmt.Fprintf(t.w, "  %-20s: ", name)
}

// TestResult prints the verdict for one test.
func (t *Text) TestResult(name string, faults int) {
	if faults == 0 {
		fmt.Fprintln(t.w, "ok")
		return
	}
	t.p.Fprintf(t.w, "FAILED (%d mismatches)\n", faults)
}

// Done prints the final verdict for the whole run.
func (t *Text) Done(status int) {
	if status == 0 {
		fmt.Fprintln(t.w, "Done.")
		return
	}
	fmt.Fprintf(t.w, "Done, with failures (status 0x%02x).\n", status)
}
