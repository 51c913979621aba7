// Package memsize parses and formats memory size arguments.
package memsize

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrEmpty is returned when the size argument is empty.
var ErrEmpty = errors.New("memsize: empty size argument")

// shift amounts per suffix. A missing suffix means megabytes.
const (
	shiftBytes     = 0
	shiftKilobytes = 10
	shiftMegabytes = 20
	shiftGigabytes = 30
)

// Parse converts a size argument like "64M", "128k" or "8G" into a byte
// count. Accepted suffixes are B, K, M and G (case-insensitive); a bare
// number is interpreted as megabytes.
func Parse(arg string) (uint64, error) {
	if arg == "" {
		return 0, ErrEmpty
	}

	shift := shiftMegabytes
	num := arg
	switch arg[len(arg)-1] {
	case 'B', 'b':
		shift = shiftBytes
		num = arg[:len(arg)-1]
	case 'K', 'k':
		shift = shiftKilobytes
		num = arg[:len(arg)-1]
	case 'M', 'm':
		shift = shiftMegabytes
		num = arg[:len(arg)-1]
	case 'G', 'g':
		shift = shiftGigabytes
		num = arg[:len(arg)-1]
	}
	if num == "" {
		return 0, fmt.Errorf("memsize: missing number in %q", arg)
	}

	n, err := strconv.ParseUint(num, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("memsize: bad size %q: %w", arg, err)
	}
	if n != 0 && n > (^uint64(0))>>shift {
		return 0, fmt.Errorf("memsize: size %q overflows", arg)
	}
	return n << shift, nil
}

// Format renders a byte count as the largest whole binary unit, e.g.
// 67108864 -> "64MB". Counts that do not divide evenly fall back to bytes.
func Format(n uint64) string {
	type unit struct {
		shift uint
		name  string
	}
	for _, u := range []unit{{30, "GB"}, {20, "MB"}, {10, "KB"}} {
		if n >= 1<<u.shift && n%(1<<u.shift) == 0 {
			return strconv.FormatUint(n>>u.shift, 10) + u.name
		}
	}
	return strconv.FormatUint(n, 10) + "B"
}

// Megabytes returns the whole-megabyte portion of a byte count.
func Megabytes(n uint64) uint64 { return n >> shiftMegabytes }
