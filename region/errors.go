package region

import "errors"

var (
	// ErrTooSmall means the requested size is below one page. Nothing
	// useful can be tested; this is a non-starter.
	ErrTooSmall = errors.New("region: requested size is below one page")

	// ErrExhausted means degrade-and-retry shrank the request below one
	// page without ever obtaining a mapping.
	ErrExhausted = errors.New("region: allocation degraded below one page")

	// ErrHugePagesUnsupported is returned on platforms without a
	// huge-page mapping flag.
	ErrHugePagesUnsupported = errors.New("region: huge pages are not supported on this platform")
)
