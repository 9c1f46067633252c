package uart

import "errors"

var (
	// ErrFull is returned by PutChar when the TX buffer has no room
	// for another byte.
	ErrFull = errors.New("uart: tx buffer full")

	// ErrNotInitialised is returned by foreground calls made on an
	// Engine that failed construction or was never constructed via
	// NewEngine.
	ErrNotInitialised = errors.New("uart: not initialised")

	// ErrBaudUnsupported is returned when a requested baud rate
	// cannot be reached from the configured CPU clock within an
	// 8-bit compare value.
	ErrBaudUnsupported = errors.New("uart: unsupported baud rate for this CPU clock")
)
