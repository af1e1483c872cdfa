package bus

import "errors"

// Domain errors for the bus package.
var (
	// ErrHostInit is returned when the periph.io host drivers fail to load.
	ErrHostInit = errors.New("bus: host driver init failed")

	// ErrBusUnavailable is returned when a configured bus cannot be opened.
	ErrBusUnavailable = errors.New("bus: unavailable")
)
