package gm8050

import (
	"errors"
	"fmt"
)

// Every operation reports failure as a typed error; nothing here is fatal to
// the connection, and the core performs no automatic retries; retry policy
// belongs to the caller.
var (
	// ErrTimeout means the overall response budget elapsed while the device
	// was still (or never finished) answering.
	ErrTimeout = errors.New("gm8050: response timeout")

	// ErrNoResponse means the line went silent before a minimal frame
	// arrived, typically because nothing is plugged in or powered on.
	ErrNoResponse = errors.New("gm8050: no response from device")

	// ErrMalformedResponse means a response was received in full but its
	// contents do not match the expected layout.
	ErrMalformedResponse = errors.New("gm8050: malformed response")

	// ErrInvalidArgument means the caller violated a framing contract
	// (short frame, bad checksum on parse, non-positive expected length).
	ErrInvalidArgument = errors.New("gm8050: invalid argument")

	// ErrNotConnected means an operation was issued before Connect or after
	// Close.
	ErrNotConnected = errors.New("gm8050: not connected")
)

// DeviceError is an exception response reported by the instrument itself.
// Codes 1-3 are the standard Modbus exception codes; the device may emit
// vendor codes beyond those, which are formatted generically.
type DeviceError struct {
	Code byte
}

func (e *DeviceError) Error() string {
	switch e.Code {
	case 1:
		return "gm8050: device exception: illegal function"
	case 2:
		return "gm8050: device exception: illegal data address"
	case 3:
		return "gm8050: device exception: illegal data value"
	default:
		return fmt.Sprintf("gm8050: device exception: unknown code %d", e.Code)
	}
}
