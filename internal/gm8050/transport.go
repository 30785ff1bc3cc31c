package gm8050

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the byte-oriented duplex channel the transport runs over. It is
// the subset of go.bug.st/serial.Port the protocol needs, so tests can
// substitute a scripted implementation.
type Port interface {
	io.ReadWriter
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// pollInterval bounds each individual port read inside the accumulation
// loop. Serial data arrives in arbitrary-sized chunks with no length
// prefix, so the reader polls and appends rather than doing one blocking
// read of a known size.
const pollInterval = 20 * time.Millisecond

// DefaultNoDataSilence is the silence window after which a read cycle with
// fewer than a minimal frame's worth of bytes is classified as "no data".
// This is a fast-fail heuristic tuned against observed device latency, not
// a protocol constant: a device whose first byte trickles in slower than
// this will be misclassified, so it is a tunable on the connection.
const DefaultNoDataSilence = 100 * time.Millisecond

// minFrameBytes is the shortest frame the device ever sends (an exception
// response). Once this many bytes have arrived the no-data short-circuit no
// longer applies: a partially received valid frame must not be aborted early.
const minFrameBytes = 5

// conn owns the open serial channel for one device. The link is strictly
// half-duplex request/response: exactly one outstanding cycle at a time,
// enforced by Device's mutex, so conn itself carries no locking.
type conn struct {
	port Port

	noDataSilence time.Duration
}

func openSerial(path string, baud int) (Port, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("gm8050: open %s: %w", path, err)
	}
	return port, nil
}

func newConn(port Port, noDataSilence time.Duration) *conn {
	if noDataSilence <= 0 {
		noDataSilence = DefaultNoDataSilence
	}
	return &conn{port: port, noDataSilence: noDataSilence}
}

func (c *conn) send(frame []byte) error {
	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("gm8050: write failed: %w", err)
	}
	return nil
}

// readResponse accumulates inbound bytes for one request until the result
// can be classified. Exactly one of four outcomes is returned:
//
//	buffer, nil        at least expected bytes arrived
//	nil, *DeviceError  the device signalled an exception
//	nil, ErrNoResponse silence before a minimal frame arrived
//	nil, ErrTimeout    budget exhausted mid-frame
//
// The port's input buffer is cleared first so stale bytes from a previous,
// possibly timed-out exchange cannot contaminate this cycle; the
// accumulation buffer is local and never reused across requests.
func (c *conn) readResponse(expected int, timeout time.Duration) ([]byte, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("expected length %d: %w", expected, ErrInvalidArgument)
	}
	if err := c.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("gm8050: reset input buffer: %w", err)
	}
	if err := c.port.SetReadTimeout(pollInterval); err != nil {
		return nil, fmt.Errorf("gm8050: set read timeout: %w", err)
	}

	buf := make([]byte, 0, expected)
	chunk := make([]byte, 4096)
	start := time.Now()
	lastArrival := start

	for time.Since(start) < timeout {
		n, err := c.port.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			lastArrival = time.Now()
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("gm8050: read failed: %w", err)
		}

		if len(buf) >= 3 && buf[1]&0x80 != 0 {
			// Exception response: don't wait for expected. The full
			// exception frame is 5 bytes and carries the code in byte 3.
			if len(buf) >= exceptionFrameLen {
				return nil, &DeviceError{Code: buf[2]}
			}
		} else if len(buf) >= expected {
			return buf, nil
		}

		if time.Since(lastArrival) > c.noDataSilence && len(buf) < minFrameBytes {
			return nil, ErrNoResponse
		}
	}
	return nil, ErrTimeout
}

// close is idempotent; closing an already-closed connection is a no-op.
func (c *conn) close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}
