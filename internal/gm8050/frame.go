package gm8050

import "fmt"

// BuildFrame assembles a request frame: address, function code, payload,
// then the CRC16 over all preceding bytes appended low byte first.
func BuildFrame(addr, fn byte, payload []byte) []byte {
	frame := make([]byte, 0, 2+len(payload)+2)
	frame = append(frame, addr, fn)
	frame = append(frame, payload...)
	crc := Checksum(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

// ParseFrame decomposes a checksummed frame back into address, function and
// payload, verifying the trailing CRC. A short frame or CRC mismatch is a
// contract violation on the caller's side, not a protocol failure.
func ParseFrame(frame []byte) (addr, fn byte, payload []byte, err error) {
	if len(frame) < 4 {
		return 0, 0, nil, fmt.Errorf("frame too short (%d bytes): %w", len(frame), ErrInvalidArgument)
	}
	body := frame[:len(frame)-2]
	got := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	if want := Checksum(body); got != want {
		return 0, 0, nil, fmt.Errorf("frame crc mismatch: got 0x%04X, want 0x%04X: %w", got, want, ErrInvalidArgument)
	}
	return body[0], body[1], body[2:len(body):len(body)], nil
}
