package gm8050

import (
	"encoding/binary"
	"math"
)

// Register payloads are big-endian on the wire. Decoders assume the caller
// has already validated the response classification and length.

func decodeU16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func decodeF32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

// decodeSamples reads count big-endian u16 samples from b. Samples whose two
// bytes are not fully present decode as zero; the device occasionally
// truncates trailing data and the protocol tolerates it.
func decodeSamples(b []byte, count int) []uint16 {
	out := make([]uint16, count)
	for i := 0; i < count; i++ {
		idx := i * 2
		if idx+1 < len(b) {
			out[i] = binary.BigEndian.Uint16(b[idx : idx+2])
		}
	}
	return out
}
