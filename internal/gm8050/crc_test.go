package gm8050

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumKnownVectors(t *testing.T) {
	// Standard CRC16/MODBUS check value.
	assert.Equal(t, uint16(0x4B37), Checksum([]byte("123456789")))

	// Single byte worked through the shift rounds by hand.
	assert.Equal(t, uint16(0x807E), Checksum([]byte{0x01}))
}

func TestChecksumSelfConsistent(t *testing.T) {
	// Appending the CRC low byte first and recomputing over the extended
	// sequence must yield zero remainder.
	inputs := [][]byte{
		{0x01, 0x06, 0x02, 0x00, 0x00, 0x01},
		{0x01, 0x03, 0x10, 0x05, 0x00, 0x01},
		{0x01, 0x14, 0x20, 0x00, 0x08, 0x03},
		{},
		{0x00},
		{0xFF, 0xFF, 0xFF, 0xFF},
	}
	for _, in := range inputs {
		crc := Checksum(in)
		extended := append(append([]byte(nil), in...), byte(crc), byte(crc>>8))
		assert.Equal(t, uint16(0), Checksum(extended), "input % X", in)
	}
}
