package gm8050

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFrameLayout(t *testing.T) {
	frame := BuildFrame(0x01, 0x06, []byte{0x02, 0x00, 0x00, 0x01})

	require.Len(t, frame, 8)
	assert.Equal(t, byte(0x01), frame[0])
	assert.Equal(t, byte(0x06), frame[1])
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x01}, frame[2:6])

	// Checksum covers every byte before it and sits low byte first.
	crc := Checksum(frame[:6])
	assert.Equal(t, byte(crc), frame[6])
	assert.Equal(t, byte(crc>>8), frame[7])
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		addr    byte
		fn      byte
		payload []byte
	}{
		{"write register", 0x01, 0x06, []byte{0x02, 0x01, 0x00, 0x01}},
		{"read holding", 0x01, 0x03, []byte{0x10, 0x07, 0x00, 0x01}},
		{"bulk read", 0x01, 0x14, []byte{0x30, 0x00, 0x02, 0x00}},
		{"empty payload", 0x02, 0x03, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := BuildFrame(tt.addr, tt.fn, tt.payload)
			addr, fn, payload, err := ParseFrame(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.addr, addr)
			assert.Equal(t, tt.fn, fn)
			assert.Equal(t, append([]byte(nil), tt.payload...), append([]byte(nil), payload...))
		})
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	_, _, _, err := ParseFrame([]byte{0x01, 0x06})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	frame := BuildFrame(0x01, 0x03, []byte{0x10, 0x05, 0x00, 0x01})
	frame[3] ^= 0xFF // corrupt payload, CRC no longer matches
	_, _, _, err = ParseFrame(frame)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
