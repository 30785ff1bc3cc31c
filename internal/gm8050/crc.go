package gm8050

import "github.com/sigurn/crc16"

// The wire checksum is Modbus CRC16: accumulator initialized to 0xFFFF,
// reflected polynomial 0xA001. crc16.CRC16_MODBUS carries exactly those
// parameters; any deviation breaks compatibility with the real device.
var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum computes the frame CRC over data. The frame builder appends the
// result low byte first.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
