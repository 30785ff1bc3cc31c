package gm8050

import "time"

// Function codes. 0x14 is the GM8050's vendor-specific bulk read used for
// spectrum and center-wavelength blocks; 0x03/0x06 follow standard Modbus
// register semantics.
const (
	fnReadHolding   = 0x03
	fnWriteRegister = 0x06
	fnBulkRead      = 0x14
)

// Register map. Addresses encode real device memory layout; do not change.
const (
	regLaserCtrl    = 0x0200
	regDemodCtrl    = 0x0201
	regSingleScan   = 0x0202
	regCenterWLBase = 0x0300
	regScanStart    = 0x1005
	regScanStop     = 0x1006
	regScanStep     = 0x1007
)

const (
	// DeviceAddress is the fixed slave address of the instrument.
	DeviceAddress = 0x01

	// NumChannels is the number of spectrometer channels exposed by the
	// demodulator.
	NumChannels = 4

	// SamplesPerChannel is the fixed number of samples the device stores
	// per channel spectrum block.
	SamplesPerChannel = 2051

	centerWLRegisters = 512 // registers in the center-wavelength block
	centerWLSlots     = 32  // big-endian f32 slots within that block
)

// channelBase maps channel index to the starting register of its sample block.
var channelBase = [NumChannels]uint16{0x2000, 0x3000, 0x4000, 0x5000}

// Scan parameter registers hold wavelengths in units of 1/1000 nm offset
// from a 1520 nm baseline (e.g. 7000 -> 1527.0 nm).
const (
	wavelengthBaseNM = 1520.0
	registerNMScale  = 1000.0
)

// Response layout constants.
const (
	readRegResponseLen = 7 // addr + fn + count + 2 data + 2 crc
	bulkHeaderLen      = 4 // addr + fn + 2-byte count before sample data
	exceptionFrameLen  = 5 // addr + fn|0x80 + code + 2 crc
)

// Settle delays the device mandates after state-transition writes. Issuing
// further commands before these elapse risks a protocol violation, so the
// delays block and are not cancellable.
const (
	demodStartSettle = 1 * time.Second
	demodStopSettle  = 500 * time.Millisecond
	scanSettle       = 1 * time.Second
)

const (
	// DefaultBaudRate is the device's factory serial rate (8-N-1).
	DefaultBaudRate = 115200

	defaultResponseTimeout = 1 * time.Second
	centerReadTimeout      = 20 * time.Second
)
