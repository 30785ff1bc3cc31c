// Package gm8050 implements the serial register protocol of the GM8050
// laser-demodulation spectrometer: Modbus-style read/write commands with a
// CRC16 trailer, a vendor bulk-read function for spectrum blocks, and the
// response-accumulation rules the instrument requires.
package gm8050

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Config holds connection settings for a Device.
type Config struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`

	// ResponseTimeout bounds each request/response cycle (default 1s).
	ResponseTimeout time.Duration `yaml:"-" json:"-"`
	// NoDataSilence tunes the fast "nothing plugged in" classification
	// (default 100ms; see DefaultNoDataSilence).
	NoDataSilence time.Duration `yaml:"-" json:"-"`
}

// ScanParameters is the device-resident wavelength sweep configuration,
// used to synthesize the wavelength axis of a spectrum.
type ScanParameters struct {
	StartNM float64 `json:"startNm"`
	StopNM  float64 `json:"stopNm"`
	StepNM  float64 `json:"stepNm"`
}

// Spectrum holds one full acquisition. Every channel's sample slice has the
// same length as Wavelengths, except channels whose read failed, which are
// empty. Per-channel failure is isolated, not aggregated.
type Spectrum struct {
	Wavelengths []float64             `json:"wavelengths"`
	Channels    [NumChannels][]uint16 `json:"channels"`
	Params      ScanParameters        `json:"params"`
}

// Device sequences the instrument's logical operations over one serial
// connection. The physical link is half-duplex with no request identifiers,
// so a mutex serializes operations; settle delays block while holding it.
type Device struct {
	mu   sync.Mutex
	conn *conn

	portPath      string
	baudRate      int
	respTimeout   time.Duration
	noDataSilence time.Duration
}

// New creates an unconnected Device. Call Connect before issuing operations.
func New(cfg Config) *Device {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = defaultResponseTimeout
	}
	return &Device{
		portPath:      cfg.PortPath,
		baudRate:      cfg.BaudRate,
		respTimeout:   cfg.ResponseTimeout,
		noDataSilence: cfg.NoDataSilence,
	}
}

// Connect opens the serial port (8-N-1 at the configured baud rate).
func (d *Device) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		return nil
	}
	port, err := openSerial(d.portPath, d.baudRate)
	if err != nil {
		return err
	}
	d.conn = newConn(port, d.noDataSilence)
	log.Printf("[gm8050] opened %s at %d baud", d.portPath, d.baudRate)
	return nil
}

// Close releases the serial port. Closing an unconnected Device is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.close()
	d.conn = nil
	return err
}

// IsConnected reports whether the serial port is open.
func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// LaserOn switches the pump laser on. The write itself elicits no mandated
// settle delay; use LaserState for a confirmation read.
func (d *Device) LaserOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regLaserCtrl, 1)
}

// LaserOff switches the pump laser off.
func (d *Device) LaserOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regLaserCtrl, 0)
}

// LaserState reads back the laser control register and reports whether the
// laser is on.
func (d *Device) LaserState() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.readRegister(regLaserCtrl)
	if err != nil {
		return false, fmt.Errorf("laser state: %w", err)
	}
	return v == 1, nil
}

// StartDemodulation starts the demodulator and blocks for the mandated 1s
// quiescence period. The delay is a correctness requirement: commands issued
// before the device completes its internal transition risk protocol errors.
func (d *Device) StartDemodulation() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeRegister(regDemodCtrl, 1); err != nil {
		return err
	}
	time.Sleep(demodStartSettle)
	return nil
}

// StopDemodulation stops the demodulator and blocks for its 0.5s settle.
func (d *Device) StopDemodulation() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeRegister(regDemodCtrl, 0); err != nil {
		return err
	}
	time.Sleep(demodStopSettle)
	return nil
}

// TriggerScan starts a single spectrum sweep and blocks for the ~1s the
// device needs before spectrum data becomes readable.
func (d *Device) TriggerScan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeRegister(regSingleScan, 1); err != nil {
		return err
	}
	time.Sleep(scanSettle)
	return nil
}

// ReadScanParameters fetches start/stop/step from the device with three
// sequential single-register reads (the device does not support batching
// them). Raw values are 1/1000 nm offsets from the 1520 nm baseline.
func (d *Device) ReadScanParameters() (ScanParameters, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readScanParameters()
}

func (d *Device) readScanParameters() (ScanParameters, error) {
	rawStart, err := d.readRegister(regScanStart)
	if err != nil {
		return ScanParameters{}, fmt.Errorf("scan start: %w", err)
	}
	rawStop, err := d.readRegister(regScanStop)
	if err != nil {
		return ScanParameters{}, fmt.Errorf("scan stop: %w", err)
	}
	rawStep, err := d.readRegister(regScanStep)
	if err != nil {
		return ScanParameters{}, fmt.Errorf("scan step: %w", err)
	}

	p := ScanParameters{
		StartNM: wavelengthBaseNM + float64(rawStart)/registerNMScale,
		StopNM:  wavelengthBaseNM + float64(rawStop)/registerNMScale,
		StepNM:  float64(rawStep) / registerNMScale,
	}
	if p.StepNM <= 0 {
		return ScanParameters{}, fmt.Errorf("gm8050: device reports non-positive scan step (%.4f nm)", p.StepNM)
	}
	return p, nil
}

// ReadSpectrum reads all four channel sample blocks and synthesizes the
// wavelength axis from the scan parameters (the device never transmits it).
// A scan-parameter failure aborts the whole read; a single channel failure
// leaves that channel empty while the others proceed.
//
// Worst case this is 7 request/response cycles, each bounded by the
// response timeout; callers driving periodic reads must not schedule a new
// cycle before that total has elapsed.
func (d *Device) ReadSpectrum() (*Spectrum, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	params, err := d.readScanParameters()
	if err != nil {
		return nil, fmt.Errorf("scan parameters: %w", err)
	}

	sp := &Spectrum{
		Wavelengths: make([]float64, SamplesPerChannel),
		Params:      params,
	}
	for i := range sp.Wavelengths {
		sp.Wavelengths[i] = params.StartNM + float64(i)*params.StepNM
	}

	for ch, base := range channelBase {
		data, err := d.bulkRead(base, SamplesPerChannel, d.respTimeout)
		if err != nil {
			log.Printf("[gm8050] channel %d spectrum read failed: %v", ch+1, err)
			sp.Channels[ch] = []uint16{}
			continue
		}
		sp.Channels[ch] = decodeSamples(data, SamplesPerChannel)
	}
	return sp, nil
}

// ReadCenterWavelengths reads the device-computed center wavelength table:
// 32 big-endian f32 slots, of which unpopulated ones hold non-positive
// sentinels. Only strictly positive values are returned, original order
// preserved. The block is large and slow to produce, hence the long timeout.
func (d *Device) ReadCenterWavelengths() ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := d.bulkRead(regCenterWLBase, centerWLRegisters, centerReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("center wavelengths: %w", err)
	}

	out := make([]float64, 0, centerWLSlots)
	for i := 0; i < centerWLSlots; i++ {
		v := decodeF32(data[i*4 : i*4+4])
		if v > 0 {
			out = append(out, float64(v))
		}
	}
	return out, nil
}

// writeRegister issues a single-register write. The device echoes the write
// frame back, but confirmation is a separate read operation; the echo is
// discarded by the next cycle's input-buffer reset.
func (d *Device) writeRegister(reg, val uint16) error {
	if d.conn == nil {
		return ErrNotConnected
	}
	payload := []byte{byte(reg >> 8), byte(reg), byte(val >> 8), byte(val)}
	return d.conn.send(BuildFrame(DeviceAddress, fnWriteRegister, payload))
}

// readRegister issues a single-register holding read and decodes the value.
func (d *Device) readRegister(reg uint16) (uint16, error) {
	if d.conn == nil {
		return 0, ErrNotConnected
	}
	payload := []byte{byte(reg >> 8), byte(reg), 0x00, 0x01}
	if err := d.conn.send(BuildFrame(DeviceAddress, fnReadHolding, payload)); err != nil {
		return 0, err
	}
	resp, err := d.conn.readResponse(readRegResponseLen, d.respTimeout)
	if err != nil {
		return 0, err
	}
	// Response: addr + fn + byte count + 2 data bytes + crc.
	if resp[0] != DeviceAddress || resp[1] != fnReadHolding || resp[2] != 2 {
		return 0, fmt.Errorf("register 0x%04X read header % X: %w", reg, resp[:3], ErrMalformedResponse)
	}
	return decodeU16(resp[3:5]), nil
}

// bulkRead issues a vendor 0x14 block read of count registers starting at
// base and returns the raw sample bytes after the 4-byte header.
func (d *Device) bulkRead(base uint16, count int, timeout time.Duration) ([]byte, error) {
	if d.conn == nil {
		return nil, ErrNotConnected
	}
	payload := []byte{byte(base >> 8), byte(base), byte(count >> 8), byte(count)}
	if err := d.conn.send(BuildFrame(DeviceAddress, fnBulkRead, payload)); err != nil {
		return nil, err
	}
	expected := bulkHeaderLen + 2*count
	resp, err := d.conn.readResponse(expected, timeout)
	if err != nil {
		return nil, err
	}
	if resp[0] != DeviceAddress || resp[1] != fnBulkRead {
		return nil, fmt.Errorf("bulk read 0x%04X header % X: %w", base, resp[:2], ErrMalformedResponse)
	}
	return resp[bulkHeaderLen:expected], nil
}
